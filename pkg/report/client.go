package report

import (
	"context"
	"net/url"
	"strconv"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	Generate(ctx context.Context, filters Filters) (Data, error)                   // GET /reports
	Export(ctx context.Context, filters Filters, format Format) (rest.File, error) // GET /reports/export
	ExportMonthly(ctx context.Context, req MonthlyRequest) (rest.File, error)      // GET /reports/export-monthly
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) Generate(ctx context.Context, filters Filters) (Data, error) {
	var data Data
	err := c.api.Get(ctx, "/reports", filters.Query(), &data)
	return data, err
}

// Export always saves under the report name, whatever the server suggests.
func (c *ClientImpl) Export(ctx context.Context, filters Filters, format Format) (rest.File, error) {
	query := filters.Query()
	query.Set("format", string(format))
	file, err := c.api.Download(ctx, "/reports/export", query, format.FileName())
	if err != nil {
		return rest.File{}, err
	}
	file.Name = format.FileName()
	return file, nil
}

func (c *ClientImpl) ExportMonthly(ctx context.Context, req MonthlyRequest) (rest.File, error) {
	query := url.Values{}
	query.Set("userId", strconv.Itoa(req.UserId))
	query.Set("year", strconv.Itoa(req.Year))
	query.Set("month", strconv.Itoa(req.Month))
	return c.api.Download(ctx, "/reports/export-monthly", query, MonthlyFileName(req.Year, req.Month))
}
