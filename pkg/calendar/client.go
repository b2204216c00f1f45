package calendar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)                // GET /holidays?year=
	CreateHoliday(ctx context.Context, req CreateHolidayRequest) (Holiday, error) // POST /holidays
	DeleteHoliday(ctx context.Context, id int) error                              // DELETE /holidays/{id}
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	query := url.Values{}
	if year > 0 {
		query.Set("year", strconv.Itoa(year))
	}
	var holidays []Holiday
	if _, err := c.api.GetPage(ctx, "/holidays", query, &holidays); err != nil {
		return nil, err
	}
	return holidays, nil
}

func (c *ClientImpl) CreateHoliday(ctx context.Context, req CreateHolidayRequest) (Holiday, error) {
	var created Holiday
	err := c.api.Post(ctx, "/holidays", req, &created)
	return created, err
}

func (c *ClientImpl) DeleteHoliday(ctx context.Context, id int) error {
	return c.api.Delete(ctx, fmt.Sprintf("/holidays/%d", id))
}
