package approval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/pkg/timesheet"
)

type Client interface {
	List(ctx context.Context, page, limit int) (rest.Page[timesheet.Timesheet], error)  // GET /approvals
	Stats(ctx context.Context) (Stats, error)                                           // GET /approvals/stats
	Approve(ctx context.Context, id int) (timesheet.Timesheet, error)                   // POST /approvals/{id}/approve
	Reject(ctx context.Context, id int, req RejectRequest) (timesheet.Timesheet, error) // POST /approvals/{id}/reject
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) List(ctx context.Context, page, limit int) (rest.Page[timesheet.Timesheet], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var items []timesheet.Timesheet
	meta, err := c.api.GetPage(ctx, "/approvals", query, &items)
	if err != nil {
		return rest.Page[timesheet.Timesheet]{}, err
	}
	return rest.Page[timesheet.Timesheet]{Items: items, Meta: meta}, nil
}

func (c *ClientImpl) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.api.Get(ctx, "/approvals/stats", nil, &stats)
	return stats, err
}

func (c *ClientImpl) Approve(ctx context.Context, id int) (timesheet.Timesheet, error) {
	var ts timesheet.Timesheet
	err := c.api.Post(ctx, fmt.Sprintf("/approvals/%d/approve", id), nil, &ts)
	return ts, err
}

func (c *ClientImpl) Reject(ctx context.Context, id int, req RejectRequest) (timesheet.Timesheet, error) {
	var ts timesheet.Timesheet
	err := c.api.Post(ctx, fmt.Sprintf("/approvals/%d/reject", id), req, &ts)
	return ts, err
}
