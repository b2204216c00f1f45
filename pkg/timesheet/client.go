package timesheet

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	List(ctx context.Context, page, limit int) (rest.Page[Timesheet], error)                   // GET /timesheets
	Get(ctx context.Context, id int) (Timesheet, error)                                        // GET /timesheets/{id}
	Create(ctx context.Context, req CreateRequest) (Timesheet, error)                          // POST /timesheets
	Delete(ctx context.Context, id int) error                                                  // DELETE /timesheets/{id}
	Submit(ctx context.Context, id int) (Timesheet, error)                                     // POST /timesheets/{id}/submit
	CopyPreviousWeek(ctx context.Context, req CopyWeekRequest) (Timesheet, error)              // POST /timesheets/copy-previous-week
	Entries(ctx context.Context, id int) ([]TimeEntry, error)                                  // GET /timesheets/{id}/entries
	AddEntry(ctx context.Context, id int, req NewEntryRequest) (TimeEntry, error)              // POST /timesheets/{id}/entries
	UpdateEntry(ctx context.Context, id int, entryId int, patch EntryPatch) (TimeEntry, error) // PUT /timesheets/{id}/entries/{entryId}
	DeleteEntry(ctx context.Context, id int, entryId int) error                                // DELETE /timesheets/{id}/entries/{entryId}
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) List(ctx context.Context, page, limit int) (rest.Page[Timesheet], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var items []Timesheet
	meta, err := c.api.GetPage(ctx, "/timesheets", query, &items)
	if err != nil {
		return rest.Page[Timesheet]{}, err
	}
	return rest.Page[Timesheet]{Items: items, Meta: meta}, nil
}

func (c *ClientImpl) Get(ctx context.Context, id int) (Timesheet, error) {
	var ts Timesheet
	err := c.api.Get(ctx, fmt.Sprintf("/timesheets/%d", id), nil, &ts)
	return ts, err
}

func (c *ClientImpl) Create(ctx context.Context, req CreateRequest) (Timesheet, error) {
	var created Timesheet
	err := c.api.Post(ctx, "/timesheets", req, &created)
	return created, err
}

func (c *ClientImpl) Delete(ctx context.Context, id int) error {
	return c.api.Delete(ctx, fmt.Sprintf("/timesheets/%d", id))
}

func (c *ClientImpl) Submit(ctx context.Context, id int) (Timesheet, error) {
	var submitted Timesheet
	err := c.api.Post(ctx, fmt.Sprintf("/timesheets/%d/submit", id), nil, &submitted)
	return submitted, err
}

func (c *ClientImpl) CopyPreviousWeek(ctx context.Context, req CopyWeekRequest) (Timesheet, error) {
	var copied Timesheet
	err := c.api.Post(ctx, "/timesheets/copy-previous-week", req, &copied)
	return copied, err
}

func (c *ClientImpl) Entries(ctx context.Context, id int) ([]TimeEntry, error) {
	var entries []TimeEntry
	err := c.api.Get(ctx, fmt.Sprintf("/timesheets/%d/entries", id), nil, &entries)
	return entries, err
}

func (c *ClientImpl) AddEntry(ctx context.Context, id int, req NewEntryRequest) (TimeEntry, error) {
	var created TimeEntry
	err := c.api.Post(ctx, fmt.Sprintf("/timesheets/%d/entries", id), req, &created)
	return created, err
}

func (c *ClientImpl) UpdateEntry(ctx context.Context, id int, entryId int, patch EntryPatch) (TimeEntry, error) {
	var updated TimeEntry
	err := c.api.Put(ctx, fmt.Sprintf("/timesheets/%d/entries/%d", id, entryId), patch, &updated)
	return updated, err
}

func (c *ClientImpl) DeleteEntry(ctx context.Context, id int, entryId int) error {
	return c.api.Delete(ctx, fmt.Sprintf("/timesheets/%d/entries/%d", id, entryId))
}
