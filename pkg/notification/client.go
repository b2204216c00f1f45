package notification

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	List(ctx context.Context) ([]Notification, error) // GET /notifications
	MarkRead(ctx context.Context, id int) error       // PUT /notifications/{id}/read
	MarkAllRead(ctx context.Context) error            // PUT /notifications/read-all
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) List(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	if _, err := c.api.GetPage(ctx, "/notifications", nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (c *ClientImpl) MarkRead(ctx context.Context, id int) error {
	return c.api.Put(ctx, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

func (c *ClientImpl) MarkAllRead(ctx context.Context) error {
	return c.api.Put(ctx, "/notifications/read-all", nil, nil)
}
