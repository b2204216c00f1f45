package settings

import (
	"context"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	Get(ctx context.Context) (OrgSettings, error)                       // GET /settings
	Update(ctx context.Context, req UpdateRequest) (OrgSettings, error) // PUT /settings
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) Get(ctx context.Context) (OrgSettings, error) {
	var s OrgSettings
	err := c.api.Get(ctx, "/settings", nil, &s)
	return s, err
}

func (c *ClientImpl) Update(ctx context.Context, req UpdateRequest) (OrgSettings, error) {
	var s OrgSettings
	err := c.api.Put(ctx, "/settings", req, &s)
	return s, err
}
