package project

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	List(ctx context.Context) ([]Project, error)                            // GET /projects
	Create(ctx context.Context, req CreateRequest) (Project, error)         // POST /projects
	Update(ctx context.Context, id int, req UpdateRequest) (Project, error) // PUT /projects/{id}
	Delete(ctx context.Context, id int) error                               // DELETE /projects/{id}
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) List(ctx context.Context) ([]Project, error) {
	var projects []Project
	if _, err := c.api.GetPage(ctx, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *ClientImpl) Create(ctx context.Context, req CreateRequest) (Project, error) {
	var created Project
	err := c.api.Post(ctx, "/projects", req, &created)
	return created, err
}

func (c *ClientImpl) Update(ctx context.Context, id int, req UpdateRequest) (Project, error) {
	var updated Project
	err := c.api.Put(ctx, fmt.Sprintf("/projects/%d", id), req, &updated)
	return updated, err
}

func (c *ClientImpl) Delete(ctx context.Context, id int) error {
	return c.api.Delete(ctx, fmt.Sprintf("/projects/%d", id))
}
