package user

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/rest"
)

type Client interface {
	List(ctx context.Context) ([]User, error)                                // GET /users
	Create(ctx context.Context, req CreateUserRequest) (User, error)         // POST /users
	Update(ctx context.Context, id int, req UpdateUserRequest) (User, error) // PUT /users/{id}
	Delete(ctx context.Context, id int) error                                // DELETE /users/{id}
	MyReports(ctx context.Context) ([]User, error)                           // GET /team/my-reports
	MyManagers(ctx context.Context) ([]User, error)                          // GET /team/my-managers
}

type ClientImpl struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *ClientImpl {
	return &ClientImpl{api: api}
}

func (c *ClientImpl) List(ctx context.Context) ([]User, error) {
	var users []User
	if _, err := c.api.GetPage(ctx, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *ClientImpl) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	var created User
	err := c.api.Post(ctx, "/users", req, &created)
	return created, err
}

func (c *ClientImpl) Update(ctx context.Context, id int, req UpdateUserRequest) (User, error) {
	var updated User
	err := c.api.Put(ctx, fmt.Sprintf("/users/%d", id), req, &updated)
	return updated, err
}

func (c *ClientImpl) Delete(ctx context.Context, id int) error {
	return c.api.Delete(ctx, fmt.Sprintf("/users/%d", id))
}

func (c *ClientImpl) MyReports(ctx context.Context) ([]User, error) {
	var users []User
	err := c.api.Get(ctx, "/team/my-reports", nil, &users)
	return users, err
}

func (c *ClientImpl) MyManagers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.api.Get(ctx, "/team/my-managers", nil, &users)
	return users, err
}
