package session

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/pkg/user"
)

// Credentials is what the backend returns when a session starts or is refreshed.
// The refresh credential itself never leaves the cookie jar.
type Credentials struct {
	AccessToken string        `json:"accessToken"`
	User        user.AuthUser `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest signs up a new organization together with its first administrator.
type RegisterRequest struct {
	OrganisationName string `json:"organisationName" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
}

type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (Credentials, error)       // POST /auth/login
	Register(ctx context.Context, req RegisterRequest) (Credentials, error) // POST /auth/register
	Refresh(ctx context.Context) (Credentials, error)                       // POST /auth/refresh
	Logout(ctx context.Context) error                                       // POST /auth/logout
}

// HTTPAuthenticator calls the auth endpoints. Its rest.Client must be built on an
// *http.Client with a cookie jar and without the refresh Transport.
type HTTPAuthenticator struct {
	api *rest.Client
}

func NewHTTPAuthenticator(api *rest.Client) *HTTPAuthenticator {
	return &HTTPAuthenticator{api: api}
}

func (a *HTTPAuthenticator) Login(ctx context.Context, req LoginRequest) (Credentials, error) {
	var creds Credentials
	if err := a.api.Post(ctx, "/auth/login", req, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (a *HTTPAuthenticator) Register(ctx context.Context, req RegisterRequest) (Credentials, error) {
	var creds Credentials
	if err := a.api.Post(ctx, "/auth/register", req, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (a *HTTPAuthenticator) Refresh(ctx context.Context) (Credentials, error) {
	var creds Credentials
	if err := a.api.Post(ctx, "/auth/refresh", nil, &creds); err != nil {
		return Credentials{}, fmt.Errorf("refresh rejected: %w", err)
	}
	return creds, nil
}

func (a *HTTPAuthenticator) Logout(ctx context.Context) error {
	return a.api.Post(ctx, "/auth/logout", nil, nil)
}
