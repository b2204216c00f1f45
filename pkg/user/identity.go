package user

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

var ErrNoUser = errors.New("no authenticated user")

// Provider yields the identity of the signed-in user. The session manager is
// the provider of a running client.
type Provider interface {
	CurrentUser(ctx context.Context) (AuthUser, error)
}

type identityKey struct{}

// WithUser attaches an identity to ctx for ContextProvider.
func WithUser(ctx context.Context, identity AuthUser) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// ContextProvider reads the identity attached with WithUser.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (AuthUser, error) {
	identity, ok := ctx.Value(identityKey{}).(AuthUser)
	if !ok {
		log.Trace("no identity attached to context")
		return AuthUser{}, ErrNoUser
	}
	return identity, nil
}
