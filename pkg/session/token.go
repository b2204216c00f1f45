package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// expirySkew refreshes a credential slightly before the backend would reject it.
const expirySkew = 10 * time.Second

// newToken wraps an access credential. The expiry is read from the JWT exp claim
// without verifying the signature; the backend is the only party that validates it.
func newToken(accessToken string) (*oauth2.Token, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrInvalidCredentials)
	}
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		// opaque credentials are accepted and never considered expired
		return token, nil
	}
	if claims.ExpiresAt != nil {
		token.Expiry = claims.ExpiresAt.Time
	}
	return token, nil
}

func expired(token *oauth2.Token, now time.Time) bool {
	if token == nil {
		return true
	}
	if token.Expiry.IsZero() {
		return false
	}
	return !now.Before(token.Expiry.Add(-expirySkew))
}
