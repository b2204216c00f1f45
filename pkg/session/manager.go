package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired, please log in again")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const refreshKey = "refresh"

// Manager owns the access credential and the identity of the signed-in user.
// The credential lives in memory only. At most one refresh is in flight at a time.
type Manager struct {
	auth  Authenticator
	bus   *event_bus.EventBus
	clock utils.Clock

	mu         sync.RWMutex
	token      *oauth2.Token
	identity   *user.AuthUser
	generation uint64

	refreshes singleflight.Group
}

func NewManager(auth Authenticator, bus *event_bus.EventBus, clock utils.Clock) *Manager {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Manager{auth: auth, bus: bus, clock: clock}
}

// Bootstrap restores a session from the refresh cookie, if there is one.
// A failed attempt leaves the manager unauthenticated without reporting an error.
func (m *Manager) Bootstrap(ctx context.Context) bool {
	creds, err := m.auth.Refresh(ctx)
	if err != nil {
		log.Debugf("no session to restore: %v", err)
		return false
	}
	if _, err := m.establish(creds); err != nil {
		log.Warnf("failed to restore session: %v", err)
		return false
	}
	m.publishAuthenticated(ctx, creds.User)
	log.Infof("session restored for %s", creds.User.Email)
	return true
}

func (m *Manager) Login(ctx context.Context, email, password string) (user.AuthUser, error) {
	req := LoginRequest{Email: email, Password: password}
	if err := validator.Struct(req); err != nil {
		return user.AuthUser{}, err
	}
	creds, err := m.auth.Login(ctx, req)
	if err != nil {
		return user.AuthUser{}, fmt.Errorf("failed to log in: %w", err)
	}
	return m.start(ctx, creds)
}

func (m *Manager) Register(ctx context.Context, req RegisterRequest) (user.AuthUser, error) {
	if err := validator.Struct(req); err != nil {
		return user.AuthUser{}, err
	}
	creds, err := m.auth.Register(ctx, req)
	if err != nil {
		return user.AuthUser{}, fmt.Errorf("failed to register: %w", err)
	}
	return m.start(ctx, creds)
}

func (m *Manager) start(ctx context.Context, creds Credentials) (user.AuthUser, error) {
	if _, err := m.establish(creds); err != nil {
		return user.AuthUser{}, err
	}
	m.publishAuthenticated(ctx, creds.User)
	log.Infof("signed in as %s (%s)", creds.User.Email, creds.User.Role)
	return creds.User, nil
}

// Logout ends the session on the backend and drops it locally. The local session
// is dropped even when the backend call fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.auth.Logout(ctx)
	m.Invalidate(ctx, "logout")
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Token returns the current access credential, refreshing it first when it is
// known to be expired. It makes Manager an oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	token, _, err := m.acquire(context.Background())
	return token, err
}

// acquire returns the credential to send along with its generation.
func (m *Manager) acquire(ctx context.Context) (*oauth2.Token, uint64, error) {
	m.mu.RLock()
	token, gen := m.token, m.generation
	m.mu.RUnlock()
	if token == nil {
		return nil, gen, ErrNotAuthenticated
	}
	if !expired(token, m.clock.Now()) {
		return token, gen, nil
	}
	log.Debugf("access token expired at %s, refreshing", token.Expiry)
	return m.refreshFrom(ctx, gen)
}

// Refresh obtains a new access credential. Concurrent callers share one request.
func (m *Manager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()
	token, _, err := m.refreshFrom(ctx, gen)
	return token, err
}

// refreshFrom refreshes the credential of generation gen. When that credential was
// already replaced, the current one is returned without another round trip.
func (m *Manager) refreshFrom(ctx context.Context, gen uint64) (*oauth2.Token, uint64, error) {
	if token, current, replaced := m.replaced(gen); replaced {
		if token == nil {
			return nil, current, ErrSessionExpired
		}
		return token, current, nil
	}

	ch := m.refreshes.DoChan(refreshKey, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), gen)
	})
	select {
	case <-ctx.Done():
		return nil, gen, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, gen, res.Err
		}
		r := res.Val.(refreshed)
		return r.token, r.generation, nil
	}
}

// replaced reports whether the credential of generation gen was since replaced or dropped.
func (m *Manager) replaced(gen uint64) (*oauth2.Token, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.generation, m.generation != gen
}

type refreshed struct {
	token      *oauth2.Token
	generation uint64
}

func (m *Manager) doRefresh(ctx context.Context, gen uint64) (refreshed, error) {
	// a flight that finished just before this one started already did the work
	if token, current, replaced := m.replaced(gen); replaced {
		if token == nil {
			return refreshed{}, ErrSessionExpired
		}
		return refreshed{token: token, generation: current}, nil
	}

	log.Debug("refreshing access token")
	creds, err := m.auth.Refresh(ctx)
	if err == nil {
		var next refreshed
		if next, err = m.establish(creds); err == nil {
			return next, nil
		}
	}
	log.Errorf("failed to refresh session: %v", err)
	m.Invalidate(ctx, "refresh failed")
	return refreshed{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
}

func (m *Manager) establish(creds Credentials) (refreshed, error) {
	token, err := newToken(creds.AccessToken)
	if err != nil {
		return refreshed{}, err
	}
	identity := creds.User

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.identity = &identity
	m.generation++
	return refreshed{token: token, generation: m.generation}, nil
}

// Invalidate drops the credential and the identity and announces it on the bus.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	m.mu.Lock()
	wasAuthenticated := m.token != nil
	m.token = nil
	m.identity = nil
	m.generation++
	m.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	log.Infof("session invalidated: %s", reason)
	if m.bus == nil {
		return
	}
	err := m.bus.Publish(event_bus.NewEvent(ctx, "session.invalidated", event_bus.SessionInvalidated{Reason: reason}))
	if err != nil {
		log.Errorf("failed to publish session.invalidated: %v", err)
	}
}

// CurrentUser implements user.Provider.
func (m *Manager) CurrentUser(ctx context.Context) (user.AuthUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return user.AuthUser{}, ErrNotAuthenticated
	}
	return *m.identity, nil
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != nil
}

func (m *Manager) publishAuthenticated(ctx context.Context, u user.AuthUser) {
	if m.bus == nil {
		return
	}
	err := m.bus.Publish(event_bus.NewEvent(ctx, "session.authenticated", event_bus.SessionAuthenticated{UserId: u.UserId, Role: string(u.Role)}))
	if err != nil {
		log.Errorf("failed to publish session.authenticated: %v", err)
	}
}
