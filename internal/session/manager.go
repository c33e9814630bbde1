// Package session owns the credential pair and the identity derived from it.
// The manager is the single writer of durable credential storage; everything
// else reads the in-memory state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"qazna.org/backoffice/internal/authz"
	"qazna.org/backoffice/internal/obs"
)

var (
	// ErrNoRefreshToken indicates a refresh was requested without a stored
	// refresh token.
	ErrNoRefreshToken = errors.New("session: no refresh token")

	// ErrRefreshFailed indicates the refresh endpoint rejected the token.
	ErrRefreshFailed = errors.New("session: refresh failed")
)

// TokenPair is a freshly minted access/refresh credential pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshFunc exchanges a refresh token for a new pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// IdentityFunc resolves the identity behind an access token.
type IdentityFunc func(ctx context.Context, accessToken string) (authz.Identity, error)

// EventKind tags an auth state change.
type EventKind string

const (
	// EventAuthSet fires when a token pair is set or rotated.
	EventAuthSet EventKind = "auth_set"
	// EventAuthCleared fires when the session is cleared.
	EventAuthCleared EventKind = "auth_cleared"
)

// Event is broadcast to subscribers on every auth state change.
type Event struct {
	Kind        EventKind
	AccessToken string
}

// Manager is the single source of truth for credentials and identity.
// It is constructed once and injected into the API client and the
// notification channel.
type Manager struct {
	store Store
	log   zerolog.Logger

	mu       sync.RWMutex
	creds    Credentials
	identity *authz.Identity

	refreshFn  RefreshFunc
	identityFn IdentityFunc
	refreshing singleflight.Group

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Option configures the manager.
type Option func(*Manager)

// WithLogger overrides the shared logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager constructs a manager backed by the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		log:   obs.Logger(),
		subs:  make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind wires the endpoint calls the manager needs. The API client calls this
// at construction; the indirection keeps this package free of HTTP concerns.
func (m *Manager) Bind(refresh RefreshFunc, identity IdentityFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshFn = refresh
	m.identityFn = identity
}

// Hydrate loads persisted credentials from the store. Identity stays absent
// until FetchIdentity succeeds; callers holding only a stale token discover it
// on their first request.
func (m *Manager) Hydrate() error {
	creds, err := m.store.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.creds = creds
	m.identity = nil
	m.mu.Unlock()
	if !creds.Empty() {
		m.log.Debug().Msg("session hydrated from storage")
	}
	return nil
}

// SetAuth replaces the credential pair and identity atomically, persists the
// tokens and notifies subscribers. Identity may be nil for the transient
// authenticated-but-not-hydrated state.
func (m *Manager) SetAuth(accessToken, refreshToken string, identity *authz.Identity) error {
	creds := Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := m.store.Save(creds); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	m.mu.Lock()
	m.creds = creds
	if identity != nil {
		id := *identity
		m.identity = &id
	}
	m.mu.Unlock()
	m.publish(Event{Kind: EventAuthSet, AccessToken: accessToken})
	return nil
}

// ClearAuth removes persisted tokens and resets all fields. Safe to call when
// already cleared.
func (m *Manager) ClearAuth() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.mu.Lock()
	m.creds = Credentials{}
	m.identity = nil
	m.mu.Unlock()
	m.publish(Event{Kind: EventAuthCleared})
	return nil
}

// AccessToken returns the current access token, empty when absent.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken
}

// RefreshToken returns the current refresh token, empty when absent.
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.RefreshToken
}

// Authenticated reports whether an access token is present.
func (m *Manager) Authenticated() bool {
	return m.AccessToken() != ""
}

// Identity returns a copy of the current identity, nil when not hydrated.
func (m *Manager) Identity() *authz.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// SetIdentity caches an identity resolved elsewhere. Ignored when no access
// token is present; identity must not outlive its token.
func (m *Manager) SetIdentity(id authz.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds.AccessToken == "" {
		return
	}
	m.identity = &id
}

// FetchIdentity resolves and caches the identity for the current access
// token. The caller decides how to react to an unauthorized result.
func (m *Manager) FetchIdentity(ctx context.Context) (authz.Identity, error) {
	m.mu.RLock()
	token := m.creds.AccessToken
	fn := m.identityFn
	m.mu.RUnlock()
	if fn == nil {
		return authz.Identity{}, errors.New("session: identity endpoint not bound")
	}
	id, err := fn(ctx, token)
	if err != nil {
		return authz.Identity{}, err
	}
	m.mu.Lock()
	// The token may have been cleared while the fetch was in flight; identity
	// must not outlive its token.
	if m.creds.AccessToken != "" {
		cp := id
		m.identity = &cp
	}
	m.mu.Unlock()
	return id, nil
}

// Refresh exchanges the refresh token for a new pair. staleAccess is the
// access token the caller saw rejected; when the pair already rotated past it
// the exchange is skipped. Concurrent callers coalesce into a single upstream
// request; a refresh token is single-use on most backends, so parallel
// refreshes would log everyone out.
func (m *Manager) Refresh(ctx context.Context, staleAccess string) error {
	_, err, _ := m.refreshing.Do("refresh", func() (any, error) {
		return nil, m.refreshOnce(ctx, staleAccess)
	})
	return err
}

func (m *Manager) refreshOnce(ctx context.Context, staleAccess string) error {
	m.mu.RLock()
	accessToken := m.creds.AccessToken
	refreshToken := m.creds.RefreshToken
	fn := m.refreshFn
	m.mu.RUnlock()

	// Another caller already rotated the pair; the new token covers us.
	if staleAccess != "" && accessToken != staleAccess {
		return nil
	}

	if refreshToken == "" {
		obs.ObserveTokenRefresh("failure")
		return ErrNoRefreshToken
	}
	if fn == nil {
		return errors.New("session: refresh endpoint not bound")
	}

	pair, err := fn(ctx, refreshToken)
	if err != nil {
		obs.ObserveTokenRefresh("failure")
		m.log.Warn().Err(err).Msg("token refresh failed")
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	// Identity is preserved across rotation; callers re-fetch when they need
	// fresh claims.
	if err := m.SetAuth(pair.AccessToken, pair.RefreshToken, nil); err != nil {
		obs.ObserveTokenRefresh("failure")
		return err
	}
	obs.ObserveTokenRefresh("success")
	m.log.Debug().Msg("access token rotated")
	return nil
}

// AccessTokenExpiry decodes the access token without verifying it and returns
// the expiry claim. Zero time when the token is absent or not a JWT; the
// client never trusts tokens, it only uses this for display and scheduling.
func (m *Manager) AccessTokenExpiry() time.Time {
	token := m.AccessToken()
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Subscribe registers for auth change events. The channel is closed when the
// context ends. Slow subscribers drop events rather than block the manager.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 8)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, id)
		close(ch)
		m.subMu.Unlock()
	}()

	return ch
}

func (m *Manager) publish(evt Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
