// Package api is the outbound call layer of the console: one client wrapping
// every REST endpoint of the back office with bearer attachment, a one-shot
// refresh-and-retry protocol on 401 and a structured error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"qazna.org/backoffice/internal/ids"
	"qazna.org/backoffice/internal/obs"
	"qazna.org/backoffice/internal/session"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseSize bounds response bodies so a misbehaving backend cannot
	// exhaust client memory.
	maxResponseSize = 10 * 1024 * 1024
)

// Client calls the back-office REST API on behalf of the current session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sess       *session.Manager
	limiter    *rate.Limiter
	log        zerolog.Logger
	userAgent  string

	Users        *UsersService
	Admins       *AdminsService
	Loans        *LoansService
	Cards        *CardsService
	Deposits     *DepositsService
	Transactions *TransactionsService
	RBAC         *RBACService
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit bounds the outbound request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger overrides the shared logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New constructs a client bound to the session manager. The manager's refresh
// and identity endpoints are wired here so the session package stays free of
// HTTP concerns.
func New(baseURL string, sess *session.Manager, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if sess == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		sess:       sess,
		limiter:    rate.NewLimiter(rate.Limit(20), 10),
		log:        obs.Logger(),
		userAgent:  "qazna-backoffice",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Users = &UsersService{c: c}
	c.Admins = &AdminsService{c: c}
	c.Loans = &LoansService{c: c}
	c.Cards = &CardsService{c: c}
	c.Deposits = &DepositsService{c: c}
	c.Transactions = &TransactionsService{c: c}
	c.RBAC = &RBACService{c: c}

	sess.Bind(c.refreshCredentials, c.resolveIdentity)
	return c, nil
}

// Session exposes the bound session manager.
func (c *Client) Session() *session.Manager { return c.sess }

// do runs the full interceptor protocol: attach the current access token,
// send, and on a 401 outside the auth endpoints perform exactly one
// refresh-and-replay cycle. Everything else maps onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var idemKey string
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		idemKey = ids.NewIdempotencyKey()
	}

	retried := false
	for {
		token := c.sess.AccessToken()
		status, data, apiErr, err := c.send(ctx, method, path, query, body, token, idemKey)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized && !isAuthPath(path) {
			if retried {
				// The freshly minted token was rejected too; nothing left to try.
				_ = c.sess.ClearAuth()
				return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
			}
			retried = true

			if c.sess.RefreshToken() == "" {
				_ = c.sess.ClearAuth()
				return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
			}
			if err := c.sess.Refresh(ctx, token); err != nil {
				_ = c.sess.ClearAuth()
				return fmt.Errorf("%s %s: %w: %w", method, path, ErrSessionExpired, err)
			}
			// Claims may have changed with the rotation; refresh them before
			// the replay but do not fail the call if this fetch loses a race.
			if _, err := c.sess.FetchIdentity(ctx); err != nil {
				c.log.Warn().Err(err).Msg("identity re-fetch after refresh failed")
			}
			c.log.Debug().Str("method", method).Str("path", path).Msg("replaying request after token refresh")
			continue
		}

		if apiErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, apiErr)
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("%s %s: decode payload: %w", method, path, err)
			}
		}
		return nil
	}
}

// send performs a single HTTP round trip and splits the result into the
// envelope payload or a structured API error. Transport and decode problems
// come back as the third return.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, bearer, idemKey string) (int, json.RawMessage, *Error, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", ids.NewRequestID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	obs.ObserveAPIRequest(method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(raw) == 0 {
			return resp.StatusCode, nil, nil, nil
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return 0, nil, nil, fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
		}
		return resp.StatusCode, env.Data, nil, nil
	}
	return resp.StatusCode, nil, parseError(resp.StatusCode, raw), nil
}

// isAuthPath reports whether the endpoint participates in the token lifecycle
// itself. A 401 from these never triggers a refresh cycle.
func isAuthPath(path string) bool {
	switch path {
	case pathLogin, pathRefresh:
		return true
	}
	return false
}
