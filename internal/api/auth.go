package api

import (
	"context"
	"fmt"
	"net/http"

	"qazna.org/backoffice/internal/authz"
	"qazna.org/backoffice/internal/session"
)

const (
	pathLogin   = "/admins/login"
	pathRefresh = "/admins/refresh"
	pathMe      = "/admins/me"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginPayload struct {
	AdminID      int64    `json:"admin_id"`
	Username     string   `json:"username"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type identityPayload struct {
	AdminID     int64    `json:"admin_id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (p identityPayload) identity() authz.Identity {
	return authz.NewIdentity(p.AdminID, p.Username, authz.Role(p.Role), p.Permissions)
}

// Login authenticates with email and password and installs the resulting
// session. A 401 here means bad credentials, never a refresh trigger.
func (c *Client) Login(ctx context.Context, email, password string) (authz.Identity, error) {
	var payload loginPayload
	if err := c.do(ctx, http.MethodPost, pathLogin, nil, loginRequest{Email: email, Password: password}, &payload); err != nil {
		return authz.Identity{}, err
	}

	id := authz.NewIdentity(payload.AdminID, payload.Username, authz.Role(payload.Role), payload.Permissions)
	if err := c.sess.SetAuth(payload.AccessToken, payload.RefreshToken, &id); err != nil {
		return authz.Identity{}, fmt.Errorf("install session: %w", err)
	}
	c.log.Info().Str("username", id.Username).Msg("logged in")
	return id, nil
}

// Logout clears the session; subscribers (including the notification channel)
// observe the change and shut down.
func (c *Client) Logout() error {
	if err := c.sess.ClearAuth(); err != nil {
		return err
	}
	c.log.Info().Msg("logged out")
	return nil
}

// Me fetches the identity behind the current session through the full
// interceptor protocol and caches it on the session.
func (c *Client) Me(ctx context.Context) (authz.Identity, error) {
	var payload identityPayload
	if err := c.do(ctx, http.MethodGet, pathMe, nil, nil, &payload); err != nil {
		return authz.Identity{}, err
	}
	id := payload.identity()
	c.sess.SetIdentity(id)
	return id, nil
}

// refreshCredentials is the raw refresh grant the session manager is bound
// to. It deliberately bypasses the retry protocol.
func (c *Client) refreshCredentials(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	status, data, apiErr, err := c.send(ctx, http.MethodPost, pathRefresh, nil, refreshRequest{RefreshToken: refreshToken}, "", "")
	if err != nil {
		return session.TokenPair{}, err
	}
	if apiErr != nil {
		return session.TokenPair{}, apiErr
	}
	var payload refreshPayload
	if err := decodePayload(data, &payload); err != nil {
		return session.TokenPair{}, fmt.Errorf("refresh grant (status %d): %w", status, err)
	}
	return session.TokenPair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}, nil
}

// resolveIdentity is the raw identity fetch the session manager is bound to,
// pinned to an explicit access token so replays after rotation cannot race.
func (c *Client) resolveIdentity(ctx context.Context, accessToken string) (authz.Identity, error) {
	_, data, apiErr, err := c.send(ctx, http.MethodGet, pathMe, nil, nil, accessToken, "")
	if err != nil {
		return authz.Identity{}, err
	}
	if apiErr != nil {
		return authz.Identity{}, apiErr
	}
	var payload identityPayload
	if err := decodePayload(data, &payload); err != nil {
		return authz.Identity{}, err
	}
	return payload.identity(), nil
}
