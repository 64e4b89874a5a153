// Package authclient is the client side of the auth service: it holds the
// token pair, injects the bearer token into requests, and coordinates token
// refresh so that concurrent requests hitting a 401 trigger exactly one
// refresh call.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
const DefaultHTTPTimeout = 30 * time.Second

var (
	// ErrNotAuthenticated is returned by Do when the store holds no access token.
	ErrNotAuthenticated = errors.New("authclient: not authenticated")
	// ErrReauthenticationRequired is returned when refresh was rejected by the
	// server; the stored pair has been cleared and the caller must log in again.
	ErrReauthenticationRequired = errors.New("authclient: reauthentication required")
)

// Client talks to the auth service and proxies authenticated requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      CredentialStore
	logger     *slog.Logger

	// refreshGroup deduplicates concurrent refresh attempts.
	refreshGroup singleflight.Group
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the auth service at baseURL using the given store.
func New(baseURL string, store CredentialStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login authenticates with email/password and stores the issued pair.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) error {
	var out tokenResponse
	status, err := c.postJSON(ctx, "/auth/login", loginRequest{
		Email: email, Password: password, RememberMe: rememberMe,
	}, &out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("authclient: login returned %d", status)
	}
	c.store.SetTokens(out.AccessToken, out.RefreshToken)
	return nil
}

// Logout revokes the stored pair server-side and clears the store. The store
// is cleared even when the server call fails; local logout always wins.
func (c *Client) Logout(ctx context.Context) error {
	access, refresh := c.store.Tokens()
	c.store.Clear()
	if access == "" && refresh == "" {
		return nil
	}
	status, err := c.postJSON(ctx, "/auth/logout", map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("authclient: logout returned %d", status)
	}
	return nil
}

// Do sends the request with the stored access token. On a 401 it refreshes
// the access token (one refresh shared across concurrent callers) and replays
// the request at most once. The caller owns the returned response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	access, _ := c.store.Tokens()
	if access == "" {
		return nil, ErrNotAuthenticated
	}

	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	newAccess, err := c.refreshAccess(req.Context(), access)
	if err != nil {
		return nil, err
	}
	return c.send(req, newAccess)
}

// send clones the request, sets the bearer token, and executes it. Cloning
// keeps the original replayable via GetBody.
func (c *Client) send(req *http.Request, accessToken string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	return c.httpClient.Do(clone)
}

// refreshAccess obtains a fresh access token. staleAccess is the token that
// just got a 401: if the store already holds a different one, another caller's
// refresh won the race and no network call is made.
func (c *Client) refreshAccess(ctx context.Context, staleAccess string) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		access, refresh := c.store.Tokens()
		if access != "" && access != staleAccess {
			return access, nil
		}
		if refresh == "" {
			c.store.Clear()
			return nil, ErrReauthenticationRequired
		}

		var out tokenResponse
		status, err := c.postJSON(ctx, "/auth/refresh", map[string]string{
			"refresh_token": refresh,
		}, &out)
		if err != nil {
			// Transport failure: the pair may still be good, keep it.
			return nil, fmt.Errorf("authclient: refresh: %w", err)
		}
		switch {
		case status == http.StatusOK:
			c.store.SetTokens(out.AccessToken, refresh)
			return out.AccessToken, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			// The server rejected the refresh token; the session is over.
			c.store.Clear()
			c.logger.Debug("refresh rejected, pair cleared", "status", status)
			return nil, ErrReauthenticationRequired
		default:
			return nil, fmt.Errorf("authclient: refresh returned %d", status)
		}
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// postJSON posts body to path and decodes a 2xx response into out (if non-nil).
// Returns the HTTP status code.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
