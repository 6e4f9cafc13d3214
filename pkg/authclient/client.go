// Package authclient is an HTTP client for the auth API that keeps its
// access token fresh. A request rejected with TOKEN_EXPIRED triggers one
// shared refresh and is then replayed once with the new token.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/httpclient"
)

// ErrRefreshFailed is joined with the original rejection when the access
// token could not be refreshed.
var ErrRefreshFailed = errors.New("authclient: refresh failed")

// API paths.
const (
	PathSignUp    = "/api/auth/sign-up"
	PathSignIn    = "/api/auth/sign-in"
	PathRefresh   = "/api/auth/refresh"
	PathLogout    = "/api/auth/logout"
	PathLogoutAll = "/api/auth/logout-all"
)

// Config holds client configuration.
type Config struct {
	BaseURL        string
	HTTP           httpclient.Config
	RefreshTimeout time.Duration
	Breaker        httpclient.CircuitBreakerConfig
}

// DefaultConfig returns defaults for a client talking to baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		HTTP:           httpclient.DefaultConfig(),
		RefreshTimeout: DefaultRefreshTimeout,
		Breaker:        httpclient.DefaultCircuitBreakerConfig("auth-refresh"),
	}
}

// Request describes one API call. Body, if set, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Client calls the auth API. The refresh token lives in the client's cookie
// jar and never leaves it; the access token is held by the coordinator.
type Client struct {
	baseURL string
	http    httpclient.Doer
	refresh httpclient.Doer
	coord   *RefreshCoordinator
	logger  *slog.Logger
}

// New creates a client. Ordinary calls go through the retrying HTTP client.
// Refresh calls are never retried, since a replayed refresh would present an
// already rotated token, and are guarded by a circuit breaker instead.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpCfg := cfg.HTTP
	httpCfg.Jar = jar
	refreshCfg := httpCfg
	refreshCfg.MaxRetries = 0

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpclient.New(httpCfg),
		refresh: httpclient.NewCircuitBreakerClient(httpclient.New(refreshCfg), cfg.Breaker, logger),
		logger:  logger,
	}
	c.coord = NewRefreshCoordinator(c.refreshAccessToken, cfg.RefreshTimeout)
	return c, nil
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	return c.coord.Token()
}

// Do sends req with the current access token and decodes the data of a
// successful response into out, which may be nil. A TOKEN_EXPIRED rejection
// is answered by refreshing and replaying the request once. Any other
// failure is returned as is, non-2xx responses as *httpclient.APIError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := encodeBody(req.Body)
	if err != nil {
		return err
	}

	token := c.coord.Token()
	err = c.send(ctx, c.http, req, body, token, out)

	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) || !isTokenExpired(apiErr) {
		return err
	}

	fresh, refreshErr := c.coord.Refresh(ctx, token)
	if refreshErr != nil {
		c.logger.WarnContext(ctx, "access token refresh failed",
			slog.String("path", req.Path),
			slog.String("error", refreshErr.Error()),
		)
		return errors.Join(apiErr, ErrRefreshFailed, refreshErr)
	}

	// The replay is final: a second TOKEN_EXPIRED is returned, not refreshed.
	return c.send(ctx, c.http, req, body, fresh, out)
}

// SignUpResult is the data of a successful sign-up.
type SignUpResult struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// SignUp creates an account. It does not sign in.
func (c *Client) SignUp(ctx context.Context, email, password, nickname string) (*SignUpResult, error) {
	var res SignUpResult
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathSignUp,
		Body:   map[string]string{"email": email, "password": password, "nickname": nickname},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Identity is the data returned by sign-in and refresh.
type Identity struct {
	AccessToken string `json:"accessToken"`
	ID          string `json:"id"`
	Email       string `json:"email"`
}

// SignIn authenticates with a password and stores the issued tokens.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	body, err := encodeBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var id Identity
	req := Request{Method: http.MethodPost, Path: PathSignIn}
	if err := c.send(ctx, c.http, req, body, "", &id); err != nil {
		return nil, err
	}
	c.coord.SetToken(id.AccessToken)
	return &id, nil
}

// Logout ends the current session and forgets the access token. The server
// answers success even when no session exists.
func (c *Client) Logout(ctx context.Context) error {
	req := Request{Method: http.MethodPost, Path: PathLogout}
	err := c.send(ctx, c.http, req, nil, "", nil)
	c.coord.SetToken("")
	return err
}

// LogoutAll ends every session of the signed-in user and returns how many
// there were.
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: PathLogoutAll}, &res); err != nil {
		return 0, err
	}
	c.coord.SetToken("")
	return res.Count, nil
}

func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	var id Identity
	req := Request{Method: http.MethodPost, Path: PathRefresh}
	if err := c.send(ctx, c.refresh, req, nil, "", &id); err != nil {
		return "", err
	}
	if id.AccessToken == "" {
		return "", errors.New("refresh response carried no access token")
	}
	return id.AccessToken, nil
}

type envelope struct {
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
}

func (c *Client) send(ctx context.Context, doer httpclient.Doer, req Request, body []byte, token string, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := doer.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return b, nil
}

func isTokenExpired(err *httpclient.APIError) bool {
	return err.Status == http.StatusUnauthorized && err.Code == apperrors.CodeTokenExpired
}
