package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
	"github.com/wnsxk2/jt-log/pkg/httpclient"
)

// fakeAPI is a minimal auth API: sign-in issues t0 and cookie r0, refresh
// trades r0 for t1, and /api/data only accepts t1.
type fakeAPI struct {
	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
	logoutCookie atomic.Value
	refreshDelay time.Duration
	refreshFails bool
	alwaysExpire bool
	dataCode     string

	mu       sync.Mutex
	accepted []string
}

// acceptedTokens returns the bearer tokens /api/data accepted, in order.
func (f *fakeAPI) acceptedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.accepted...)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathSignIn, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r0", Path: "/api/auth", HttpOnly: true})
		writeData(w, http.StatusCreated, map[string]string{"accessToken": "t0", "id": "u-1", "email": "a@b.com"})
	})
	mux.HandleFunc("POST "+PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		time.Sleep(f.refreshDelay)
		c, err := r.Cookie("refresh_token")
		if f.refreshFails || err != nil || c.Value != "r0" {
			writeError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "invalid refresh token")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r1", Path: "/api/auth", HttpOnly: true})
		writeData(w, http.StatusCreated, map[string]string{"accessToken": "t1", "id": "u-1", "email": "a@b.com"})
	})
	mux.HandleFunc("POST "+PathLogout, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("refresh_token"); err == nil {
			f.logoutCookie.Store(c.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/api/auth", MaxAge: -1})
		writeData(w, http.StatusCreated, map[string]string{"message": "bye"})
	})
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		f.dataCalls.Add(1)
		if f.dataCode != "" {
			writeError(w, http.StatusUnauthorized, f.dataCode, "rejected")
			return
		}
		if f.alwaysExpire || r.Header.Get("Authorization") != "Bearer t1" {
			writeError(w, http.StatusUnauthorized, apperrors.CodeTokenExpired, "expired")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		f.accepted = append(f.accepted, token)
		f.mu.Unlock()
		writeData(w, http.StatusOK, map[string]any{"ok": true, "token": token})
	})
	return mux
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"result": "success", "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"result": "error",
		"error":  map[string]string{"code": code, "message": message},
	})
}

func newSignedInClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.RefreshTimeout = 5 * time.Second
	c, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	id, err := c.SignIn(context.Background(), "a@b.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, "t0", id.AccessToken)
	return c
}

var dataRequest = Request{Method: http.MethodGet, Path: "/api/data"}

func TestClient_ExpiredTokenRefreshesAndRetries(t *testing.T) {
	api := &fakeAPI{}
	c := newSignedInClient(t, api)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Do(context.Background(), dataRequest, &out))
	assert.True(t, out.OK)
	assert.Equal(t, "t1", c.AccessToken())
	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, int32(2), api.dataCalls.Load())
}

func TestClient_ConcurrentExpiredRequestsRefreshOnce(t *testing.T) {
	api := &fakeAPI{refreshDelay: 100 * time.Millisecond}
	c := newSignedInClient(t, api)

	type dataResponse struct {
		OK    bool   `json:"ok"`
		Token string `json:"token"`
	}

	const requests = 5
	var wg sync.WaitGroup
	errs := make([]error, requests)
	outs := make([]dataResponse, requests)
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), dataRequest, &outs[i])
		}()
	}
	wg.Wait()

	for i := range requests {
		require.NoError(t, errs[i])
		assert.True(t, outs[i].OK)
		assert.Equal(t, "t1", outs[i].Token, "request %d replayed with a different token", i)
	}
	assert.Equal(t, []string{"t1", "t1", "t1", "t1", "t1"}, api.acceptedTokens())
	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, "t1", c.AccessToken())
}

func TestClient_RefreshFailureReachesEveryRequest(t *testing.T) {
	api := &fakeAPI{refreshFails: true, refreshDelay: 50 * time.Millisecond}
	c := newSignedInClient(t, api)

	const requests = 3
	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), dataRequest, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRefreshFailed)
		var apiErr *httpclient.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apperrors.CodeTokenExpired, apiErr.Code)
	}
	assert.Equal(t, "t0", c.AccessToken())
}

func TestClient_RetriesAtMostOnce(t *testing.T) {
	api := &fakeAPI{alwaysExpire: true}
	c := newSignedInClient(t, api)

	err := c.Do(context.Background(), dataRequest, nil)
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apperrors.CodeTokenExpired, apiErr.Code)
	assert.False(t, errors.Is(err, ErrRefreshFailed))
	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, int32(2), api.dataCalls.Load())
}

func TestClient_OtherUnauthorizedDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{dataCode: apperrors.CodeUnauthorized}
	c := newSignedInClient(t, api)

	err := c.Do(context.Background(), dataRequest, nil)
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, apperrors.CodeUnauthorized, apiErr.Code)
	assert.Zero(t, api.refreshCalls.Load())
	assert.Equal(t, int32(1), api.dataCalls.Load())
}

func TestClient_LogoutSendsCookieAndForgetsToken(t *testing.T) {
	api := &fakeAPI{}
	c := newSignedInClient(t, api)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, "r0", api.logoutCookie.Load())
	assert.Empty(t, c.AccessToken())
}
