package authclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds one refresh call independently of the
// contexts of the requests waiting on it.
const DefaultRefreshTimeout = 10 * time.Second

const refreshKey = "refresh"

// RefreshFunc exchanges the stored refresh credential for a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// RefreshCoordinator holds the current access token and guarantees that at
// most one refresh is in flight at a time. Requests that discover an expired
// token while a refresh is running wait for that refresh instead of starting
// their own.
type RefreshCoordinator struct {
	refresh RefreshFunc
	timeout time.Duration
	group   singleflight.Group

	mu    sync.RWMutex
	token string
}

// NewRefreshCoordinator creates a coordinator. A timeout of zero uses
// DefaultRefreshTimeout.
func NewRefreshCoordinator(refresh RefreshFunc, timeout time.Duration) *RefreshCoordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &RefreshCoordinator{refresh: refresh, timeout: timeout}
}

// Token returns the current access token.
func (c *RefreshCoordinator) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the current access token.
func (c *RefreshCoordinator) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Refresh returns a fresh access token for a request that was rejected while
// carrying stale. If the current token already differs from stale, a refresh
// finished after that request was sent and its result is returned directly.
// Otherwise the caller joins the in-flight refresh, starting one if none is
// running. The refresh itself is not cancelled when ctx is; ctx only bounds
// how long this caller waits.
func (c *RefreshCoordinator) Refresh(ctx context.Context, stale string) (string, error) {
	if current := c.Token(); current != stale {
		return current, nil
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refreshFrom(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refreshFrom runs one refresh unless the token already moved past stale,
// which happens when a flight settled between the caller's check and its
// joining the group.
func (c *RefreshCoordinator) refreshFrom(ctx context.Context, stale string) (string, error) {
	if current := c.Token(); current != stale {
		return current, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}
	c.SetToken(token)
	return token, nil
}
