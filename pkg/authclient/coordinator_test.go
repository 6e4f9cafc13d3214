package authclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCoordinator_ConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	coord := NewRefreshCoordinator(func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "fresh", nil
	}, time.Second)
	coord.SetToken("stale")

	const callers = 5
	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
	)
	results := make([]string, callers)
	errs := make([]error, callers)
	ready.Add(callers)
	done.Add(callers)
	for i := range callers {
		go func() {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = coord.Refresh(context.Background(), "stale")
		}()
	}

	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh", results[i])
	}
	assert.Equal(t, "fresh", coord.Token())
}

func TestRefreshCoordinator_AlreadyRefreshedSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	coord := NewRefreshCoordinator(func(context.Context) (string, error) {
		calls.Add(1)
		return "never", nil
	}, time.Second)
	coord.SetToken("newer")

	token, err := coord.Refresh(context.Background(), "older")
	require.NoError(t, err)
	assert.Equal(t, "newer", token)
	assert.Zero(t, calls.Load())
}

func TestRefreshCoordinator_LateJoinerReusesSettledRefresh(t *testing.T) {
	var calls atomic.Int32
	coord := NewRefreshCoordinator(func(context.Context) (string, error) {
		calls.Add(1)
		return "fresh", nil
	}, time.Second)
	coord.SetToken("stale")

	token, err := coord.Refresh(context.Background(), "stale")
	require.NoError(t, err)
	require.Equal(t, "fresh", token)

	// A caller that checked the token before that flight settled joins the
	// group afterwards with the same stale token.
	ch := coord.group.DoChan(refreshKey, func() (any, error) {
		return coord.refreshFrom(context.Background(), "stale")
	})
	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, "fresh", res.Val)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRefreshCoordinator_FailureReachesEveryWaiterAndClearsSlot(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("refresh rejected")
	release := make(chan struct{})
	coord := NewRefreshCoordinator(func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "", boom
		}
		return "second", nil
	}, time.Second)
	coord.SetToken("stale")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = coord.Refresh(context.Background(), "stale")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "stale", coord.Token())

	// A later refresh starts a new flight.
	token, err := coord.Refresh(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "second", token)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRefreshCoordinator_CancelledWaiterDoesNotCancelRefresh(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	coord := NewRefreshCoordinator(func(ctx context.Context) (string, error) {
		defer close(finished)
		select {
		case <-release:
			return "fresh", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, time.Second)
	coord.SetToken("stale")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(ctx, "stale")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-finished
	assert.Eventually(t, func() bool { return coord.Token() == "fresh" }, time.Second, time.Millisecond)
}

func TestRefreshCoordinator_TimeoutBoundsRefresh(t *testing.T) {
	coord := NewRefreshCoordinator(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, 20*time.Millisecond)

	_, err := coord.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
