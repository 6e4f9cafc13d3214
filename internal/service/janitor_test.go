package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpiredSessions(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSessionJanitor_SweepsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	j := NewSessionJanitor(p, 5*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestSessionJanitor_SurvivesErrors(t *testing.T) {
	p := &countingPurger{err: errors.New("store down")}
	j := NewSessionJanitor(p, 5*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestSessionJanitor_DisabledReturnsImmediately(t *testing.T) {
	p := &countingPurger{}
	j := NewSessionJanitor(p, 0, newTestLogger())

	done := make(chan struct{})
	go func() {
		j.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled janitor should return")
	}
	assert.Zero(t, p.calls.Load())
}
