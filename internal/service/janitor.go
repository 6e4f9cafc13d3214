package service

import (
	"context"
	"log/slog"
	"time"
)

// sessionPurger is the part of AuthService the janitor drives.
type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionJanitor periodically deletes expired sessions. Expired sessions are
// already rejected on refresh; the janitor only reclaims their storage.
type SessionJanitor struct {
	purger   sessionPurger
	interval time.Duration
	logger   *slog.Logger
}

// NewSessionJanitor creates a janitor. An interval of zero disables it.
func NewSessionJanitor(purger sessionPurger, interval time.Duration, logger *slog.Logger) *SessionJanitor {
	return &SessionJanitor{purger: purger, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *SessionJanitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("session janitor disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	n, err := j.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		j.logger.ErrorContext(ctx, "failed to purge expired sessions",
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "purged expired sessions",
			slog.Int64("count", n),
		)
	}
}
