package app

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/utils/log"
)

// Watch polls the relay every interval and whenever notify fires, until ctx
// is done. Failed polls are retried with exponential backoff capped at
// maxBackoff. Authentication and expiry failures end the loop. notify may
// be nil.
func (a *App) Watch(ctx context.Context, interval, maxBackoff time.Duration, notify <-chan struct{}) error {
	b := &backoff.Backoff{
		Min:    interval / 4,
		Max:    maxBackoff,
		Factor: 2,
		Jitter: true,
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case _, ok := <-notify:
			if !ok {
				log.Warn("notification channel closed, polling only")
				notify = nil
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		next := interval
		if _, err := a.CheckMessages(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errs.ErrNotAuthenticated) || errors.Is(err, errs.ErrAccountExpired) {
				return err
			}
			next = b.Duration()
			log.Warn("poll failed", zap.Error(err), zap.Duration("retry_in", next), zap.Float64("attempt", b.Attempt()))
		} else {
			b.Reset()
		}
		timer.Reset(next)
	}
}
