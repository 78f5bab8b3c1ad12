package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TokenPurger is implemented by repository.TokenRepo.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartTokenJanitor deletes refresh tokens that expired more than
// retention ago, once per interval, until ctx is cancelled.
func StartTokenJanitor(ctx context.Context, p TokenPurger, interval, retention time.Duration, log zerolog.Logger) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cutoff := time.Now().UTC().Add(-retention)
				n, err := p.PurgeExpired(ctx, cutoff)
				if err != nil {
					log.Warn().Err(err).Msg("token janitor: purge failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("purged", n).Msg("token janitor: expired refresh tokens removed")
				}
			}
		}
	}()
}
