package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one unit of periodic background work.
type Job func(ctx context.Context) error

// Every runs job immediately and then on each tick until ctx is cancelled.
func Every(ctx context.Context, name string, interval time.Duration, job Job) {
	logger := log.With().Str("job", name).Logger()
	logger.Info().Dur("interval", interval).Msg("worker started")

	run := func() {
		if err := job(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("worker run failed")
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}

type RateWindowPruner interface {
	PruneRateWindows(ctx context.Context, before time.Time) (int64, error)
}

// PruneTrackingWindows drops per-minute tracking counters older than keep.
func PruneTrackingWindows(pruner RateWindowPruner, keep time.Duration) Job {
	return func(ctx context.Context) error {
		n, err := pruner.PruneRateWindows(ctx, time.Now().Add(-keep))
		if err != nil {
			return err
		}
		if n > 0 {
			log.Debug().Int64("rows", n).Msg("pruned tracking rate windows")
		}
		return nil
	}
}
