package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// batchSize caps how many stale payments one run claims.
const batchSize = 50

// Reconciler re-checks stale pending payments with the gateway.
type Reconciler interface {
	ReconcileStale(ctx context.Context, staleAfter, maxAge time.Duration, limit int) (int, error)
}

// StatusCheckWorker re-checks payments whose customer never came back from
// eSewa. The status endpoint is read-only, so repeated checks are safe.
type StatusCheckWorker struct {
	reconciler Reconciler
	interval   time.Duration
	staleAfter time.Duration // how long a payment stays untouched before a re-check
	maxAge     time.Duration // pending payments older than this are cancelled
}

// NewStatusCheckWorker constructs a StatusCheckWorker.
func NewStatusCheckWorker(reconciler Reconciler, interval, staleAfter, maxAge time.Duration) *StatusCheckWorker {
	return &StatusCheckWorker{
		reconciler: reconciler,
		interval:   interval,
		staleAfter: staleAfter,
		maxAge:     maxAge,
	}
}

// Start begins the periodic status check loop until context is canceled.
func (w *StatusCheckWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Dur("stale_after", w.staleAfter).
		Dur("max_age", w.maxAge).
		Msg("Starting status check worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Status check worker stopped")
			return
		}
	}
}

func (w *StatusCheckWorker) run(ctx context.Context) {
	n, err := w.reconciler.ReconcileStale(ctx, w.staleAfter, w.maxAge, batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reconcile stale payments")
		return
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("Re-checked stale pending payments")
	}
}
