package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravv01/subshare-sub000/internal/infra/metrics"
	red "github.com/gauravv01/subshare-sub000/internal/infra/redis"
)

const lockKey = "subshare:lock:ledger-reconciler"

// StaleReconciler is the ledger operation the reconciler drives.
type StaleReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// LedgerReconciler periodically fails PENDING transactions whose processor
// call never settled, e.g. after a crash between charge and write-back.
// With a locker only one instance runs a given tick.
type LedgerReconciler struct {
	ledger     StaleReconciler
	locker     red.Locker
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewLedgerReconciler(ledger StaleReconciler, locker red.Locker, interval, staleAfter time.Duration, logger *zerolog.Logger) *LedgerReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	compLog := logger.With().Str("component", "LedgerReconciler").Logger()
	return &LedgerReconciler{
		ledger:     ledger,
		locker:     locker,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &compLog,
	}
}

func (w *LedgerReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting ledger reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping ledger reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns how many rows it failed.
func (w *LedgerReconciler) Tick(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, lockKey, w.interval)
		if errors.Is(err, red.ErrLockHeld) {
			w.log.Debug().Msg("reconcile skipped; another instance holds the lock")
			return 0
		}
		if err != nil {
			w.log.Warn().Err(err).Msg("reconcile lock failed; running unlocked")
		} else {
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("reconcile unlock failed")
				}
			}()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := w.ledger.ReconcileStale(runCtx, w.staleAfter)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile failed")
		return 0
	}
	if n > 0 {
		metrics.AddReconciled(n)
		w.log.Info().Int("count", n).Msg("stale transactions failed")
	}
	return n
}
