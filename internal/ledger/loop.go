package ledger

import (
	"context"
	"time"
)

// systemActor marks journal entries produced by the background loop rather
// than an API caller.
const systemActor = "system"

// RunRefreshLoop periodically refreshes the stored valuation and sweeps the
// registry of every pool. Blocks until the context is cancelled. Per-pool
// failures are logged and skipped so one broken pool cannot stall the rest.
func (l *Ledger) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	l.logger.Info().Str("interval", interval.String()).Msg("Starting refresh loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		l.refreshAll(ctx)

		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Refresh loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (l *Ledger) refreshAll(ctx context.Context) {
	ids, err := l.store.ListPools(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to list pools for refresh")
		return
	}

	for _, id := range ids {
		if _, err := l.RefreshValuation(ctx, id, systemActor); err != nil {
			l.logger.Warn().Err(err).Uint64("poolId", uint64(id)).Msg("Valuation refresh failed")
		}
		if _, err := l.Sweep(ctx, id, systemActor); err != nil {
			l.logger.Warn().Err(err).Uint64("poolId", uint64(id)).Msg("Registry sweep failed")
		}
	}
}
