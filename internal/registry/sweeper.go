/*

This package maintains the active-asset registry: the set of assets a pool's
valuation loop must price, plus the per-venue activity flags. Assets activate
as a side effect of the operation that first credits them; this package plans
the reverse direction, evicting entries whose balance has returned to exactly
zero and clearing venue flags with no remaining positions behind them.

*/

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/venues"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidStore   = errors.New("store is invalid")
	ErrInvalidReaders = errors.New("venue readers are invalid")
	ErrInvalidPool    = errors.New("pool is invalid")
)

// SweepPlan is the outcome of one sweep pass. Applying an empty plan changes
// nothing, so sweeping twice in a row is a no-op.
type SweepPlan struct {
	EvictAssets      []types.AssetID
	DeactivateVenues []types.VenueKind
}

// Empty reports whether the plan would change the registry at all.
func (p SweepPlan) Empty() bool {
	return len(p.EvictAssets) == 0 && len(p.DeactivateVenues) == 0
}

// Sweeper plans registry cleanup for a pool.
type Sweeper struct {
	store       state.Store
	staking     venues.StakingRegistry
	derivatives venues.DerivativesReader
	liquidity   venues.LiquidityManager
	logger      zerolog.Logger
}

func NewSweeper(store state.Store, staking venues.StakingRegistry, derivatives venues.DerivativesReader, liquidity venues.LiquidityManager) (*Sweeper, error) {
	if store == nil {
		return nil, errors.Join(ErrInvalidStore, errors.New("store is required"))
	}
	if staking == nil || derivatives == nil || liquidity == nil {
		return nil, errors.Join(ErrInvalidReaders, errors.New("all venue readers are required"))
	}
	return &Sweeper{
		store:       store,
		staking:     staking,
		derivatives: derivatives,
		liquidity:   liquidity,
		logger:      logger.GetForComponent("registry_sweeper"),
	}, nil
}

// PlanSweep computes which active assets and venue flags can be retired.
//
// An asset is evicted only when its tracked balance is exactly zero; the base
// asset is never evicted regardless of balance. A venue flag is cleared only
// when its reader positively confirms there is nothing left behind it; a
// reader failure keeps the flag set, so an unreachable venue can never cause
// its positions to silently drop out of valuation.
func (s *Sweeper) PlanSweep(ctx context.Context, pool *types.Pool) (SweepPlan, error) {
	if pool == nil {
		return SweepPlan{}, errors.Join(ErrInvalidPool, errors.New("pool is required"))
	}

	var plan SweepPlan

	activeAssets, err := s.store.GetActiveAssets(ctx, pool.ID)
	if err != nil {
		return SweepPlan{}, fmt.Errorf("failed to list active assets: %w", err)
	}
	for _, asset := range activeAssets {
		if asset == pool.BaseAsset {
			continue
		}
		balance, err := s.store.GetHolding(ctx, pool.ID, asset)
		if err != nil {
			return SweepPlan{}, fmt.Errorf("failed to read holding for %s: %w", asset, err)
		}
		if balance.IsZero() {
			plan.EvictAssets = append(plan.EvictAssets, asset)
		}
	}

	activeVenues, err := s.store.GetActiveVenues(ctx, pool.ID)
	if err != nil {
		return SweepPlan{}, fmt.Errorf("failed to list active venues: %w", err)
	}
	for _, venue := range activeVenues {
		idle, err := s.venueIdle(ctx, pool.ID, venue)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Uint64("poolId", uint64(pool.ID)).
				Str("venue", string(venue)).
				Msg("Venue check failed; keeping the flag set")
			continue
		}
		if idle {
			plan.DeactivateVenues = append(plan.DeactivateVenues, venue)
		}
	}

	return plan, nil
}

// venueIdle reports whether a venue positively confirms it holds nothing for
// the pool.
func (s *Sweeper) venueIdle(ctx context.Context, pool types.PoolID, venue types.VenueKind) (bool, error) {
	switch venue {
	case types.VenueStaking:
		balance, err := s.staking.StakingBalance(ctx, pool)
		if err != nil {
			return false, err
		}
		if balance.Staked.IsNil() || balance.PendingRewards.IsNil() {
			return false, errors.New("staking registry returned nil amounts")
		}
		return balance.Staked.IsZero() && balance.PendingRewards.IsZero(), nil

	case types.VenueDerivatives:
		positions, err := s.derivatives.RawPositions(ctx, pool)
		if err != nil {
			return false, err
		}
		if len(positions) > 0 {
			return false, nil
		}
		orders, err := s.derivatives.PendingOrders(ctx, pool)
		if err != nil {
			return false, err
		}
		if len(orders) > 0 {
			return false, nil
		}
		fees, err := s.derivatives.ClaimableFees(ctx, pool)
		if err != nil {
			return false, err
		}
		return len(fees) == 0, nil

	case types.VenueLiquidity:
		positions, err := s.liquidity.LiquidityPositions(ctx, pool)
		if err != nil {
			return false, err
		}
		return len(positions) == 0, nil

	default:
		return false, fmt.Errorf("unknown venue kind: %s", venue)
	}
}
