/*

This package computes a pool's total value and per-share value on demand.

A valuation pass never mutates state: it reads tracked balances, collects
venue positions, converts everything into the base asset and divides by the
effective share supply. Persisting the result is a separate operation so that
read paths and the stored accounting price cannot drift apart inside one
commit.

*/

package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/positions"
	"github.com/poolworks/navengine/internal/pricing"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidStore      = errors.New("store is invalid")
	ErrInvalidAggregator = errors.New("position aggregator is invalid")
	ErrInvalidConverter  = errors.New("price converter is invalid")
	ErrInvalidPool       = errors.New("pool is invalid")
)

// Engine computes pool valuations.
type Engine struct {
	store      state.Store
	aggregator *positions.Aggregator
	converter  pricing.Converter
	now        func() time.Time
	logger     zerolog.Logger
}

func NewEngine(store state.Store, aggregator *positions.Aggregator, converter pricing.Converter) (*Engine, error) {
	if store == nil {
		return nil, errors.Join(ErrInvalidStore, errors.New("store is required"))
	}
	if aggregator == nil {
		return nil, errors.Join(ErrInvalidAggregator, errors.New("aggregator is required"))
	}
	if converter == nil {
		return nil, errors.Join(ErrInvalidConverter, errors.New("converter is required"))
	}
	return &Engine{
		store:      store,
		aggregator: aggregator,
		converter:  converter,
		now:        time.Now,
		logger:     logger.GetForComponent("valuation_engine"),
	}, nil
}

// SetClock overrides the engine's time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Compute values the pool right now.
//
// Tracked balances and venue entries denominated in the base asset count at
// face value; everything else goes through the price converter in one batch.
// If the converter has no usable quote the pass returns the unavailable
// sentinel with a nil error: a pricing outage is an answer ("keep using the
// stored value"), not a failure of the engine. Store errors do fail the pass.
func (e *Engine) Compute(ctx context.Context, pool *types.Pool) (types.ValuationResult, error) {
	if pool == nil {
		return types.ValuationResult{}, errors.Join(ErrInvalidPool, errors.New("pool is required"))
	}

	totalValue, err := e.store.GetHolding(ctx, pool.ID, pool.BaseAsset)
	if err != nil {
		return types.ValuationResult{}, fmt.Errorf("failed to read base holding: %w", err)
	}

	entries, err := e.collectEntries(ctx, pool)
	if err != nil {
		return types.ValuationResult{}, err
	}

	// Split base-denominated entries out of the conversion batch.
	var toConvert []types.PositionEntry
	for _, entry := range entries {
		if entry.Token == pool.BaseAsset {
			totalValue = totalValue.Add(entry.Amount)
			continue
		}
		toConvert = append(toConvert, entry)
	}

	if len(toConvert) > 0 {
		values, err := e.converter.ConvertBatch(ctx, toConvert, pool.BaseAsset)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Uint64("poolId", uint64(pool.ID)).
				Msg("Price conversion unavailable; returning sentinel valuation")
			return types.UnavailableValuation(), nil
		}
		if len(values) != len(toConvert) {
			return types.ValuationResult{}, fmt.Errorf("converter returned %d values for %d entries", len(values), len(toConvert))
		}
		for _, value := range values {
			totalValue = totalValue.Add(value)
		}
	}

	return types.ValuationResult{
		TotalValue:    totalValue,
		PerShareValue: e.perShareValue(pool, totalValue),
		Timestamp:     e.now().UTC(),
	}, nil
}

// collectEntries gathers every non-base contribution: tracked balances of
// active assets plus normalized venue positions.
func (e *Engine) collectEntries(ctx context.Context, pool *types.Pool) ([]types.PositionEntry, error) {
	activeAssets, err := e.store.GetActiveAssets(ctx, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active assets: %w", err)
	}

	var entries []types.PositionEntry
	for _, asset := range activeAssets {
		if asset == pool.BaseAsset {
			continue
		}
		balance, err := e.store.GetHolding(ctx, pool.ID, asset)
		if err != nil {
			return nil, fmt.Errorf("failed to read holding for %s: %w", asset, err)
		}
		if balance.IsZero() {
			continue
		}
		entries = append(entries, types.PositionEntry{
			Token:  asset,
			Amount: balance,
		})
	}

	activeVenues, err := e.store.GetActiveVenues(ctx, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active venues: %w", err)
	}
	venueEntries, err := e.aggregator.Collect(ctx, pool.ID, activeVenues)
	if err != nil {
		return nil, fmt.Errorf("position collection failed: %w", err)
	}
	return append(entries, venueEntries...), nil
}

// perShareValue divides the total value by the effective supply at the pool's
// fixed-point scale.
//
// When the effective supply is zero or negative the last stored per-share
// value carries forward, so a pool drained to zero supply keeps its price
// instead of collapsing to zero and re-minting cheap shares later.
func (e *Engine) perShareValue(pool *types.Pool, totalValue sdkmath.Int) sdkmath.Int {
	effectiveSupply := pool.EffectiveSupply()
	if !effectiveSupply.IsPositive() {
		return pool.StoredPerShareValue
	}
	if !totalValue.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return totalValue.Mul(pool.Scale()).Quo(effectiveSupply)
}
