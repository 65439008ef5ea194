/*

This package is the orchestrator for every state-changing pool operation:
share issuance and redemption, valuation refresh, registry sweep, guarded
asset transfers and settlement adjustments. Each operation validates its
inputs, reads whatever it needs, computes one OperationEffects batch and
commits it through the store in a single atomic step.

One operation per pool runs at a time. The in-progress flag is acquired up
front and released on every exit path, so a failed operation can never wedge
its pool.

*/

package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/pricing"
	"github.com/poolworks/navengine/internal/registry"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/valuation"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidStore         = errors.New("store is invalid")
	ErrInvalidEngine        = errors.New("valuation engine is invalid")
	ErrInvalidSweeper       = errors.New("sweeper is invalid")
	ErrInvalidConverter     = errors.New("price converter is invalid")
	ErrInvalidParams        = errors.New("operation parameters are invalid")
	ErrOperationInProgress  = errors.New("another operation is in progress for this pool")
	ErrDepositTooSmall      = errors.New("deposit is below the minimum")
	ErrIneligibleInput      = errors.New("asset is not an eligible deposit input")
	ErrValuationUnavailable = errors.New("valuation is unavailable")
	ErrNoPrice              = errors.New("no usable price")
	ErrZeroShares           = errors.New("operation rounds to zero shares")
	ErrSlippage             = errors.New("output is below the caller's minimum")
	ErrZeroOutput           = errors.New("operation rounds to zero output")
	ErrLockupActive         = errors.New("holder lockup has not elapsed")
	ErrInsufficientShares   = errors.New("holder has insufficient shares")
	ErrInsufficientHolding  = errors.New("pool holding is insufficient")
	ErrNotAllowed           = errors.New("recipient is not on the allow list")
	ErrNotOperator          = errors.New("actor is not an approved operator")
	ErrAssetInactive        = errors.New("asset is not active for this pool")
)

const bpsDenominator = 10_000

// Ledger coordinates all mutating pool operations.
type Ledger struct {
	store      state.Store
	engine     *valuation.Engine
	sweeper    *registry.Sweeper
	converter  pricing.Converter
	minDeposit sdkmath.Int
	now        func() time.Time
	logger     zerolog.Logger

	mu         sync.Mutex
	inProgress map[types.PoolID]bool
}

// NewLedger wires the orchestrator. minDeposit is expressed in base-asset
// base units and applies to the converted value of alternate-asset deposits
// as well.
func NewLedger(store state.Store, engine *valuation.Engine, sweeper *registry.Sweeper, converter pricing.Converter, minDeposit uint64) (*Ledger, error) {
	if store == nil {
		return nil, errors.Join(ErrInvalidStore, errors.New("store is required"))
	}
	if engine == nil {
		return nil, errors.Join(ErrInvalidEngine, errors.New("valuation engine is required"))
	}
	if sweeper == nil {
		return nil, errors.Join(ErrInvalidSweeper, errors.New("sweeper is required"))
	}
	if converter == nil {
		return nil, errors.Join(ErrInvalidConverter, errors.New("price converter is required"))
	}
	return &Ledger{
		store:      store,
		engine:     engine,
		sweeper:    sweeper,
		converter:  converter,
		minDeposit: sdkmath.NewIntFromUint64(minDeposit),
		now:        time.Now,
		logger:     logger.GetForComponent("ledger"),
		inProgress: make(map[types.PoolID]bool),
	}, nil
}

// SetClock overrides the ledger's time source. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// begin marks the pool busy and returns the release function. The release is
// idempotent and must run on every exit path.
func (l *Ledger) begin(pool types.PoolID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inProgress[pool] {
		return nil, errors.Join(ErrOperationInProgress, fmt.Errorf("pool %d", pool))
	}
	l.inProgress[pool] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inProgress, pool)
			l.mu.Unlock()
		})
	}, nil
}

// spreadSplit splits a gross share amount into the fee taken by the spread
// and the net remainder. The fee floors, so net + fee always equals gross.
func spreadSplit(gross sdkmath.Int, spreadBps uint32) (net, fee sdkmath.Int) {
	fee = gross.MulRaw(int64(spreadBps)).QuoRaw(bpsDenominator)
	return gross.Sub(fee), fee
}
