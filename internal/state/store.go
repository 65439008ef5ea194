// ./internal/state/store.go
package state

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// Error definitions shared by every store implementation.
var (
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPoolExists       = errors.New("pool already exists")
	ErrNegativeBalance  = errors.New("operation would drive a balance negative")
	ErrNotInitialized   = errors.New("store not initialized")
	ErrEffectsViolation = errors.New("operation effects violate store invariants")
)

// Store is the repository every operation works against, keyed by pool
// identity. Reads are plain getters; all durable mutation goes through
// Apply, which commits one OperationEffects batch atomically: either every
// effect lands or none do.
type Store interface {
	CreatePool(ctx context.Context, pool *types.Pool) error
	GetPool(ctx context.Context, id types.PoolID) (*types.Pool, error)

	// ListPools returns every pool ID, ascending.
	ListPools(ctx context.Context) ([]types.PoolID, error)

	// UpdatePoolParams replaces the administratively adjustable settings.
	UpdatePoolParams(ctx context.Context, id types.PoolID, params types.PoolParams) error

	// GetHolder returns a zero-share account (not an error) for holders the
	// pool has never seen.
	GetHolder(ctx context.Context, pool types.PoolID, holder string) (*types.HolderAccount, error)

	// GetHolding returns the pool's balance of one asset; zero if untracked.
	GetHolding(ctx context.Context, pool types.PoolID, asset types.AssetID) (sdkmath.Int, error)

	GetActiveAssets(ctx context.Context, pool types.PoolID) ([]types.AssetID, error)
	IsActiveAsset(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error)

	GetEligibleInputs(ctx context.Context, pool types.PoolID) ([]types.AssetID, error)
	IsEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error)
	SetEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID, eligible bool) error

	GetActiveVenues(ctx context.Context, pool types.PoolID) ([]types.VenueKind, error)

	SetOperator(ctx context.Context, pool types.PoolID, holder, operator string, approved bool) error
	IsOperator(ctx context.Context, pool types.PoolID, holder, operator string) (bool, error)

	SetAllowed(ctx context.Context, pool types.PoolID, holder string, allowed bool) error
	IsAllowed(ctx context.Context, pool types.PoolID, holder string) (bool, error)

	// Apply commits one operation's effects atomically.
	Apply(ctx context.Context, effects *types.OperationEffects) error

	// PriceHistory returns the most recent price points, newest first.
	PriceHistory(ctx context.Context, pool types.PoolID, limit int) ([]types.PricePoint, error)
}
