// ./internal/state/memory.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/poolworks/navengine/internal/types"
)

// MemoryStore is an in-memory Store used by tests and simulations. It applies
// effect batches atomically under one mutex: every delta is validated before
// anything is written, so a failing batch changes nothing.
type MemoryStore struct {
	mu sync.Mutex

	pools          map[types.PoolID]*types.Pool
	holders        map[types.PoolID]map[string]*types.HolderAccount
	holdings       map[types.PoolID]map[types.AssetID]sdkmath.Int
	activeAssets   map[types.PoolID]map[types.AssetID]bool
	eligibleInputs map[types.PoolID]map[types.AssetID]bool
	activeVenues   map[types.PoolID]map[types.VenueKind]bool
	operators      map[types.PoolID]map[string]map[string]bool
	allowList      map[types.PoolID]map[string]bool
	journal        []types.JournalEntry
	prices         map[types.PoolID][]types.PricePoint
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:          make(map[types.PoolID]*types.Pool),
		holders:        make(map[types.PoolID]map[string]*types.HolderAccount),
		holdings:       make(map[types.PoolID]map[types.AssetID]sdkmath.Int),
		activeAssets:   make(map[types.PoolID]map[types.AssetID]bool),
		eligibleInputs: make(map[types.PoolID]map[types.AssetID]bool),
		activeVenues:   make(map[types.PoolID]map[types.VenueKind]bool),
		operators:      make(map[types.PoolID]map[string]map[string]bool),
		allowList:      make(map[types.PoolID]map[string]bool),
		prices:         make(map[types.PoolID][]types.PricePoint),
	}
}

func copyPool(p *types.Pool) *types.Pool {
	cp := *p
	return &cp
}

// CreatePool inserts a new pool record.
func (s *MemoryStore) CreatePool(ctx context.Context, pool *types.Pool) error {
	if pool == nil {
		return errors.New("pool cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[pool.ID]; exists {
		return fmt.Errorf("%w: %d", ErrPoolExists, pool.ID)
	}
	s.pools[pool.ID] = copyPool(pool)
	return nil
}

// GetPool loads one pool by ID.
func (s *MemoryStore) GetPool(ctx context.Context, id types.PoolID) (*types.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	return copyPool(pool), nil
}

// ListPools returns every pool ID, ascending.
func (s *MemoryStore) ListPools(ctx context.Context) ([]types.PoolID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]types.PoolID, 0, len(s.pools))
	for id := range s.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UpdatePoolParams replaces the administratively adjustable settings.
func (s *MemoryStore) UpdatePoolParams(ctx context.Context, id types.PoolID, params types.PoolParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, ok := s.pools[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	pool.SpreadBps = params.SpreadBps
	pool.LockupDuration = params.LockupDuration
	pool.FeeCollector = params.FeeCollector
	pool.AllowListed = params.AllowListed
	return nil
}

// GetHolder loads one holder account; zero-share account if unseen.
func (s *MemoryStore) GetHolder(ctx context.Context, pool types.PoolID, holder string) (*types.HolderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accounts, ok := s.holders[pool]; ok {
		if acct, ok := accounts[holder]; ok {
			cp := *acct
			return &cp, nil
		}
	}
	return &types.HolderAccount{Holder: holder, Shares: sdkmath.ZeroInt()}, nil
}

// GetHolding returns the pool's balance of one asset; zero if untracked.
func (s *MemoryStore) GetHolding(ctx context.Context, pool types.PoolID, asset types.AssetID) (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balances, ok := s.holdings[pool]; ok {
		if balance, ok := balances[asset]; ok {
			return balance, nil
		}
	}
	return sdkmath.ZeroInt(), nil
}

func sortedAssets(set map[types.AssetID]bool) []types.AssetID {
	assets := make([]types.AssetID, 0, len(set))
	for asset := range set {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	return assets
}

// GetActiveAssets lists the tokens currently counted toward valuation.
func (s *MemoryStore) GetActiveAssets(ctx context.Context, pool types.PoolID) ([]types.AssetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedAssets(s.activeAssets[pool]), nil
}

// IsActiveAsset reports whether one token is in the active set.
func (s *MemoryStore) IsActiveAsset(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAssets[pool][asset], nil
}

// GetEligibleInputs lists tokens accepted as alternate mint input.
func (s *MemoryStore) GetEligibleInputs(ctx context.Context, pool types.PoolID) ([]types.AssetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedAssets(s.eligibleInputs[pool]), nil
}

// IsEligibleInput reports whether one token is accepted as mint input.
func (s *MemoryStore) IsEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibleInputs[pool][asset], nil
}

// SetEligibleInput adds or removes a token from the eligible-input set.
func (s *MemoryStore) SetEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID, eligible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eligibleInputs[pool] == nil {
		s.eligibleInputs[pool] = make(map[types.AssetID]bool)
	}
	if eligible {
		s.eligibleInputs[pool][asset] = true
	} else {
		delete(s.eligibleInputs[pool], asset)
	}
	return nil
}

// GetActiveVenues lists venue kinds flagged active for the pool.
func (s *MemoryStore) GetActiveVenues(ctx context.Context, pool types.PoolID) ([]types.VenueKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var venues []types.VenueKind
	for _, kind := range types.AllVenueKinds {
		if s.activeVenues[pool][kind] {
			venues = append(venues, kind)
		}
	}
	return venues, nil
}

// SetOperator grants or revokes an operator approval for a holder.
func (s *MemoryStore) SetOperator(ctx context.Context, pool types.PoolID, holder, operator string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.operators[pool] == nil {
		s.operators[pool] = make(map[string]map[string]bool)
	}
	if s.operators[pool][holder] == nil {
		s.operators[pool][holder] = make(map[string]bool)
	}
	if approved {
		s.operators[pool][holder][operator] = true
	} else {
		delete(s.operators[pool][holder], operator)
	}
	return nil
}

// IsOperator reports whether operator may act for holder.
func (s *MemoryStore) IsOperator(ctx context.Context, pool types.PoolID, holder, operator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operators[pool][holder][operator], nil
}

// SetAllowed adds or removes a holder from the pool's allow list.
func (s *MemoryStore) SetAllowed(ctx context.Context, pool types.PoolID, holder string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowList[pool] == nil {
		s.allowList[pool] = make(map[string]bool)
	}
	if allowed {
		s.allowList[pool][holder] = true
	} else {
		delete(s.allowList[pool], holder)
	}
	return nil
}

// IsAllowed reports whether a holder is on the allow list.
func (s *MemoryStore) IsAllowed(ctx context.Context, pool types.PoolID, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowList[pool][holder], nil
}

// Apply commits one operation's effects atomically: validation of every
// delta happens before the first write.
func (s *MemoryStore) Apply(ctx context.Context, effects *types.OperationEffects) error {
	if effects == nil {
		return errors.Join(ErrEffectsViolation, errors.New("effects cannot be nil"))
	}
	if effects.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[effects.Pool]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, effects.Pool)
	}

	newSupply := pool.ShareSupply.Add(effects.SupplyDelta)
	if newSupply.IsNegative() {
		return errors.Join(ErrNegativeBalance, fmt.Errorf("share supply would become %s", newSupply))
	}
	newVirtual := pool.VirtualSupply.Add(effects.VirtualSupplyDelta)

	if effects.StoredPerShareValue != nil || effects.StoredTotalValue != nil {
		if effects.StoredPerShareValue == nil || effects.StoredTotalValue == nil || effects.StoredValueAt == nil {
			return errors.Join(ErrEffectsViolation, errors.New("stored valuation must update value, total and timestamp together"))
		}
	}

	newHolders := make(map[string]sdkmath.Int, len(effects.HolderDeltas))
	for _, delta := range effects.HolderDeltas {
		current := newHolders[delta.Holder]
		if current.IsNil() {
			current = sdkmath.ZeroInt()
			if accounts, ok := s.holders[effects.Pool]; ok {
				if acct, ok := accounts[delta.Holder]; ok {
					current = acct.Shares
				}
			}
		}
		next := current.Add(delta.SharesDelta)
		if next.IsNegative() {
			return errors.Join(ErrNegativeBalance,
				fmt.Errorf("holder %s shares would become %s", delta.Holder, next))
		}
		newHolders[delta.Holder] = next
	}

	newHoldings := make(map[types.AssetID]sdkmath.Int, len(effects.HoldingDeltas))
	for _, delta := range effects.HoldingDeltas {
		current := newHoldings[delta.Asset]
		if current.IsNil() {
			current = sdkmath.ZeroInt()
			if balances, ok := s.holdings[effects.Pool]; ok {
				if balance, ok := balances[delta.Asset]; ok {
					current = balance
				}
			}
		}
		next := current.Add(delta.Delta)
		if next.IsNegative() {
			return errors.Join(ErrNegativeBalance,
				fmt.Errorf("holding %s would become %s", delta.Asset, next))
		}
		newHoldings[delta.Asset] = next
	}

	// All checks passed; write everything.
	pool.ShareSupply = newSupply
	pool.VirtualSupply = newVirtual
	if effects.StoredPerShareValue != nil {
		pool.StoredPerShareValue = *effects.StoredPerShareValue
		pool.StoredTotalValue = *effects.StoredTotalValue
		pool.StoredValueAt = *effects.StoredValueAt
	}
	if effects.MarkDeposited {
		pool.EverDeposited = true
	}

	if s.holders[effects.Pool] == nil {
		s.holders[effects.Pool] = make(map[string]*types.HolderAccount)
	}
	for _, delta := range effects.HolderDeltas {
		acct, ok := s.holders[effects.Pool][delta.Holder]
		if !ok {
			acct = &types.HolderAccount{Holder: delta.Holder, Shares: sdkmath.ZeroInt()}
			s.holders[effects.Pool][delta.Holder] = acct
		}
		acct.Shares = newHolders[delta.Holder]
		if delta.LockupExpiry != nil {
			acct.LockupExpiry = *delta.LockupExpiry
		}
	}

	if s.holdings[effects.Pool] == nil {
		s.holdings[effects.Pool] = make(map[types.AssetID]sdkmath.Int)
	}
	for asset, balance := range newHoldings {
		s.holdings[effects.Pool][asset] = balance
	}

	if s.activeAssets[effects.Pool] == nil {
		s.activeAssets[effects.Pool] = make(map[types.AssetID]bool)
	}
	for _, asset := range effects.ActivateAssets {
		s.activeAssets[effects.Pool][asset] = true
	}
	for _, asset := range effects.EvictAssets {
		delete(s.activeAssets[effects.Pool], asset)
	}

	if s.activeVenues[effects.Pool] == nil {
		s.activeVenues[effects.Pool] = make(map[types.VenueKind]bool)
	}
	for _, venue := range effects.ActivateVenues {
		s.activeVenues[effects.Pool][venue] = true
	}
	for _, venue := range effects.DeactivateVenues {
		delete(s.activeVenues[effects.Pool], venue)
	}

	if effects.Journal != nil {
		s.journal = append(s.journal, *effects.Journal)
	}
	if effects.PricePoint != nil {
		s.prices[effects.Pool] = append(s.prices[effects.Pool], *effects.PricePoint)
	}
	return nil
}

// PriceHistory returns the most recent price points, newest first.
func (s *MemoryStore) PriceHistory(ctx context.Context, pool types.PoolID, limit int) ([]types.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.prices[pool]
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}
	points := make([]types.PricePoint, 0, limit)
	for i := len(history) - 1; i >= 0 && len(points) < limit; i-- {
		points = append(points, history[i])
	}
	return points, nil
}

// Journal returns a copy of all journal entries, oldest first.
func (s *MemoryStore) Journal() []types.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]types.JournalEntry, len(s.journal))
	copy(entries, s.journal)
	return entries
}
