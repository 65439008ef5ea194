// ./internal/state/postgres.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/types"
)

// PostgresStore is the durable Store implementation backed by PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore wraps an initialized connection pool.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	return &PostgresStore{
		db:     db,
		logger: logger.GetForComponent("state"),
	}, nil
}

// scanNumeric parses a NUMERIC column (scanned as string) into an Int.
func scanNumeric(raw string, column string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("column %s holds unparseable numeric %q", column, raw)
	}
	return amount, nil
}

// CreatePool inserts a new pool record. Pools are created once and never
// destroyed.
func (s *PostgresStore) CreatePool(ctx context.Context, pool *types.Pool) error {
	if pool == nil {
		return errors.New("pool cannot be nil")
	}
	stmt := `
		INSERT INTO pools (
			pool_id, name, base_asset, base_decimals,
			share_supply, virtual_supply,
			stored_per_share_value, stored_total_value, stored_value_at,
			spread_bps, lockup_seconds, fee_collector, allow_listed,
			ever_deposited, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (pool_id) DO NOTHING;`

	res, err := s.db.ExecContext(ctx, stmt,
		uint64(pool.ID), pool.Name, string(pool.BaseAsset), pool.BaseDecimals,
		pool.ShareSupply.String(), pool.VirtualSupply.String(),
		pool.StoredPerShareValue.String(), pool.StoredTotalValue.String(), pool.StoredValueAt,
		pool.SpreadBps, int64(pool.LockupDuration/time.Second), pool.FeeCollector, pool.AllowListed,
		pool.EverDeposited, pool.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool %d: %w", pool.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pool insert result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrPoolExists, pool.ID)
	}

	s.logger.Info().
		Uint64("poolId", uint64(pool.ID)).
		Str("baseAsset", string(pool.BaseAsset)).
		Msg("Created pool")
	return nil
}

// GetPool loads one pool by ID.
func (s *PostgresStore) GetPool(ctx context.Context, id types.PoolID) (*types.Pool, error) {
	query := `
		SELECT name, base_asset, base_decimals,
		       share_supply, virtual_supply,
		       stored_per_share_value, stored_total_value, stored_value_at,
		       spread_bps, lockup_seconds, fee_collector, allow_listed,
		       ever_deposited, created_at
		FROM pools WHERE pool_id = $1;`

	var (
		pool          = types.Pool{ID: id}
		supply        string
		virtual       string
		perShare      string
		total         string
		storedAt      sql.NullTime
		lockupSeconds int64
	)
	row := s.db.QueryRowContext(ctx, query, uint64(id))
	err := row.Scan(
		&pool.Name, &pool.BaseAsset, &pool.BaseDecimals,
		&supply, &virtual,
		&perShare, &total, &storedAt,
		&pool.SpreadBps, &lockupSeconds, &pool.FeeCollector, &pool.AllowListed,
		&pool.EverDeposited, &pool.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
		}
		return nil, fmt.Errorf("failed to scan pool %d: %w", id, err)
	}

	if pool.ShareSupply, err = scanNumeric(supply, "share_supply"); err != nil {
		return nil, err
	}
	if pool.VirtualSupply, err = scanNumeric(virtual, "virtual_supply"); err != nil {
		return nil, err
	}
	if pool.StoredPerShareValue, err = scanNumeric(perShare, "stored_per_share_value"); err != nil {
		return nil, err
	}
	if pool.StoredTotalValue, err = scanNumeric(total, "stored_total_value"); err != nil {
		return nil, err
	}
	if storedAt.Valid {
		pool.StoredValueAt = storedAt.Time
	}
	pool.LockupDuration = time.Duration(lockupSeconds) * time.Second
	return &pool, nil
}

// ListPools returns every pool ID, ascending.
func (s *PostgresStore) ListPools(ctx context.Context) ([]types.PoolID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pool_id FROM pools ORDER BY pool_id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var ids []types.PoolID
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pool row: %w", err)
		}
		ids = append(ids, types.PoolID(id))
	}
	return ids, rows.Err()
}

// UpdatePoolParams replaces the administratively adjustable settings.
func (s *PostgresStore) UpdatePoolParams(ctx context.Context, id types.PoolID, params types.PoolParams) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pools SET spread_bps = $2, lockup_seconds = $3, fee_collector = $4, allow_listed = $5 WHERE pool_id = $1;`,
		uint64(id), params.SpreadBps, int64(params.LockupDuration/time.Second), params.FeeCollector, params.AllowListed)
	if err != nil {
		return fmt.Errorf("failed to update pool %d params: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pool update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	return nil
}

// GetHolder loads one holder account, returning a zero-share account for
// holders the pool has never seen.
func (s *PostgresStore) GetHolder(ctx context.Context, pool types.PoolID, holder string) (*types.HolderAccount, error) {
	query := `SELECT shares, lockup_expiry FROM holder_accounts WHERE pool_id = $1 AND holder = $2;`

	var (
		shares string
		expiry time.Time
	)
	err := s.db.QueryRowContext(ctx, query, uint64(pool), holder).Scan(&shares, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &types.HolderAccount{Holder: holder, Shares: sdkmath.ZeroInt()}, nil
		}
		return nil, fmt.Errorf("failed to scan holder %s: %w", holder, err)
	}

	amount, err := scanNumeric(shares, "shares")
	if err != nil {
		return nil, err
	}
	return &types.HolderAccount{Holder: holder, Shares: amount, LockupExpiry: expiry}, nil
}

// GetHolding returns the pool's balance of one asset; zero if untracked.
func (s *PostgresStore) GetHolding(ctx context.Context, pool types.PoolID, asset types.AssetID) (sdkmath.Int, error) {
	query := `SELECT balance FROM pool_holdings WHERE pool_id = $1 AND asset = $2;`

	var balance string
	err := s.db.QueryRowContext(ctx, query, uint64(pool), string(asset)).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.Int{}, fmt.Errorf("failed to scan holding %s: %w", asset, err)
	}
	return scanNumeric(balance, "balance")
}

func (s *PostgresStore) listAssets(ctx context.Context, table string, pool types.PoolID) ([]types.AssetID, error) {
	query := fmt.Sprintf(`SELECT asset FROM %s WHERE pool_id = $1 ORDER BY asset;`, table)
	rows, err := s.db.QueryContext(ctx, query, uint64(pool))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var assets []types.AssetID
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		assets = append(assets, types.AssetID(asset))
	}
	return assets, rows.Err()
}

func (s *PostgresStore) assetPresent(ctx context.Context, table string, pool types.PoolID, asset types.AssetID) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE pool_id = $1 AND asset = $2;`, table)
	var one int
	err := s.db.QueryRowContext(ctx, query, uint64(pool), string(asset)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return true, nil
}

// GetActiveAssets lists the tokens currently counted toward valuation.
func (s *PostgresStore) GetActiveAssets(ctx context.Context, pool types.PoolID) ([]types.AssetID, error) {
	return s.listAssets(ctx, "active_assets", pool)
}

// IsActiveAsset reports whether one token is in the active set.
func (s *PostgresStore) IsActiveAsset(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error) {
	return s.assetPresent(ctx, "active_assets", pool, asset)
}

// GetEligibleInputs lists tokens accepted as alternate mint input.
func (s *PostgresStore) GetEligibleInputs(ctx context.Context, pool types.PoolID) ([]types.AssetID, error) {
	return s.listAssets(ctx, "eligible_inputs", pool)
}

// IsEligibleInput reports whether one token is accepted as mint input.
func (s *PostgresStore) IsEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID) (bool, error) {
	return s.assetPresent(ctx, "eligible_inputs", pool, asset)
}

// SetEligibleInput adds or removes a token from the eligible-input set.
func (s *PostgresStore) SetEligibleInput(ctx context.Context, pool types.PoolID, asset types.AssetID, eligible bool) error {
	var err error
	if eligible {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO eligible_inputs (pool_id, asset) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			uint64(pool), string(asset))
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM eligible_inputs WHERE pool_id = $1 AND asset = $2;`,
			uint64(pool), string(asset))
	}
	if err != nil {
		return fmt.Errorf("failed to update eligible input %s: %w", asset, err)
	}
	return nil
}

// GetActiveVenues lists venue kinds flagged active for the pool.
func (s *PostgresStore) GetActiveVenues(ctx context.Context, pool types.PoolID) ([]types.VenueKind, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT venue FROM active_venues WHERE pool_id = $1 ORDER BY venue;`, uint64(pool))
	if err != nil {
		return nil, fmt.Errorf("failed to query active venues: %w", err)
	}
	defer rows.Close()

	var venues []types.VenueKind
	for rows.Next() {
		var venue string
		if err := rows.Scan(&venue); err != nil {
			return nil, fmt.Errorf("failed to scan venue row: %w", err)
		}
		venues = append(venues, types.VenueKind(venue))
	}
	return venues, rows.Err()
}

// SetOperator grants or revokes an operator approval for a holder.
func (s *PostgresStore) SetOperator(ctx context.Context, pool types.PoolID, holder, operator string, approved bool) error {
	var err error
	if approved {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO operator_approvals (pool_id, holder, operator) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`,
			uint64(pool), holder, operator)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM operator_approvals WHERE pool_id = $1 AND holder = $2 AND operator = $3;`,
			uint64(pool), holder, operator)
	}
	if err != nil {
		return fmt.Errorf("failed to update operator approval: %w", err)
	}
	return nil
}

// IsOperator reports whether operator may act for holder.
func (s *PostgresStore) IsOperator(ctx context.Context, pool types.PoolID, holder, operator string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM operator_approvals WHERE pool_id = $1 AND holder = $2 AND operator = $3;`,
		uint64(pool), holder, operator).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query operator approval: %w", err)
	}
	return true, nil
}

// SetAllowed adds or removes a holder from the pool's allow list.
func (s *PostgresStore) SetAllowed(ctx context.Context, pool types.PoolID, holder string, allowed bool) error {
	var err error
	if allowed {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO allow_list (pool_id, holder) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			uint64(pool), holder)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM allow_list WHERE pool_id = $1 AND holder = $2;`,
			uint64(pool), holder)
	}
	if err != nil {
		return fmt.Errorf("failed to update allow list: %w", err)
	}
	return nil
}

// IsAllowed reports whether a holder is on the allow list.
func (s *PostgresStore) IsAllowed(ctx context.Context, pool types.PoolID, holder string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM allow_list WHERE pool_id = $1 AND holder = $2;`,
		uint64(pool), holder).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query allow list: %w", err)
	}
	return true, nil
}

// Apply commits one operation's effects in a single database transaction.
// The pool row is locked for the duration so supply arithmetic is read-
// modify-write safe even across processes.
func (s *PostgresStore) Apply(ctx context.Context, effects *types.OperationEffects) error {
	if effects == nil {
		return errors.Join(ErrEffectsViolation, errors.New("effects cannot be nil"))
	}
	if effects.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	var (
		supply  string
		virtual string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT share_supply, virtual_supply FROM pools WHERE pool_id = $1 FOR UPDATE;`,
		uint64(effects.Pool)).Scan(&supply, &virtual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: %d", ErrPoolNotFound, effects.Pool)
		}
		return err
	}

	shareSupply, err := scanNumeric(supply, "share_supply")
	if err != nil {
		return err
	}
	virtualSupply, err := scanNumeric(virtual, "virtual_supply")
	if err != nil {
		return err
	}

	newSupply := shareSupply.Add(effects.SupplyDelta)
	if newSupply.IsNegative() {
		err = errors.Join(ErrNegativeBalance, fmt.Errorf("share supply would become %s", newSupply))
		return err
	}
	newVirtual := virtualSupply.Add(effects.VirtualSupplyDelta)

	_, err = tx.ExecContext(ctx,
		`UPDATE pools SET share_supply = $2, virtual_supply = $3 WHERE pool_id = $1;`,
		uint64(effects.Pool), newSupply.String(), newVirtual.String())
	if err != nil {
		return fmt.Errorf("failed to update pool supply: %w", err)
	}

	if effects.StoredPerShareValue != nil || effects.StoredTotalValue != nil {
		if effects.StoredPerShareValue == nil || effects.StoredTotalValue == nil || effects.StoredValueAt == nil {
			err = errors.Join(ErrEffectsViolation, errors.New("stored valuation must update value, total and timestamp together"))
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE pools SET stored_per_share_value = $2, stored_total_value = $3, stored_value_at = $4 WHERE pool_id = $1;`,
			uint64(effects.Pool), effects.StoredPerShareValue.String(), effects.StoredTotalValue.String(), *effects.StoredValueAt)
		if err != nil {
			return fmt.Errorf("failed to update stored valuation: %w", err)
		}
	}

	if effects.MarkDeposited {
		if _, err = tx.ExecContext(ctx,
			`UPDATE pools SET ever_deposited = TRUE WHERE pool_id = $1;`, uint64(effects.Pool)); err != nil {
			return fmt.Errorf("failed to mark pool deposited: %w", err)
		}
	}

	for _, delta := range effects.HolderDeltas {
		if err = applyHolderDelta(ctx, tx, effects.Pool, delta); err != nil {
			return err
		}
	}

	for _, delta := range effects.HoldingDeltas {
		if err = applyHoldingDelta(ctx, tx, effects.Pool, delta); err != nil {
			return err
		}
	}

	for _, asset := range effects.ActivateAssets {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO active_assets (pool_id, asset) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			uint64(effects.Pool), string(asset)); err != nil {
			return fmt.Errorf("failed to activate asset %s: %w", asset, err)
		}
	}
	for _, asset := range effects.EvictAssets {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM active_assets WHERE pool_id = $1 AND asset = $2;`,
			uint64(effects.Pool), string(asset)); err != nil {
			return fmt.Errorf("failed to evict asset %s: %w", asset, err)
		}
	}
	for _, venue := range effects.ActivateVenues {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO active_venues (pool_id, venue) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
			uint64(effects.Pool), string(venue)); err != nil {
			return fmt.Errorf("failed to activate venue %s: %w", venue, err)
		}
	}
	for _, venue := range effects.DeactivateVenues {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM active_venues WHERE pool_id = $1 AND venue = $2;`,
			uint64(effects.Pool), string(venue)); err != nil {
			return fmt.Errorf("failed to deactivate venue %s: %w", venue, err)
		}
	}

	if effects.Journal != nil {
		entry := effects.Journal
		_, err = tx.ExecContext(ctx,
			`INSERT INTO operation_journal (operation_id, pool_id, kind, actor, asset, asset_amount, share_amount, fee_shares, op_timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
			entry.OperationID, uint64(entry.Pool), string(entry.Kind), entry.Actor, string(entry.Asset),
			entry.AssetAmount.String(), entry.ShareAmount.String(), entry.FeeShares.String(), entry.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
	}

	if effects.PricePoint != nil {
		point := effects.PricePoint
		_, err = tx.ExecContext(ctx,
			`INSERT INTO price_history (pool_id, per_share_value, total_value, price_timestamp) VALUES ($1, $2, $3, $4);`,
			uint64(point.Pool), point.PerShareValue.String(), point.TotalValue.String(), point.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert price point: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Uint64("poolId", uint64(effects.Pool)).
		Str("supplyDelta", effects.SupplyDelta.String()).
		Int("holderDeltas", len(effects.HolderDeltas)).
		Int("holdingDeltas", len(effects.HoldingDeltas)).
		Msg("Applied operation effects")
	return nil
}

func applyHolderDelta(ctx context.Context, tx *sql.Tx, pool types.PoolID, delta types.HolderDelta) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT shares FROM holder_accounts WHERE pool_id = $1 AND holder = $2 FOR UPDATE;`,
		uint64(pool), delta.Holder).Scan(&current)

	var shares sdkmath.Int
	switch {
	case errors.Is(err, sql.ErrNoRows):
		shares = sdkmath.ZeroInt()
	case err != nil:
		return fmt.Errorf("failed to lock holder %s: %w", delta.Holder, err)
	default:
		if shares, err = scanNumeric(current, "shares"); err != nil {
			return err
		}
	}

	newShares := shares.Add(delta.SharesDelta)
	if newShares.IsNegative() {
		return errors.Join(ErrNegativeBalance,
			fmt.Errorf("holder %s shares would become %s", delta.Holder, newShares))
	}

	if delta.LockupExpiry != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO holder_accounts (pool_id, holder, shares, lockup_expiry) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (pool_id, holder) DO UPDATE SET shares = $3, lockup_expiry = $4;`,
			uint64(pool), delta.Holder, newShares.String(), *delta.LockupExpiry)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO holder_accounts (pool_id, holder, shares, lockup_expiry) VALUES ($1, $2, $3, 'epoch')
			 ON CONFLICT (pool_id, holder) DO UPDATE SET shares = $3;`,
			uint64(pool), delta.Holder, newShares.String())
	}
	if err != nil {
		return fmt.Errorf("failed to update holder %s: %w", delta.Holder, err)
	}
	return nil
}

func applyHoldingDelta(ctx context.Context, tx *sql.Tx, pool types.PoolID, delta types.HoldingDelta) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM pool_holdings WHERE pool_id = $1 AND asset = $2 FOR UPDATE;`,
		uint64(pool), string(delta.Asset)).Scan(&current)

	var balance sdkmath.Int
	switch {
	case errors.Is(err, sql.ErrNoRows):
		balance = sdkmath.ZeroInt()
	case err != nil:
		return fmt.Errorf("failed to lock holding %s: %w", delta.Asset, err)
	default:
		if balance, err = scanNumeric(current, "balance"); err != nil {
			return err
		}
	}

	newBalance := balance.Add(delta.Delta)
	if newBalance.IsNegative() {
		return errors.Join(ErrNegativeBalance,
			fmt.Errorf("holding %s would become %s", delta.Asset, newBalance))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pool_holdings (pool_id, asset, balance) VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id, asset) DO UPDATE SET balance = $3;`,
		uint64(pool), string(delta.Asset), newBalance.String())
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", delta.Asset, err)
	}
	return nil
}

// PriceHistory returns the most recent price points, newest first.
func (s *PostgresStore) PriceHistory(ctx context.Context, pool types.PoolID, limit int) ([]types.PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT per_share_value, total_value, price_timestamp FROM price_history
		 WHERE pool_id = $1 ORDER BY price_timestamp DESC LIMIT $2;`,
		uint64(pool), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []types.PricePoint
	for rows.Next() {
		var (
			perShare string
			total    string
			ts       time.Time
		)
		if err := rows.Scan(&perShare, &total, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		point := types.PricePoint{Pool: pool, Timestamp: ts}
		if point.PerShareValue, err = scanNumeric(perShare, "per_share_value"); err != nil {
			return nil, err
		}
		if point.TotalValue, err = scanNumeric(total, "total_value"); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}
