// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// Connect opens a PostgreSQL connection pool and verifies it with a ping.
func Connect(cfg DBConfig) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return db, nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	if db == nil {
		return ErrNotInitialized
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pools (
			pool_id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			base_asset VARCHAR(128) NOT NULL,
			base_decimals INTEGER NOT NULL,
			share_supply NUMERIC(78, 0) NOT NULL DEFAULT 0,
			virtual_supply NUMERIC(78, 0) NOT NULL DEFAULT 0,
			stored_per_share_value NUMERIC(78, 0) NOT NULL DEFAULT 0,
			stored_total_value NUMERIC(78, 0) NOT NULL DEFAULT 0,
			stored_value_at TIMESTAMPTZ,
			spread_bps INTEGER NOT NULL DEFAULT 0,
			lockup_seconds BIGINT NOT NULL DEFAULT 0,
			fee_collector VARCHAR(128) NOT NULL,
			allow_listed BOOLEAN NOT NULL DEFAULT FALSE,
			ever_deposited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS holder_accounts (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			holder VARCHAR(128) NOT NULL,
			shares NUMERIC(78, 0) NOT NULL DEFAULT 0,
			lockup_expiry TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			PRIMARY KEY (pool_id, holder)
		);

		CREATE TABLE IF NOT EXISTS pool_holdings (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			asset VARCHAR(128) NOT NULL,
			balance NUMERIC(78, 0) NOT NULL DEFAULT 0,
			PRIMARY KEY (pool_id, asset)
		);

		CREATE TABLE IF NOT EXISTS active_assets (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			asset VARCHAR(128) NOT NULL,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (pool_id, asset)
		);

		CREATE TABLE IF NOT EXISTS eligible_inputs (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			asset VARCHAR(128) NOT NULL,
			PRIMARY KEY (pool_id, asset)
		);

		CREATE TABLE IF NOT EXISTS active_venues (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			venue VARCHAR(32) NOT NULL,
			PRIMARY KEY (pool_id, venue)
		);

		CREATE TABLE IF NOT EXISTS operator_approvals (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			holder VARCHAR(128) NOT NULL,
			operator VARCHAR(128) NOT NULL,
			PRIMARY KEY (pool_id, holder, operator)
		);

		CREATE TABLE IF NOT EXISTS allow_list (
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			holder VARCHAR(128) NOT NULL,
			PRIMARY KEY (pool_id, holder)
		);

		CREATE TABLE IF NOT EXISTS operation_journal (
			operation_id UUID PRIMARY KEY,
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			kind VARCHAR(32) NOT NULL,
			actor VARCHAR(128) NOT NULL,
			asset VARCHAR(128),
			asset_amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
			share_amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
			fee_shares NUMERIC(78, 0) NOT NULL DEFAULT 0,
			op_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operation_journal_pool ON operation_journal(pool_id, op_timestamp DESC);

		CREATE TABLE IF NOT EXISTS price_history (
			price_id SERIAL PRIMARY KEY,
			pool_id BIGINT NOT NULL REFERENCES pools(pool_id),
			per_share_value NUMERIC(78, 0) NOT NULL,
			total_value NUMERIC(78, 0) NOT NULL,
			price_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_pool ON price_history(pool_id, price_timestamp DESC);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(db *sql.DB) error {
	if db == nil {
		return ErrNotInitialized
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
