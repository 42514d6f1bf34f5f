// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/autocompounder/internal/logger"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB is a global database connection pool.
var DB *sql.DB

var stateLogger = logger.GetForComponent("state")

// ErrDBNotInitialized is returned by every store function called before InitDB.
var ErrDBNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq keyword/value connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DBName, sslMode)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	return initDSN(cfg.DSN())
}

func initDSN(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	stateLogger.Info().Msg("Connected to the PostgreSQL database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB == nil {
		return
	}
	stateLogger.Info().Msg("Closing database connection...")
	if err := DB.Close(); err != nil {
		stateLogger.Error().Err(err).Msg("Error closing database connection")
	}
	DB = nil
}

// EnsureSchema applies the DDL for the vault snapshot, harvest log and cycle counter tables.
// Safe to run on every start.
func EnsureSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			vault_id VARCHAR(255) NOT NULL,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			want_denom VARCHAR(128) NOT NULL,
			total_shares NUMERIC(78, 0) NOT NULL,
			idle_balance NUMERIC(78, 0) NOT NULL,
			total_managed_assets NUMERIC(78, 0) NOT NULL,
			price_per_share NUMERIC(78, 18) NOT NULL,
			deposit_fee_bps INTEGER NOT NULL,
			capacity NUMERIC(78, 0) NOT NULL DEFAULT 0,
			strategy_attached BOOLEAN NOT NULL DEFAULT FALSE,
			share_balances JSONB NOT NULL,
			cumulative_deposits JSONB,
			cumulative_withdrawals JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_vault_timestamp ON vault_snapshots(vault_id, snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_snapshots_cycle ON vault_snapshots(cycle_number DESC);

		CREATE TABLE IF NOT EXISTS harvest_log (
			entry_id BIGSERIAL PRIMARY KEY,
			vault_id VARCHAR(255) NOT NULL,
			cycle_number INTEGER NOT NULL,
			harvest_timestamp BIGINT NOT NULL,
			profit NUMERIC(78, 0) NOT NULL,
			balance_before NUMERIC(78, 0) NOT NULL,
			elapsed_seconds BIGINT NOT NULL,
			strategy_state VARCHAR(16) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_harvest_log_vault_timestamp UNIQUE (vault_id, harvest_timestamp)
		);
		CREATE INDEX IF NOT EXISTS idx_harvest_log_vault_timestamp ON harvest_log(vault_id, harvest_timestamp DESC);

		-- Cycle counter table for persistent global keeper cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	stateLogger.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table EnsureSchema creates.
func DropSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}
	dropTablesSQL := `
		DROP TABLE IF EXISTS vault_snapshots CASCADE;
		DROP TABLE IF EXISTS harvest_log CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := DB.Exec(dropTablesSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	stateLogger.Warn().Msg("Dropped all tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(ctx context.Context) error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
