// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/autocompounder/internal/types"
)

// ErrNoSnapshot is returned when no vault snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no vault snapshot stored")

// SaveVaultSnapshot stores a vault snapshot and returns its row id.
func SaveVaultSnapshot(ctx context.Context, vaultID string, snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	shareBalancesJSON, err := json.Marshal(nonNilBalances(snapshot.ShareBalances))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal share_balances: %w", err)
	}
	depositsJSON, err := json.Marshal(nonNilBalances(snapshot.CumulativeDeposits))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal cumulative_deposits: %w", err)
	}
	withdrawalsJSON, err := json.Marshal(nonNilBalances(snapshot.CumulativeWithdrawals))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal cumulative_withdrawals: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			vault_id, cycle_number, snapshot_timestamp, want_denom,
			total_shares, idle_balance, total_managed_assets, price_per_share,
			deposit_fee_bps, capacity, strategy_attached,
			share_balances, cumulative_deposits, cumulative_withdrawals
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRowContext(ctx, query,
		vaultID, snapshot.CycleNumber, snapshot.Timestamp, snapshot.Want,
		intString(snapshot.TotalShares), intString(snapshot.IdleBalance), intString(snapshot.TotalManagedAssets), decString(snapshot.PricePerShare),
		snapshot.DepositFeeBps, intString(snapshot.Capacity), snapshot.StrategyAttached,
		shareBalancesJSON, depositsJSON, withdrawalsJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	stateLogger.Debug().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("total_managed_assets", intString(snapshot.TotalManagedAssets)).
		Msg("Vault snapshot saved")
	return snapshotID, nil
}

// LoadLatestVaultSnapshot returns the most recent snapshot of the vault, or ErrNoSnapshot.
func LoadLatestVaultSnapshot(ctx context.Context, vaultID string) (*types.VaultSnapshot, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT
			snapshot_id, cycle_number, snapshot_timestamp, want_denom,
			total_shares, idle_balance, total_managed_assets, price_per_share,
			deposit_fee_bps, capacity, strategy_attached,
			share_balances, cumulative_deposits, cumulative_withdrawals
		FROM vault_snapshots
		WHERE vault_id = $1
		ORDER BY snapshot_id DESC
		LIMIT 1
	`

	var (
		snap                                        types.VaultSnapshot
		totalShares, idle, managed, price, capacity string
		balancesJSON, depositsJSON, withdrawalsJSON []byte
	)
	err := DB.QueryRowContext(ctx, query, vaultID).Scan(
		&snap.SnapshotID, &snap.CycleNumber, &snap.Timestamp, &snap.Want,
		&totalShares, &idle, &managed, &price,
		&snap.DepositFeeBps, &capacity, &snap.StrategyAttached,
		&balancesJSON, &depositsJSON, &withdrawalsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to load latest vault snapshot: %w", err)
	}

	if snap.TotalShares, err = parseInt(totalShares); err != nil {
		return nil, fmt.Errorf("total_shares: %w", err)
	}
	if snap.IdleBalance, err = parseInt(idle); err != nil {
		return nil, fmt.Errorf("idle_balance: %w", err)
	}
	if snap.TotalManagedAssets, err = parseInt(managed); err != nil {
		return nil, fmt.Errorf("total_managed_assets: %w", err)
	}
	if snap.Capacity, err = parseInt(capacity); err != nil {
		return nil, fmt.Errorf("capacity: %w", err)
	}
	if snap.PricePerShare, err = sdkmath.LegacyNewDecFromStr(price); err != nil {
		return nil, fmt.Errorf("price_per_share: %w", err)
	}

	if err := json.Unmarshal(balancesJSON, &snap.ShareBalances); err != nil {
		return nil, fmt.Errorf("failed to unmarshal share_balances: %w", err)
	}
	if len(depositsJSON) > 0 {
		if err := json.Unmarshal(depositsJSON, &snap.CumulativeDeposits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cumulative_deposits: %w", err)
		}
	}
	if len(withdrawalsJSON) > 0 {
		if err := json.Unmarshal(withdrawalsJSON, &snap.CumulativeWithdrawals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cumulative_withdrawals: %w", err)
		}
	}

	stateLogger.Info().
		Int64("snapshot_id", snap.SnapshotID).
		Int("cycle_number", snap.CycleNumber).
		Int("holders", len(snap.ShareBalances)).
		Msg("Loaded latest vault snapshot")
	return &snap, nil
}

// SaveHarvestEntries stores harvest log entries not yet recorded for the vault.
// Entries are keyed by their harvest timestamp, so re-saving the whole log is idempotent.
// It returns how many new rows were written.
func SaveHarvestEntries(ctx context.Context, vaultID string, cycleNumber int, strategyState types.StrategyState, entries []types.HarvestEntry) (int, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin harvest log transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO harvest_log (
			vault_id, cycle_number, harvest_timestamp, profit, balance_before, elapsed_seconds, strategy_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (vault_id, harvest_timestamp) DO NOTHING;`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare harvest log insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx,
			vaultID, cycleNumber, e.Timestamp, intString(e.Profit), intString(e.BalanceBefore), e.Elapsed, strategyState.String())
		if err != nil {
			return 0, fmt.Errorf("failed to insert harvest entry at %d: %w", e.Timestamp, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit harvest log: %w", err)
	}
	if inserted > 0 {
		stateLogger.Debug().Int("inserted", inserted).Int("cycle_number", cycleNumber).Msg("Harvest entries saved")
	}
	return inserted, nil
}

// LoadHarvestLog returns up to limit of the most recent harvest entries, oldest first.
func LoadHarvestLog(ctx context.Context, vaultID string, limit int) ([]types.HarvestEntry, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT harvest_timestamp, profit, balance_before, elapsed_seconds
		FROM (
			SELECT harvest_timestamp, profit, balance_before, elapsed_seconds
			FROM harvest_log
			WHERE vault_id = $1
			ORDER BY harvest_timestamp DESC
			LIMIT $2
		) recent
		ORDER BY harvest_timestamp ASC
	`

	rows, err := DB.QueryContext(ctx, query, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvest log: %w", err)
	}
	defer rows.Close()

	var entries []types.HarvestEntry
	for rows.Next() {
		var (
			e                     types.HarvestEntry
			profit, balanceBefore string
		)
		if err := rows.Scan(&e.Timestamp, &profit, &balanceBefore, &e.Elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan harvest entry: %w", err)
		}
		if e.Profit, err = parseInt(profit); err != nil {
			return nil, fmt.Errorf("profit: %w", err)
		}
		if e.BalanceBefore, err = parseInt(balanceBefore); err != nil {
			return nil, fmt.Errorf("balance_before: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during harvest log iteration: %w", err)
	}
	return entries, nil
}

func nonNilBalances(m map[types.Account]sdkmath.Int) map[types.Account]sdkmath.Int {
	if m == nil {
		return map[types.Account]sdkmath.Int{}
	}
	return m
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

func decString(v sdkmath.LegacyDec) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

// parseInt reads a NUMERIC(78, 0) column.
func parseInt(raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer %q", raw)
	}
	return v, nil
}
