/*

This file contains the durable snapshots of the vault and the strategy.
Snapshots are what the state package persists and what the status API serves.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// VaultSnapshot captures the vault's accounting at one observation point.
type VaultSnapshot struct {
	SnapshotID            int64                   `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	CycleNumber           int                     `json:"cycle_number"`
	Timestamp             time.Time               `json:"timestamp"`
	Want                  string                  `json:"want"`
	TotalShares           sdkmath.Int             `json:"total_shares"`
	IdleBalance           sdkmath.Int             `json:"idle_balance"`
	TotalManagedAssets    sdkmath.Int             `json:"total_managed_assets"`
	PricePerShare         sdkmath.LegacyDec       `json:"price_per_share"`
	DepositFeeBps         uint32                  `json:"deposit_fee_bps"`
	Capacity              sdkmath.Int             `json:"capacity"` // Zero when uncapped
	ShareBalances         map[Account]sdkmath.Int `json:"share_balances"`
	CumulativeDeposits    map[Account]sdkmath.Int `json:"cumulative_deposits,omitempty"`
	CumulativeWithdrawals map[Account]sdkmath.Int `json:"cumulative_withdrawals,omitempty"`
	StrategyAttached      bool                    `json:"strategy_attached"`
}

// StrategySnapshot captures the strategy's state and recent harvest history.
type StrategySnapshot struct {
	Want              string         `json:"want"`
	State             StrategyState  `json:"state"`
	ManagedBalance    sdkmath.Int    `json:"managed_balance"`
	WithdrawFeeBps    uint32         `json:"withdraw_fee_bps"`
	HarvestLogCadence int64          `json:"harvest_log_cadence"`
	LastHarvest       int64          `json:"last_harvest"`
	HarvestLog        []HarvestEntry `json:"harvest_log"`
	Recipients        FeeRecipients  `json:"recipients"`
}
