package state

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// HarvestSummary aggregates the persisted harvest log of one vault.
type HarvestSummary struct {
	VaultID       string      `json:"vault_id"`
	TotalHarvests int         `json:"total_harvests"`
	TotalProfit   sdkmath.Int `json:"total_profit"`
	FirstHarvest  int64       `json:"first_harvest"`
	LastHarvest   int64       `json:"last_harvest"`
	CurrentCycle  int         `json:"current_cycle"`
}

// GetHarvestSummary returns the aggregated harvest history of the vault.
func GetHarvestSummary(ctx context.Context, vaultID string) (*HarvestSummary, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(profit), 0)::TEXT,
			COALESCE(MIN(harvest_timestamp), 0),
			COALESCE(MAX(harvest_timestamp), 0)
		FROM harvest_log
		WHERE vault_id = $1
	`

	summary := &HarvestSummary{VaultID: vaultID}
	var totalProfit string
	err := DB.QueryRowContext(ctx, query, vaultID).Scan(
		&summary.TotalHarvests,
		&totalProfit,
		&summary.FirstHarvest,
		&summary.LastHarvest,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get harvest summary: %w", err)
	}
	if summary.TotalProfit, err = parseInt(totalProfit); err != nil {
		return nil, fmt.Errorf("total_profit: %w", err)
	}

	cycle, err := GetCurrentCycleNumber(ctx)
	if err != nil {
		stateLogger.Error().Err(err).Msg("Failed to get current cycle number")
	}
	summary.CurrentCycle = cycle

	stateLogger.Debug().
		Int("totalHarvests", summary.TotalHarvests).
		Str("totalProfit", totalProfit).
		Msg("Retrieved harvest summary")
	return summary, nil
}
