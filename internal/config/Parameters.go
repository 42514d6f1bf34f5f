/*

This file contains the default parameters for the strategy and its keeper.

Fee split: 4.5% total fee on harvested profit, 10% of it to whoever calls harvest,
25% of the remainder to the strategists and the rest to the treasury.

*/

package config

import (
	"github.com/elys-network/autocompounder/internal/fees"
)

// StrategyParameters are the tunables of a strategy that the deployment file may override.
type StrategyParameters struct {
	Fees              fees.FeeConfig
	SecurityFeeBps    uint32
	HarvestLogCadence int64
	LogCapacity       int
	KeeperSchedule    string
}

// DefaultStrategyParameters provides the baseline used for every field the deployment file leaves unset.
var DefaultStrategyParameters = StrategyParameters{
	Fees: fees.FeeConfig{
		CallerBps:     45,  // 10% of the 450 bps total fee.
		StrategistBps: 101, // 25% of the remaining 405 bps, floored. Paid to the payment splitter.
		TreasuryBps:   304, // Remainder of the 450 bps total fee.
	},

	SecurityFeeBps: fees.MaxSecurityFeeBps, // 0.1% of every withdrawal stays invested for remaining holders.

	HarvestLogCadence: 3600, // Keeper harvests at most once an hour.

	LogCapacity: 100, // Last 100 harvests, about four days at the default cadence.

	KeeperSchedule: "0 */5 * * * *", // Check every five minutes; the cadence decides whether to harvest.
}
