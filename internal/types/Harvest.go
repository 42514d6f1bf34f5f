/*

This file contains the harvest log entry and the harvest receipt returned to callers.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// HarvestEntry is one record of the strategy's bounded harvest log.
type HarvestEntry struct {
	Timestamp     int64       `json:"timestamp"`      // Clock seconds at which the harvest ran
	Profit        sdkmath.Int `json:"profit"`         // Want claimed by the harvest, before fees
	BalanceBefore sdkmath.Int `json:"balance_before"` // Strategy managed balance right before the harvest
	Elapsed       int64       `json:"elapsed"`        // Seconds since the previous harvest (or since deployment)
}

// HarvestReceipt describes how a single harvest's profit was distributed.
type HarvestReceipt struct {
	Caller          Account     `json:"caller"`
	Timestamp       int64       `json:"timestamp"`
	Profit          sdkmath.Int `json:"profit"`
	TreasuryShare   sdkmath.Int `json:"treasury_share"`
	StrategistShare sdkmath.Int `json:"strategist_share"`
	CallerShare     sdkmath.Int `json:"caller_share"`
	Reinvested      sdkmath.Int `json:"reinvested"`
}
