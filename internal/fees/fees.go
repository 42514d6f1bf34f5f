// Package fees computes deposit, withdrawal and harvest fees and routes them to a sink.
package fees

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/autocompounder/internal/types"
)

// BasisPoints is the fee divisor: 10000 bps = 100%.
const BasisPoints = 10_000

// MaxSecurityFeeBps caps the withdrawal fee a strategy may charge.
const MaxSecurityFeeBps = 10

// FeeConfig splits a harvest's profit between the three fee recipients, in basis points of profit.
type FeeConfig struct {
	TreasuryBps   uint32 `json:"treasury_bps" yaml:"treasury_bps"`
	StrategistBps uint32 `json:"strategist_bps" yaml:"strategist_bps"`
	CallerBps     uint32 `json:"caller_bps" yaml:"caller_bps"`
}

// Total returns the combined fee in basis points.
func (c FeeConfig) Total() uint64 {
	return uint64(c.TreasuryBps) + uint64(c.StrategistBps) + uint64(c.CallerBps)
}

// Validate rejects splits that take more than the whole profit.
func (c FeeConfig) Validate() error {
	if c.Total() > BasisPoints {
		return fmt.Errorf("fee split totals %d bps (max %d): %w", c.Total(), BasisPoints, types.ErrInvalidFeeConfig)
	}
	return nil
}

// ProfitSplit is the distribution of one harvest's profit. The four parts sum to the profit.
type ProfitSplit struct {
	Treasury   sdkmath.Int
	Strategist sdkmath.Int
	Caller     sdkmath.Int
	Reinvest   sdkmath.Int
}

// Fees returns the part of the profit that leaves the strategy.
func (p ProfitSplit) Fees() sdkmath.Int {
	return p.Treasury.Add(p.Strategist).Add(p.Caller)
}

// DepositFee returns floor(amount * bps / 10000).
func DepositFee(amount sdkmath.Int, bps uint32) sdkmath.Int {
	return applyBps(amount, bps)
}

// WithdrawFee returns floor(amount * bps / 10000).
func WithdrawFee(amount sdkmath.Int, bps uint32) sdkmath.Int {
	return applyBps(amount, bps)
}

// SplitProfit divides profit per cfg, flooring each fee; the remainder is reinvested.
func SplitProfit(profit sdkmath.Int, cfg FeeConfig) (ProfitSplit, error) {
	if err := cfg.Validate(); err != nil {
		return ProfitSplit{}, err
	}
	if profit.IsNil() || !profit.IsPositive() {
		zero := sdkmath.ZeroInt()
		return ProfitSplit{Treasury: zero, Strategist: zero, Caller: zero, Reinvest: zero}, nil
	}

	split := ProfitSplit{
		Treasury:   applyBps(profit, cfg.TreasuryBps),
		Strategist: applyBps(profit, cfg.StrategistBps),
		Caller:     applyBps(profit, cfg.CallerBps),
	}
	split.Reinvest = profit.Sub(split.Fees())
	return split, nil
}

func applyBps(amount sdkmath.Int, bps uint32) sdkmath.Int {
	if amount.IsNil() || !amount.IsPositive() || bps == 0 {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(sdkmath.NewIntFromUint64(uint64(bps))).Quo(sdkmath.NewInt(BasisPoints))
}
