package strategy

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/types"
)

// Harvest claims rewards, records the claim in the harvest log, pays the treasury,
// strategist and caller fees and reinvests the remainder.
//
// The claim is the only step that aborts the harvest. A fee payment that fails leaves
// its amount invested; the receipt shows what was actually paid and the error wraps
// types.ErrFeePayment.
func (s *Strategy) Harvest(ctx context.Context, caller types.Account) (types.HarvestReceipt, error) {
	if caller.IsZero() {
		return types.HarvestReceipt{}, fmt.Errorf("harvest caller is empty: %w", types.ErrNotAuthorized)
	}
	s.mu.RLock()
	restricted := s.restrictHarvest
	s.mu.RUnlock()
	if restricted {
		if err := s.access.Require(caller, access.RoleKeeper, access.RoleStrategist, access.RoleAdmin); err != nil {
			return types.HarvestReceipt{}, err
		}
	}

	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return types.HarvestReceipt{}, err
	}
	defer release()

	s.mu.RLock()
	state, feeCfg, recipients, last := s.state, s.fees, s.recipients, s.lastHarvest
	s.mu.RUnlock()
	if state != types.StateActive {
		return types.HarvestReceipt{}, fmt.Errorf("strategy is %s: %w", state, types.ErrStrategyNotActive)
	}

	now := s.clock.Now()
	before, err := s.ManagedBalance(ctx)
	if err != nil {
		return types.HarvestReceipt{}, err
	}

	ext, done := s.guard.External(ctx)
	claimed, err := s.source.ClaimRewards(ext)
	done()
	if err != nil {
		return types.HarvestReceipt{}, fmt.Errorf("failed to claim rewards: %w", err)
	}

	entry := types.HarvestEntry{
		Timestamp:     now,
		Profit:        claimed,
		BalanceBefore: before,
		Elapsed:       now - last,
	}
	s.mu.Lock()
	s.wantHeld = s.wantHeld.Add(claimed)
	s.log.push(entry)
	s.lastHarvest = now
	s.mu.Unlock()

	receipt, payErr := s.payFees(ctx, caller, claimed, feeCfg, recipients)
	receipt.Timestamp = now

	s.redeployHeld(ctx)

	s.logger.Info().
		Str("caller", caller.String()).
		Str("claimed", claimed.String()).
		Str("reinvested", receipt.Reinvested.String()).
		Int64("elapsed_s", entry.Elapsed).
		Msg("Harvest completed")
	return receipt, payErr
}

// payFees pays the fee split of profit out of the want the strategy holds. Requires the lease.
func (s *Strategy) payFees(ctx context.Context, caller types.Account, profit sdkmath.Int, cfg fees.FeeConfig, recipients types.FeeRecipients) (types.HarvestReceipt, error) {
	receipt := types.HarvestReceipt{
		Caller:          caller,
		Profit:          profit,
		TreasuryShare:   sdkmath.ZeroInt(),
		StrategistShare: sdkmath.ZeroInt(),
		CallerShare:     sdkmath.ZeroInt(),
		Reinvested:      profit,
	}
	split, err := fees.SplitProfit(profit, cfg)
	if err != nil {
		return receipt, fmt.Errorf("%w: %w", types.ErrFeePayment, err)
	}

	payments := []struct {
		amount    sdkmath.Int
		recipient types.Account
		kind      string
		paid      *sdkmath.Int
	}{
		{split.Treasury, recipients.Treasury, "treasury", &receipt.TreasuryShare},
		{split.Strategist, recipients.PaymentSplitter, "strategist", &receipt.StrategistShare},
		{split.Caller, caller, "caller", &receipt.CallerShare},
	}

	ext, done := s.guard.External(ctx)
	defer done()
	var failed []error
	for _, p := range payments {
		if !p.amount.IsPositive() {
			continue
		}
		if err := s.sink.Receive(ext, sdk.Coin{Denom: s.want, Amount: p.amount}, p.recipient); err != nil {
			s.logger.Warn().Err(err).Str("fee", p.kind).Str("amount", p.amount.String()).Msg("Fee payment failed; amount stays invested")
			failed = append(failed, fmt.Errorf("%s fee: %w", p.kind, err))
			continue
		}
		s.mu.Lock()
		s.wantHeld = s.wantHeld.Sub(p.amount)
		s.mu.Unlock()
		*p.paid = p.amount
		receipt.Reinvested = receipt.Reinvested.Sub(p.amount)
	}
	if len(failed) > 0 {
		return receipt, fmt.Errorf("%w: %w", types.ErrFeePayment, errors.Join(failed...))
	}
	return receipt, nil
}

// redeployHeld deploys want held by the strategy. Requires the lease; failures keep the funds held.
func (s *Strategy) redeployHeld(ctx context.Context) {
	s.mu.RLock()
	held := s.wantHeld
	s.mu.RUnlock()
	if !held.IsPositive() {
		return
	}
	ext, done := s.guard.External(ctx)
	err := s.source.DeployCapital(ext, held)
	done()
	if err != nil {
		s.logger.Warn().Err(err).Str("amount", held.String()).Msg("Failed to redeploy held funds")
		return
	}
	s.mu.Lock()
	s.wantHeld = s.wantHeld.Sub(held)
	s.mu.Unlock()
}

// EstimateHarvest returns the profit a harvest would claim now and the caller's share of it.
func (s *Strategy) EstimateHarvest(ctx context.Context) (profit sdkmath.Int, callerShare sdkmath.Int, err error) {
	ctx, release, err := s.guard.EnterShared(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	defer release()

	ext, done := s.guard.External(ctx)
	pending, err := s.source.PendingRewards(ext)
	done()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to read pending rewards: %w", err)
	}
	split, err := fees.SplitProfit(pending, s.Fees())
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return pending, split.Caller, nil
}

// AverageAPRAcrossLastNHarvests returns the mean annualized return of the last n harvests
// in basis points. Entries with no balance or no elapsed time are left out of the mean.
func (s *Strategy) AverageAPRAcrossLastNHarvests(n int) (sdkmath.Int, error) {
	if n < 1 {
		return sdkmath.ZeroInt(), fmt.Errorf("n must be at least 1, got %d: %w", n, types.ErrInvalidAmount)
	}
	s.mu.RLock()
	entries := s.log.last(n)
	s.mu.RUnlock()
	if len(entries) == 0 {
		return sdkmath.ZeroInt(), types.ErrInsufficientHistory
	}

	sum := sdkmath.LegacyZeroDec()
	counted := int64(0)
	for _, e := range entries {
		if e.Elapsed <= 0 || e.BalanceBefore.IsNil() || !e.BalanceBefore.IsPositive() {
			continue
		}
		apr := sdkmath.LegacyNewDecFromInt(e.Profit).
			MulInt64(liquidity.SecondsPerYear).
			MulInt64(fees.BasisPoints).
			QuoInt(e.BalanceBefore).
			QuoInt64(e.Elapsed)
		sum = sum.Add(apr)
		counted++
	}
	if counted == 0 {
		return sdkmath.ZeroInt(), nil
	}
	return sum.QuoInt64(counted).TruncateInt(), nil
}

// UpdateHarvestLogCadence changes the advisory harvest spacing. Existing log entries are untouched.
func (s *Strategy) UpdateHarvestLogCadence(ctx context.Context, caller types.Account, seconds int64) error {
	if err := s.access.Require(caller, access.RoleStrategist, access.RoleAdmin); err != nil {
		return err
	}
	if seconds < 0 {
		return fmt.Errorf("cadence %d: %w", seconds, types.ErrInvalidAmount)
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	s.cadence = seconds
	s.mu.Unlock()
	s.logger.Info().Int64("cadence_s", seconds).Msg("Harvest log cadence updated")
	return nil
}

// HarvestLogCadence returns the advisory spacing between harvests, in seconds.
func (s *Strategy) HarvestLogCadence() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cadence
}

// LastHarvest returns the clock time of the latest harvest, or the creation time.
func (s *Strategy) LastHarvest() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHarvest
}

// HarvestDue reports whether the cadence has elapsed since the last harvest.
func (s *Strategy) HarvestDue(now int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now-s.lastHarvest >= s.cadence
}

// HarvestLog returns the retained entries, oldest first.
func (s *Strategy) HarvestLog() []types.HarvestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.all()
}

// RestoreHarvestLog seeds the log of a strategy that has not harvested yet.
// Entries beyond the log capacity keep only the most recent ones.
func (s *Strategy) RestoreHarvestLog(entries []types.HarvestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log.len() > 0 {
		return fmt.Errorf("harvest log already has %d entries: %w", s.log.len(), types.ErrInvalidTransition)
	}
	for _, e := range entries {
		s.log.push(e)
	}
	if n := len(entries); n > 0 && entries[n-1].Timestamp > 0 {
		s.lastHarvest = entries[n-1].Timestamp
	}
	return nil
}
