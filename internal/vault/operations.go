package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/types"
)

// Deposit adds amount of want for caller and returns the shares minted.
// The deposit fee is paid to the treasury before any state changes; the net amount is then
// pushed to the strategy, and a failed push leaves it idle.
func (v *ShareVault) Deposit(ctx context.Context, caller types.Account, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("deposit of %v: %w", amount, types.ErrInvalidAmount)
	}
	ctx, release, err := v.guard.Enter(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	v.mu.RLock()
	strat, idle, supply, capacity, feeBps := v.strategy, v.idle, v.totalShares, v.capacity, v.depositFeeBps
	v.mu.RUnlock()

	if strat == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", types.ErrStrategyNotActive, types.ErrNoStrategy)
	}
	if state := strat.State(); state != types.StateActive {
		return sdkmath.ZeroInt(), fmt.Errorf("strategy is %s: %w", state, types.ErrStrategyNotActive)
	}

	total, err := totalAssets(ctx, idle, strat)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !capacity.IsNil() && total.Add(amount).GT(capacity) {
		return sdkmath.ZeroInt(), fmt.Errorf("balance %s + deposit %s > cap %s: %w", total, amount, capacity, types.ErrCapacityExceeded)
	}

	fee := fees.DepositFee(amount, feeBps)
	net := amount.Sub(fee)
	var minted sdkmath.Int
	switch {
	case supply.IsZero():
		minted = net
	case total.IsZero():
		return sdkmath.ZeroInt(), ErrVaultInsolvent
	default:
		minted = net.Mul(supply).Quo(total)
	}
	if !minted.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("deposit of %s at supply %s and balance %s: %w", amount, supply, total, types.ErrDustDeposit)
	}

	if fee.IsPositive() {
		coin := sdk.Coin{Denom: v.want, Amount: fee}
		ext, done := v.guard.External(ctx)
		err := v.sink.Receive(ext, coin, v.treasury)
		done()
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to pay deposit fee: %w", err)
		}
	}

	v.mu.Lock()
	v.idle = v.idle.Add(net)
	v.totalShares = v.totalShares.Add(minted)
	v.shares[caller] = valueOrZero(v.shares, caller).Add(minted)
	v.cumulativeDeposits[caller] = valueOrZero(v.cumulativeDeposits, caller).Add(amount)
	v.mu.Unlock()

	v.observer.ObserveDeposit(amount)
	v.logger.Info().
		Str("caller", caller.String()).
		Str("amount", amount.String()).
		Str("fee", fee.String()).
		Str("shares", minted.String()).
		Msg("Deposit accepted")

	if err := v.earn(ctx); err != nil {
		v.logger.Warn().Err(err).Msg("Failed to push idle funds to strategy; funds remain idle")
	}
	return minted, nil
}

// Withdraw burns shares of caller and returns the want paid out.
// Any shortfall over the idle balance is pulled from the strategy, which keeps its
// withdrawal fee; a smaller return from the strategy reduces the payout.
func (v *ShareVault) Withdraw(ctx context.Context, caller types.Account, shares sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("withdrawal of %v shares: %w", shares, types.ErrInvalidAmount)
	}
	ctx, release, err := v.guard.Enter(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()
	return v.withdraw(ctx, caller, shares)
}

// WithdrawAll burns every share of caller. A caller without shares gets nothing back.
func (v *ShareVault) WithdrawAll(ctx context.Context, caller types.Account) (sdkmath.Int, error) {
	ctx, release, err := v.guard.Enter(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	shares := v.BalanceOf(caller)
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return v.withdraw(ctx, caller, shares)
}

// withdraw requires the lease.
func (v *ShareVault) withdraw(ctx context.Context, caller types.Account, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.RLock()
	strat, idle, supply := v.strategy, v.idle, v.totalShares
	held := valueOrZero(v.shares, caller)
	v.mu.RUnlock()

	if shares.GT(held) {
		return sdkmath.ZeroInt(), fmt.Errorf("%s holds %s shares, requested %s: %w", caller, held, shares, types.ErrInsufficientShares)
	}

	total, err := totalAssets(ctx, idle, strat)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	owed := shares.Mul(total).Quo(supply)

	available := idle
	if owed.GT(idle) {
		need := owed.Sub(idle)
		got, err := strat.Withdraw(ctx, v.Account(), need)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to withdraw %s from strategy: %w", need, err)
		}
		available = idle.Add(got)
	}
	payout := sdkmath.MinInt(owed, available)

	v.mu.Lock()
	v.idle = available.Sub(payout)
	v.totalShares = v.totalShares.Sub(shares)
	if remaining := held.Sub(shares); remaining.IsZero() {
		delete(v.shares, caller)
	} else {
		v.shares[caller] = remaining
	}
	v.cumulativeWithdrawals[caller] = valueOrZero(v.cumulativeWithdrawals, caller).Add(payout)
	v.mu.Unlock()

	v.observer.ObserveWithdrawal(payout)
	v.logger.Info().
		Str("caller", caller.String()).
		Str("shares", shares.String()).
		Str("owed", owed.String()).
		Str("payout", payout.String()).
		Msg("Withdrawal paid")
	return payout, nil
}

// Earn pushes idle want into the strategy.
func (v *ShareVault) Earn(ctx context.Context) error {
	ctx, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()
	return v.earn(ctx)
}

// earn requires the lease.
func (v *ShareVault) earn(ctx context.Context) error {
	v.mu.RLock()
	strat, idle := v.strategy, v.idle
	v.mu.RUnlock()

	if strat == nil {
		return types.ErrNoStrategy
	}
	if !idle.IsPositive() {
		return nil
	}
	if err := strat.Deposit(ctx, v.Account(), idle); err != nil {
		return err
	}

	v.mu.Lock()
	v.idle = v.idle.Sub(idle)
	v.mu.Unlock()
	v.logger.Debug().Str("amount", idle.String()).Msg("Idle funds pushed to strategy")
	return nil
}

// Attach fills the strategy slot. Only admins may attach, and the slot must be empty.
func (v *ShareVault) Attach(ctx context.Context, caller types.Account, s Strategy) error {
	if err := v.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("strategy cannot be nil: %w", types.ErrStrategyMismatch)
	}
	ctx, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.VaultID() != v.id {
		return fmt.Errorf("strategy built for vault %q: %w", s.VaultID(), types.ErrStrategyMismatch)
	}
	if s.Want() != v.want {
		return fmt.Errorf("strategy wants %q, vault holds %q: %w", s.Want(), v.want, types.ErrStrategyMismatch)
	}
	if s.State() == types.StateRetired {
		return fmt.Errorf("cannot attach: %w", types.ErrAlreadyRetired)
	}

	v.mu.Lock()
	if v.strategy != nil {
		v.mu.Unlock()
		return types.ErrStrategyAlreadyAttached
	}
	v.strategy = s
	v.mu.Unlock()
	v.logger.Info().Str("by", caller.String()).Str("state", s.State().String()).Msg("Strategy attached")

	if s.State() == types.StateActive {
		if err := v.earn(ctx); err != nil {
			v.logger.Warn().Err(err).Msg("Failed to push idle funds to new strategy")
		}
	}
	return nil
}

// Reclaim credits amount of want returned by the attached strategy outside a withdrawal,
// e.g. when it panics.
func (v *ShareVault) Reclaim(ctx context.Context, from Strategy, amount sdkmath.Int) error {
	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.strategy == nil || v.strategy != from {
		return types.ErrStrategyMismatch
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("reclaim of %v: %w", amount, types.ErrInvalidAmount)
	}
	v.idle = v.idle.Add(amount)
	v.logger.Info().Str("amount", amount.String()).Msg("Funds reclaimed from strategy")
	return nil
}

// Detach empties the strategy slot. Only the attached strategy may detach itself.
func (v *ShareVault) Detach(ctx context.Context, from Strategy) error {
	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.strategy == nil || v.strategy != from {
		return types.ErrStrategyMismatch
	}
	v.strategy = nil
	v.logger.Info().Msg("Strategy detached")
	return nil
}

// UpdateTvlCap sets the TVL cap. A cap below the current balance only blocks new deposits.
func (v *ShareVault) UpdateTvlCap(ctx context.Context, caller types.Account, capacity sdkmath.Int) error {
	if err := v.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if capacity.IsNil() || capacity.IsNegative() {
		return fmt.Errorf("tvl cap %v: %w", capacity, types.ErrInvalidAmount)
	}
	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	v.capacity = capacity
	v.mu.Unlock()
	v.logger.Info().Str("capacity", capacity.String()).Msg("TVL cap updated")
	return nil
}

// RemoveTvlCap lifts the TVL cap.
func (v *ShareVault) RemoveTvlCap(ctx context.Context, caller types.Account) error {
	if err := v.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	v.capacity = sdkmath.Int{}
	v.mu.Unlock()
	v.logger.Info().Msg("TVL cap removed")
	return nil
}

// UpdateDepositFee sets the deposit fee in basis points, below 10000.
func (v *ShareVault) UpdateDepositFee(ctx context.Context, caller types.Account, bps uint32) error {
	if err := v.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if bps >= fees.BasisPoints {
		return fmt.Errorf("deposit fee %d bps: %w", bps, types.ErrInvalidFeeConfig)
	}
	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	v.depositFeeBps = bps
	v.mu.Unlock()
	v.logger.Info().Uint32("deposit_fee_bps", bps).Msg("Deposit fee updated")
	return nil
}
