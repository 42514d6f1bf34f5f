package vault

import (
	"context"
	"fmt"
	"maps"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/autocompounder/internal/types"
)

// Snapshot captures the vault's accounting for persistence and the status API.
func (v *ShareVault) Snapshot(ctx context.Context) (types.VaultSnapshot, error) {
	ctx, release, err := v.guard.EnterShared(ctx)
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	defer release()

	v.mu.RLock()
	snap := types.VaultSnapshot{
		Timestamp:             time.Now().UTC(),
		Want:                  v.want,
		TotalShares:           v.totalShares,
		IdleBalance:           v.idle,
		DepositFeeBps:         v.depositFeeBps,
		Capacity:              v.capacity,
		ShareBalances:         maps.Clone(v.shares),
		CumulativeDeposits:    maps.Clone(v.cumulativeDeposits),
		CumulativeWithdrawals: maps.Clone(v.cumulativeWithdrawals),
		StrategyAttached:      v.strategy != nil,
	}
	strat := v.strategy
	v.mu.RUnlock()

	if snap.Capacity.IsNil() {
		snap.Capacity = sdkmath.ZeroInt()
	}
	total, err := totalAssets(ctx, snap.IdleBalance, strat)
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	snap.TotalManagedAssets = total
	snap.PricePerShare = sdkmath.LegacyOneDec()
	if snap.TotalShares.IsPositive() {
		snap.PricePerShare = sdkmath.LegacyNewDecFromInt(total).QuoInt(snap.TotalShares)
	}
	return snap, nil
}

// Restore loads share balances and the idle balance from a snapshot into an empty vault.
// Funds the snapshot attributed to the strategy are expected to come back with the
// strategy that is attached afterwards.
func (v *ShareVault) Restore(ctx context.Context, snap types.VaultSnapshot) error {
	if snap.Want != v.want {
		return fmt.Errorf("%w: snapshot want %q, vault want %q", ErrInvalidSnapshot, snap.Want, v.want)
	}
	sum := sdkmath.ZeroInt()
	for account, bal := range snap.ShareBalances {
		if bal.IsNil() || !bal.IsPositive() || account.IsZero() {
			return fmt.Errorf("%w: bad share balance for %q", ErrInvalidSnapshot, account)
		}
		sum = sum.Add(bal)
	}
	if snap.TotalShares.IsNil() || !sum.Equal(snap.TotalShares) {
		return fmt.Errorf("%w: balances sum to %s, total shares %v", ErrInvalidSnapshot, sum, snap.TotalShares)
	}
	if snap.IdleBalance.IsNil() || snap.IdleBalance.IsNegative() {
		return fmt.Errorf("%w: idle balance %v", ErrInvalidSnapshot, snap.IdleBalance)
	}

	_, release, err := v.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.strategy != nil || !v.totalShares.IsZero() {
		return ErrRestoreNotEmpty
	}
	v.totalShares = snap.TotalShares
	v.idle = snap.IdleBalance
	v.shares = cloneOrEmpty(snap.ShareBalances)
	v.cumulativeDeposits = cloneOrEmpty(snap.CumulativeDeposits)
	v.cumulativeWithdrawals = cloneOrEmpty(snap.CumulativeWithdrawals)
	v.logger.Info().
		Str("total_shares", snap.TotalShares.String()).
		Int("holders", len(snap.ShareBalances)).
		Msg("Vault restored from snapshot")
	return nil
}

func cloneOrEmpty(m map[types.Account]sdkmath.Int) map[types.Account]sdkmath.Int {
	if m == nil {
		return make(map[types.Account]sdkmath.Int)
	}
	return maps.Clone(m)
}
