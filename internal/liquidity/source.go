// Package liquidity defines the external yield source a strategy deploys into,
// together with an in-memory farm used for simulation and tests.
package liquidity

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Source is the external yield source. All amounts are in the want asset's base units.
type Source interface {
	// DeployCapital moves amount of want into the source.
	DeployCapital(ctx context.Context, amount sdkmath.Int) error
	// WithdrawCapital pulls up to amount back; the returned value may be smaller.
	WithdrawCapital(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)
	// ClaimRewards collects accrued rewards already converted to want.
	ClaimRewards(ctx context.Context) (sdkmath.Int, error)
	// PendingRewards reports what ClaimRewards would return now, in want.
	PendingRewards(ctx context.Context) (sdkmath.Int, error)
	// ManagedBalance reports the want currently deployed.
	ManagedBalance(ctx context.Context) (sdkmath.Int, error)
}
