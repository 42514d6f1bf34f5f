package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/autocompounder/internal/types"
)

// Strategy is the single custody slot of a ShareVault.
// The vault only ever talks to its strategy through this interface, within its own guard lease.
type Strategy interface {
	// Want returns the denom the strategy compounds; it must equal the vault's.
	Want() string

	// VaultID returns the identity of the vault the strategy was built for.
	VaultID() string

	// State returns the strategy's lifecycle state.
	State() types.StrategyState

	// ManagedBalance returns the want held or deployed by the strategy.
	ManagedBalance(ctx context.Context) (sdkmath.Int, error)

	// Deposit receives idle want from the vault and deploys it.
	// On error the strategy must not have taken the funds.
	Deposit(ctx context.Context, caller types.Account, amount sdkmath.Int) error

	// Withdraw returns up to amount of want to the vault, net of the strategy's withdrawal fee.
	Withdraw(ctx context.Context, caller types.Account, amount sdkmath.Int) (sdkmath.Int, error)
}

// Observer is notified of committed user flows, e.g. to update metrics.
type Observer interface {
	ObserveDeposit(amount sdkmath.Int)
	ObserveWithdrawal(amount sdkmath.Int)
}

type noopObserver struct{}

func (noopObserver) ObserveDeposit(sdkmath.Int)    {}
func (noopObserver) ObserveWithdrawal(sdkmath.Int) {}
