package fees

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/autocompounder/internal/types"
)

// Sink receives fee payments. Implementations must not call back into the paying vault or strategy.
type Sink interface {
	Receive(ctx context.Context, coin sdk.Coin, recipient types.Account) error
}

// Ledger is an in-memory Sink that accumulates coins per recipient.
type Ledger struct {
	mu       sync.RWMutex
	received map[types.Account]sdk.Coins
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{received: make(map[types.Account]sdk.Coins)}
}

// Receive credits coin to recipient. Zero coins are accepted and ignored.
func (l *Ledger) Receive(ctx context.Context, coin sdk.Coin, recipient types.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if recipient.IsZero() {
		return fmt.Errorf("fee recipient is empty: %w", types.ErrInvalidFeeConfig)
	}
	if err := coin.Validate(); err != nil {
		return fmt.Errorf("invalid fee coin: %w", err)
	}
	if coin.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.received[recipient] = l.received[recipient].Add(coin)
	return nil
}

// Balance returns what recipient has received in denom.
func (l *Ledger) Balance(recipient types.Account, denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.received[recipient].AmountOf(denom)
}

// Total returns the sum received across all recipients in denom.
func (l *Ledger) Total(denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := sdkmath.ZeroInt()
	for _, coins := range l.received {
		total = total.Add(coins.AmountOf(denom))
	}
	return total
}

// Recipients lists every account that has received a fee, sorted.
func (l *Ledger) Recipients() []types.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Account, 0, len(l.received))
	for r := range l.received {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
