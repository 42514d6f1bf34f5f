// Package vault implements the share-accounting vault that users deposit the want asset into.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/guard"
	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/types"
)

var (
	ErrInvalidConfig   = errors.New("vault configuration is invalid")
	ErrVaultInsolvent  = errors.New("vault has outstanding shares but no assets")
	ErrRestoreNotEmpty = errors.New("restore requires an empty vault without strategy")
	ErrInvalidSnapshot = errors.New("vault snapshot is inconsistent")
)

var vaultLogger = logger.GetForComponent("vault")

// Config holds the fixed parameters of a vault.
type Config struct {
	ID            string        // Identity of the vault; also the account it acts as towards its strategy
	Want          string        // Denom of the deposited asset
	Name          string        // Share token name
	Symbol        string        // Share token symbol
	DepositFeeBps uint32        // Fee taken on deposit, in [0, 10000)
	Capacity      sdkmath.Int   // TVL cap in base units; nil means uncapped
	Treasury      types.Account // Recipient of deposit fees
	Access        *access.Set   // Role set; admins may attach strategies and tune fees
	FeeSink       fees.Sink     // Where deposit fees are paid
	Guard         *guard.Guard  // Shared with the strategy; a new guard is created when nil
	Observer      Observer      // Optional flow observer
}

// ShareVault tracks user shares of a pool of want held idle or by the attached strategy.
type ShareVault struct {
	id       string
	want     string
	name     string
	symbol   string
	treasury types.Account
	access   *access.Set
	sink     fees.Sink
	guard    *guard.Guard
	observer Observer
	logger   zerolog.Logger

	mu                    sync.RWMutex
	depositFeeBps         uint32
	capacity              sdkmath.Int
	totalShares           sdkmath.Int
	idle                  sdkmath.Int
	shares                map[types.Account]sdkmath.Int
	cumulativeDeposits    map[types.Account]sdkmath.Int
	cumulativeWithdrawals map[types.Account]sdkmath.Int
	strategy              Strategy
}

func validateConfig(cfg Config) error {
	if cfg.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidConfig)
	}
	if err := sdk.ValidateDenom(cfg.Want); err != nil {
		return fmt.Errorf("%w: want denom: %w", ErrInvalidConfig, err)
	}
	if cfg.DepositFeeBps >= fees.BasisPoints {
		return fmt.Errorf("%w: deposit fee %d bps must be below %d", ErrInvalidConfig, cfg.DepositFeeBps, fees.BasisPoints)
	}
	if !cfg.Capacity.IsNil() && cfg.Capacity.IsNegative() {
		return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidConfig)
	}
	if cfg.Access == nil {
		return fmt.Errorf("%w: access set cannot be nil", ErrInvalidConfig)
	}
	if cfg.FeeSink == nil {
		return fmt.Errorf("%w: fee sink cannot be nil", ErrInvalidConfig)
	}
	if cfg.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury cannot be empty", ErrInvalidConfig)
	}
	return nil
}

// New creates an empty vault. A strategy must be attached before deposits are accepted.
func New(cfg Config) (*ShareVault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	g := cfg.Guard
	if g == nil {
		g = guard.New()
	}
	var obs Observer = noopObserver{}
	if cfg.Observer != nil {
		obs = cfg.Observer
	}

	v := &ShareVault{
		id:                    cfg.ID,
		want:                  cfg.Want,
		name:                  cfg.Name,
		symbol:                cfg.Symbol,
		treasury:              cfg.Treasury,
		access:                cfg.Access,
		sink:                  cfg.FeeSink,
		guard:                 g,
		observer:              obs,
		logger:                vaultLogger.With().Str("vault", cfg.ID).Logger(),
		depositFeeBps:         cfg.DepositFeeBps,
		capacity:              cfg.Capacity,
		totalShares:           sdkmath.ZeroInt(),
		idle:                  sdkmath.ZeroInt(),
		shares:                make(map[types.Account]sdkmath.Int),
		cumulativeDeposits:    make(map[types.Account]sdkmath.Int),
		cumulativeWithdrawals: make(map[types.Account]sdkmath.Int),
	}
	v.logger.Info().Str("want", cfg.Want).Uint32("deposit_fee_bps", cfg.DepositFeeBps).Msg("Vault created")
	return v, nil
}

// ID returns the vault identity.
func (v *ShareVault) ID() string { return v.id }

// Account returns the identity the vault uses when calling its strategy.
func (v *ShareVault) Account() types.Account { return types.Account(v.id) }

// Want returns the deposited denom.
func (v *ShareVault) Want() string { return v.want }

func (v *ShareVault) Name() string   { return v.name }
func (v *ShareVault) Symbol() string { return v.symbol }

// Guard returns the lease shared with the strategy.
func (v *ShareVault) Guard() *guard.Guard { return v.guard }

// Strategy returns the attached strategy, or nil.
func (v *ShareVault) Strategy() Strategy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.strategy
}

// Available returns the want held idle by the vault.
func (v *ShareVault) Available() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.idle
}

// TotalShares returns the share supply.
func (v *ShareVault) TotalShares() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalShares
}

// BalanceOf returns the shares held by account.
func (v *ShareVault) BalanceOf(account types.Account) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return valueOrZero(v.shares, account)
}

// DepositFeeBps returns the current deposit fee.
func (v *ShareVault) DepositFeeBps() uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.depositFeeBps
}

// Capacity returns the TVL cap and whether one is set.
func (v *ShareVault) Capacity() (sdkmath.Int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.capacity.IsNil() {
		return sdkmath.ZeroInt(), false
	}
	return v.capacity, true
}

// Balance returns the total managed assets: idle plus whatever the strategy manages.
func (v *ShareVault) Balance(ctx context.Context) (sdkmath.Int, error) {
	ctx, release, err := v.guard.EnterShared(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	defer release()

	v.mu.RLock()
	idle, strat := v.idle, v.strategy
	v.mu.RUnlock()
	return totalAssets(ctx, idle, strat)
}

// PricePerShare returns Balance / TotalShares, or 1 when no shares exist.
func (v *ShareVault) PricePerShare(ctx context.Context) (sdkmath.LegacyDec, error) {
	ctx, release, err := v.guard.EnterShared(ctx)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	defer release()

	v.mu.RLock()
	idle, strat, supply := v.idle, v.strategy, v.totalShares
	v.mu.RUnlock()

	if supply.IsZero() {
		return sdkmath.LegacyOneDec(), nil
	}
	total, err := totalAssets(ctx, idle, strat)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return sdkmath.LegacyNewDecFromInt(total).QuoInt(supply), nil
}

func totalAssets(ctx context.Context, idle sdkmath.Int, strat Strategy) (sdkmath.Int, error) {
	if strat == nil {
		return idle, nil
	}
	managed, err := strat.ManagedBalance(ctx)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to read strategy balance: %w", err)
	}
	return idle.Add(managed), nil
}

func valueOrZero(m map[types.Account]sdkmath.Int, key types.Account) sdkmath.Int {
	if amount, ok := m[key]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}
