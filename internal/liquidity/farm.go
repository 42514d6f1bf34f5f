package liquidity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/logger"
)

// SecondsPerYear is the annualization base for reward accrual.
const SecondsPerYear = 365 * 24 * 60 * 60

var (
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInvalidExchangeRate = errors.New("exchange rate must be positive")
)

var farmLogger = logger.GetForComponent("liquidity_farm")

// FarmConfig parameterizes the simulated farm.
type FarmConfig struct {
	RewardRateBps       uint32            // Annual reward emission per unit of deployed capital, in reward units
	ExchangeRate        sdkmath.LegacyDec // Want received per reward unit when claiming
	WithdrawSlippageBps uint32            // Haircut applied to every capital withdrawal
}

// Farm is a deterministic in-memory yield source. Rewards accrue linearly on
// deployed capital and are converted to want on claim.
type Farm struct {
	mu          sync.Mutex
	cfg         FarmConfig
	clock       clock.Clock
	deployed    sdkmath.Int
	rewards     sdkmath.LegacyDec
	lastAccrual int64
}

// NewFarm creates an empty farm.
func NewFarm(cfg FarmConfig, c clock.Clock) (*Farm, error) {
	if c == nil {
		return nil, fmt.Errorf("farm clock cannot be nil")
	}
	if cfg.ExchangeRate.IsNil() || !cfg.ExchangeRate.IsPositive() {
		return nil, ErrInvalidExchangeRate
	}
	if cfg.WithdrawSlippageBps >= 10_000 {
		return nil, fmt.Errorf("withdraw slippage %d bps must be below 10000", cfg.WithdrawSlippageBps)
	}
	return &Farm{
		cfg:         cfg,
		clock:       c,
		deployed:    sdkmath.ZeroInt(),
		rewards:     sdkmath.LegacyZeroDec(),
		lastAccrual: c.Now(),
	}, nil
}

// accrued returns rewards including emission since the last accrual. Caller holds mu.
func (f *Farm) accrued(now int64) sdkmath.LegacyDec {
	elapsed := now - f.lastAccrual
	if elapsed <= 0 || f.deployed.IsZero() || f.cfg.RewardRateBps == 0 {
		return f.rewards
	}
	emission := sdkmath.LegacyNewDecFromInt(f.deployed).
		MulInt64(int64(f.cfg.RewardRateBps)).
		MulInt64(elapsed).
		QuoInt64(10_000).
		QuoInt64(SecondsPerYear)
	return f.rewards.Add(emission)
}

func (f *Farm) accrue() {
	now := f.clock.Now()
	f.rewards = f.accrued(now)
	f.lastAccrual = now
}

func (f *Farm) DeployCapital(ctx context.Context, amount sdkmath.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accrue()
	f.deployed = f.deployed.Add(amount)
	farmLogger.Debug().Str("amount", amount.String()).Str("deployed", f.deployed.String()).Msg("Capital deployed")
	return nil
}

func (f *Farm) WithdrawCapital(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := ctx.Err(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accrue()

	taken := sdkmath.MinInt(amount, f.deployed)
	f.deployed = f.deployed.Sub(taken)
	haircut := taken.MulRaw(int64(f.cfg.WithdrawSlippageBps)).QuoRaw(10_000)
	returned := taken.Sub(haircut)
	farmLogger.Debug().Str("requested", amount.String()).Str("returned", returned.String()).Msg("Capital withdrawn")
	return returned, nil
}

func (f *Farm) ClaimRewards(ctx context.Context) (sdkmath.Int, error) {
	if err := ctx.Err(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accrue()

	want := f.rewards.Mul(f.cfg.ExchangeRate).TruncateInt()
	// dust below one want unit stays in the reward pool
	f.rewards = f.rewards.Sub(sdkmath.LegacyNewDecFromInt(want).Quo(f.cfg.ExchangeRate))
	if f.rewards.IsNegative() {
		f.rewards = sdkmath.LegacyZeroDec()
	}
	return want, nil
}

func (f *Farm) PendingRewards(ctx context.Context) (sdkmath.Int, error) {
	if err := ctx.Err(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accrued(f.clock.Now()).Mul(f.cfg.ExchangeRate).TruncateInt(), nil
}

func (f *Farm) ManagedBalance(ctx context.Context) (sdkmath.Int, error) {
	if err := ctx.Err(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployed, nil
}
