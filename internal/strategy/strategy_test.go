package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/vault"
)

const (
	want       = "uusdc"
	decimals   = 6
	admin      = types.Account("admin")
	keeperAcct = types.Account("keeper")
	strategist = types.Account("strategist")
	treasury   = types.Account("treasury")
	splitter   = types.Account("payment-splitter")
	alice      = types.Account("alice")
	bob        = types.Account("bob")
)

var defaultFees = fees.FeeConfig{TreasuryBps: 304, StrategistBps: 101, CallerBps: 45}

func toWantUnit(units int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(units, decimals)
}

// flakySource wraps a source with injectable failures and hooks.
type flakySource struct {
	liquidity.Source
	claimErr    error
	withdrawErr error
	deployErr   error
	onClaim     func(ctx context.Context)
}

func (f *flakySource) DeployCapital(ctx context.Context, amount sdkmath.Int) error {
	if f.deployErr != nil {
		return f.deployErr
	}
	return f.Source.DeployCapital(ctx, amount)
}

func (f *flakySource) WithdrawCapital(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if f.withdrawErr != nil {
		return sdkmath.ZeroInt(), f.withdrawErr
	}
	return f.Source.WithdrawCapital(ctx, amount)
}

func (f *flakySource) ClaimRewards(ctx context.Context) (sdkmath.Int, error) {
	if f.onClaim != nil {
		f.onClaim(ctx)
	}
	if f.claimErr != nil {
		return sdkmath.ZeroInt(), f.claimErr
	}
	return f.Source.ClaimRewards(ctx)
}

type fixture struct {
	ctx    context.Context
	clock  *clock.Manual
	ledger *fees.Ledger
	roles  *access.Set
	farm   *liquidity.Farm
	source *flakySource
	vault  *vault.ShareVault
	strat  *Strategy
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		clock:  clock.NewManual(1_700_000_000),
		ledger: fees.NewLedger(),
		roles:  access.NewSet(admin),
	}
	f.roles.Grant(access.RoleKeeper, keeperAcct)

	var err error
	f.farm, err = liquidity.NewFarm(liquidity.FarmConfig{
		RewardRateBps: 2_000,
		ExchangeRate:  sdkmath.LegacyOneDec(),
	}, f.clock)
	require.NoError(t, err)
	f.source = &flakySource{Source: f.farm}

	f.vault, err = vault.New(vault.Config{
		ID:       "reaper-usdc",
		Want:     want,
		Name:     "USDC Crypt",
		Symbol:   "rfUSDC",
		Treasury: treasury,
		Access:   f.roles,
		FeeSink:  f.ledger,
	})
	require.NoError(t, err)

	cfg := Config{
		Custodian:         f.vault,
		Source:            f.source,
		Access:            f.roles,
		FeeSink:           f.ledger,
		Clock:             f.clock,
		Recipients:        types.FeeRecipients{Treasury: treasury, PaymentSplitter: splitter, Strategists: []types.Account{strategist}},
		Fees:              defaultFees,
		SecurityFeeBps:    fees.MaxSecurityFeeBps,
		HarvestLogCadence: 3600,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.strat, err = New(cfg)
	require.NoError(t, err)
	require.NoError(t, f.vault.Attach(f.ctx, admin, f.strat))
	return f
}

func (f *fixture) balance(t *testing.T) sdkmath.Int {
	t.Helper()
	bal, err := f.vault.Balance(f.ctx)
	require.NoError(t, err)
	return bal
}

func (f *fixture) strategyBalance(t *testing.T) sdkmath.Int {
	t.Helper()
	bal, err := f.strat.ManagedBalance(f.ctx)
	require.NoError(t, err)
	return bal
}

func TestNewValidatesConfig(t *testing.T) {
	f := newFixture(t)
	base := Config{
		Custodian:  f.vault,
		Source:     f.farm,
		Access:     f.roles,
		FeeSink:    f.ledger,
		Clock:      f.clock,
		Recipients: types.FeeRecipients{Treasury: treasury, PaymentSplitter: splitter, Strategists: []types.Account{strategist}},
		Fees:       defaultFees,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no source", func(c *Config) { c.Source = nil }, ErrInvalidConfig},
		{"no strategists", func(c *Config) { c.Recipients.Strategists = nil }, ErrInvalidConfig},
		{"no splitter", func(c *Config) { c.Recipients.PaymentSplitter = "" }, ErrInvalidConfig},
		{"empty strategist", func(c *Config) { c.Recipients.Strategists = []types.Account{""} }, ErrInvalidConfig},
		{"fees over cap", func(c *Config) { c.Fees.TreasuryBps = 2_000 }, types.ErrInvalidFeeConfig},
		{"security fee over cap", func(c *Config) { c.SecurityFeeBps = 11 }, types.ErrInvalidFeeConfig},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDepositIsDeployedWithinTolerance(t *testing.T) {
	f := newFixture(t)
	amount := toWantUnit(1_000)

	_, err := f.vault.Deposit(f.ctx, alice, amount)
	require.NoError(t, err)

	balance := f.balance(t)
	tolerance := amount.QuoRaw(200)
	assert.True(t, balance.GTE(amount.Sub(tolerance)), "balance %s below tolerance", balance)
	assert.Equal(t, balance, f.strategyBalance(t))
	assert.True(t, f.vault.Available().IsZero())
}

func TestRoundTripCostsOnlySecurityFee(t *testing.T) {
	f := newFixture(t)
	amount := toWantUnit(1_000)

	_, err := f.vault.Deposit(f.ctx, alice, amount)
	require.NoError(t, err)
	payout, err := f.vault.WithdrawAll(f.ctx, alice)
	require.NoError(t, err)

	expected := amount.Sub(amount.MulRaw(fees.MaxSecurityFeeBps).QuoRaw(fees.BasisPoints))
	diff := expected.Sub(payout).Abs()
	assert.True(t, diff.LT(sdkmath.NewInt(200)), "expected %s got %s", expected, payout)
	assert.True(t, f.vault.TotalShares().IsZero())
}

func TestSecurityFeeStaysWithRemainingHolders(t *testing.T) {
	f := newFixture(t)

	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	_, err = f.vault.Deposit(f.ctx, bob, toWantUnit(1_000))
	require.NoError(t, err)

	_, err = f.vault.WithdrawAll(f.ctx, alice)
	require.NoError(t, err)

	// alice left 1 unit of fee behind for bob
	assert.Equal(t, toWantUnit(1_001), f.balance(t))
	assert.Equal(t, toWantUnit(1_000), f.vault.BalanceOf(bob))
}

func TestAPRRequiresHarvestHistory(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)

	_, err = f.strat.AverageAPRAcrossLastNHarvests(1)
	assert.ErrorIs(t, err, types.ErrInsufficientHistory)

	f.clock.Advance(3600)
	_, err = f.strat.Harvest(f.ctx, alice)
	require.NoError(t, err)

	apr, err := f.strat.AverageAPRAcrossLastNHarvests(1)
	require.NoError(t, err)
	assert.True(t, apr.IsPositive())

	_, err = f.strat.AverageAPRAcrossLastNHarvests(0)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestProvidesYield(t *testing.T) {
	f := newFixture(t)
	const timeToSkip = 3600
	const numHarvests = 5

	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	initial := f.balance(t)

	require.NoError(t, f.strat.UpdateHarvestLogCadence(f.ctx, strategist, timeToSkip/2))

	previous := initial
	for i := 0; i < numHarvests; i++ {
		f.clock.Advance(timeToSkip)
		_, err := f.strat.Harvest(f.ctx, alice)
		require.NoError(t, err)

		current := f.balance(t)
		assert.True(t, current.GT(previous), "harvest %d did not grow the vault", i)
		previous = current
	}
	assert.True(t, f.balance(t).GT(initial))
	assert.Len(t, f.strat.HarvestLog(), numHarvests)

	// 20% farm emission, measured on the claim before fees
	apr, err := f.strat.AverageAPRAcrossLastNHarvests(numHarvests)
	require.NoError(t, err)
	assert.True(t, apr.GTE(sdkmath.NewInt(1_990)) && apr.LTE(sdkmath.NewInt(2_000)), "apr %s bps", apr)
}

func TestHarvestPaysFees(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	f.clock.Advance(3600)

	profit, callerShare, err := f.strat.EstimateHarvest(f.ctx)
	require.NoError(t, err)

	receipt, err := f.strat.Harvest(f.ctx, bob)
	require.NoError(t, err)

	assert.Equal(t, profit, receipt.Profit)
	assert.Equal(t, callerShare, receipt.CallerShare)
	assert.Equal(t, receipt.TreasuryShare, f.ledger.Balance(treasury, want))
	assert.Equal(t, receipt.StrategistShare, f.ledger.Balance(splitter, want))
	assert.Equal(t, receipt.CallerShare, f.ledger.Balance(bob, want))
	assert.Equal(t, receipt.Profit, receipt.TreasuryShare.Add(receipt.StrategistShare).Add(receipt.CallerShare).Add(receipt.Reinvested))

	entry := f.strat.HarvestLog()[0]
	assert.Equal(t, receipt.Profit, entry.Profit, "the log keeps the claim before fees")
	assert.Equal(t, toWantUnit(1_000), entry.BalanceBefore)
	assert.Equal(t, int64(3600), entry.Elapsed)
}

func TestRestrictedHarvest(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RestrictHarvest = true })
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(10))
	require.NoError(t, err)
	f.clock.Advance(3600)

	_, err = f.strat.Harvest(f.ctx, alice)
	assert.ErrorIs(t, err, types.ErrNotAuthorized)

	_, err = f.strat.Harvest(f.ctx, keeperAcct)
	assert.NoError(t, err)
}

func TestHarvestClaimFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	f.clock.Advance(3600)
	before := f.balance(t)
	last := f.strat.LastHarvest()

	f.source.claimErr = errors.New("reward router offline")
	_, err = f.strat.Harvest(f.ctx, alice)
	require.Error(t, err)

	assert.Empty(t, f.strat.HarvestLog())
	assert.Equal(t, last, f.strat.LastHarvest())
	assert.Equal(t, before, f.balance(t))
	assert.True(t, f.ledger.Total(want).IsZero())
}

func TestHarvestRedeployFailureKeepsProfit(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	f.clock.Advance(3600)

	f.source.deployErr = errors.New("pool full")
	receipt, err := f.strat.Harvest(f.ctx, alice)
	require.NoError(t, err)

	// reinvested profit is held by the strategy and still counts toward the vault
	assert.Equal(t, toWantUnit(1_000).Add(receipt.Reinvested), f.balance(t))

	f.source.deployErr = nil
	_, err = f.vault.Deposit(f.ctx, bob, toWantUnit(1))
	require.NoError(t, err)
	deployed, err := f.farm.ManagedBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, toWantUnit(1_001).Add(receipt.Reinvested), deployed)
}

func TestHarvestWithoutCapitalLogsZeroAPR(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(3600)

	_, err := f.strat.Harvest(f.ctx, alice)
	require.NoError(t, err)

	apr, err := f.strat.AverageAPRAcrossLastNHarvests(1)
	require.NoError(t, err)
	assert.True(t, apr.IsZero())
}

func TestPauseGatesDepositsAndHarvests(t *testing.T) {
	f := newFixture(t)
	amount := toWantUnit(1)

	require.NoError(t, f.strat.Pause(f.ctx, strategist))
	assert.Equal(t, types.StatePaused, f.strat.State())

	_, err := f.vault.Deposit(f.ctx, alice, amount)
	assert.ErrorIs(t, err, types.ErrStrategyNotActive)
	_, err = f.strat.Harvest(f.ctx, alice)
	assert.ErrorIs(t, err, types.ErrStrategyNotActive)
	assert.ErrorIs(t, f.strat.Pause(f.ctx, strategist), types.ErrInvalidTransition)

	require.NoError(t, f.strat.Unpause(f.ctx, admin))
	_, err = f.vault.Deposit(f.ctx, alice, amount)
	assert.NoError(t, err)

	assert.ErrorIs(t, f.strat.Pause(f.ctx, alice), types.ErrNotAuthorized)
}

func TestPanicReturnsEverythingToVault(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, sdkmath.NewInt(700)) // 0.0007 units
	require.NoError(t, err)

	vaultBalance := f.balance(t)
	assert.Equal(t, vaultBalance, f.strategyBalance(t))

	require.NoError(t, f.strat.Panic(f.ctx, strategist))

	allowedImprecision := sdkmath.LegacyNewDecWithPrec(1, 9).MulInt(sdkmath.NewIntWithDecimal(1, decimals)).TruncateInt()
	assert.True(t, f.balance(t).Sub(vaultBalance).Abs().LTE(allowedImprecision))
	assert.True(t, f.strategyBalance(t).IsZero())
	assert.Equal(t, vaultBalance, f.vault.Available())
	assert.Equal(t, types.StatePanicked, f.strat.State())

	assert.ErrorIs(t, f.strat.Unpause(f.ctx, admin), types.ErrInvalidTransition)
	_, err = f.vault.Deposit(f.ctx, alice, toWantUnit(1))
	assert.ErrorIs(t, err, types.ErrStrategyNotActive)

	payout, err := f.vault.WithdrawAll(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(700), payout)
}

func TestPanicFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(5))
	require.NoError(t, err)

	f.source.withdrawErr = errors.New("farm halted")
	require.Error(t, f.strat.Panic(f.ctx, admin))

	assert.Equal(t, types.StateActive, f.strat.State())
	assert.True(t, f.vault.Available().IsZero())
	assert.Equal(t, toWantUnit(5), f.strategyBalance(t))
}

func TestRetireStrat(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(100))
	require.NoError(t, err)

	vaultBalance := f.balance(t)
	assert.Equal(t, vaultBalance, f.strategyBalance(t))

	require.NoError(t, f.strat.RetireStrat(f.ctx, admin))

	allowedImprecision := sdkmath.LegacyNewDecWithPrec(1, 3).MulInt(sdkmath.NewIntWithDecimal(1, decimals)).TruncateInt()
	assert.True(t, f.balance(t).Sub(vaultBalance).Abs().LTE(allowedImprecision))
	assert.True(t, f.strategyBalance(t).LT(allowedImprecision))
	assert.Equal(t, types.StateRetired, f.strat.State())
	assert.Nil(t, f.vault.Strategy())

	// retiring twice is benign
	assert.NoError(t, f.strat.RetireStrat(f.ctx, admin))
	assert.NoError(t, f.strat.Pause(f.ctx, admin))
	assert.NoError(t, f.strat.Unpause(f.ctx, admin))
	assert.NoError(t, f.strat.Panic(f.ctx, admin))
	assert.Equal(t, types.StateRetired, f.strat.State())
	assert.ErrorIs(t, f.vault.Attach(f.ctx, admin, f.strat), types.ErrAlreadyRetired)

	// users can still leave after retirement
	payout, err := f.vault.WithdrawAll(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, toWantUnit(100), payout)
}

func TestRetireEmptyStrategyNeverFails(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.strat.RetireStrat(f.ctx, strategist))

	// a strategy that was never attached can retire too
	orphan, err := New(Config{
		Custodian:  f.vault,
		Source:     f.farm,
		Access:     f.roles,
		FeeSink:    f.ledger,
		Clock:      f.clock,
		Recipients: types.FeeRecipients{Treasury: treasury, PaymentSplitter: splitter, Strategists: []types.Account{strategist}},
		Fees:       defaultFees,
	})
	require.NoError(t, err)
	assert.NoError(t, orphan.RetireStrat(f.ctx, admin))
	assert.Equal(t, types.StateRetired, orphan.State())
}

func TestReplacementStrategyReceivesIdleFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(50))
	require.NoError(t, err)
	require.NoError(t, f.strat.RetireStrat(f.ctx, admin))
	assert.Equal(t, toWantUnit(50), f.vault.Available())

	next, err := New(Config{
		Custodian:  f.vault,
		Source:     f.source,
		Access:     f.roles,
		FeeSink:    f.ledger,
		Clock:      f.clock,
		Recipients: types.FeeRecipients{Treasury: treasury, PaymentSplitter: splitter, Strategists: []types.Account{strategist}},
		Fees:       defaultFees,
	})
	require.NoError(t, err)
	require.NoError(t, f.vault.Attach(f.ctx, admin, next))

	assert.True(t, f.vault.Available().IsZero())
	bal, err := next.ManagedBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, toWantUnit(50), bal)
}

func TestSourceCannotReenterDuringHarvest(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(10))
	require.NoError(t, err)
	f.clock.Advance(3600)

	var reentryErr error
	f.source.onClaim = func(ctx context.Context) {
		_, reentryErr = f.vault.Deposit(ctx, bob, toWantUnit(1))
	}
	_, err = f.strat.Harvest(f.ctx, alice)
	require.NoError(t, err)

	assert.ErrorIs(t, reentryErr, types.ErrReentrantCall)
	assert.True(t, f.vault.BalanceOf(bob).IsZero())
}

func TestSourceReentryWithFreshContextFailsFast(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(10))
	require.NoError(t, err)
	f.clock.Advance(3600)

	var reentryErr error
	f.source.onClaim = func(context.Context) {
		_, reentryErr = f.vault.Deposit(context.Background(), bob, toWantUnit(1))
	}
	harvested := make(chan error, 1)
	go func() {
		_, err := f.strat.Harvest(f.ctx, alice)
		harvested <- err
	}()

	select {
	case err := <-harvested:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("harvest blocked on a reentrant deposit")
	}
	assert.ErrorIs(t, reentryErr, types.ErrReentrantCall)
	assert.True(t, f.vault.BalanceOf(bob).IsZero())
	assert.Len(t, f.strat.HarvestLog(), 1)

	f.source.onClaim = nil
	_, err = f.vault.Deposit(f.ctx, bob, toWantUnit(1))
	assert.NoError(t, err)
}

// refusingSink fails every payment to one recipient.
type refusingSink struct {
	*fees.Ledger
	refuse types.Account
}

func (r *refusingSink) Receive(ctx context.Context, coin sdk.Coin, recipient types.Account) error {
	if recipient == r.refuse {
		return errors.New("splitter contract paused")
	}
	return r.Ledger.Receive(ctx, coin, recipient)
}

func TestHarvestFeeFailureKeepsYieldInLog(t *testing.T) {
	sink := &refusingSink{refuse: splitter}
	f := newFixture(t, func(c *Config) {
		sink.Ledger = c.FeeSink.(*fees.Ledger)
		c.FeeSink = sink
	})
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(1_000))
	require.NoError(t, err)
	f.clock.Advance(3600)

	receipt, err := f.strat.Harvest(f.ctx, bob)
	require.ErrorIs(t, err, types.ErrFeePayment)

	log := f.strat.HarvestLog()
	require.Len(t, log, 1)
	assert.True(t, receipt.Profit.IsPositive())
	assert.Equal(t, receipt.Profit, log[0].Profit)
	assert.Equal(t, f.clock.Now(), f.strat.LastHarvest())

	assert.True(t, receipt.StrategistShare.IsZero())
	assert.True(t, f.ledger.Balance(splitter, want).IsZero())
	assert.True(t, receipt.TreasuryShare.IsPositive())
	assert.Equal(t, receipt.TreasuryShare, f.ledger.Balance(treasury, want))
	assert.Equal(t, receipt.CallerShare, f.ledger.Balance(bob, want))
	assert.Equal(t, receipt.Profit, receipt.TreasuryShare.Add(receipt.CallerShare).Add(receipt.Reinvested))

	// the unpaid strategist fee stays invested for the holders
	assert.Equal(t, toWantUnit(1_000).Add(receipt.Reinvested), f.balance(t))
}

func TestOnlyVaultMovesCapital(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.strat.Deposit(f.ctx, alice, sdkmath.NewInt(1)), types.ErrNotAuthorized)
	_, err := f.strat.Withdraw(f.ctx, alice, sdkmath.NewInt(1))
	assert.ErrorIs(t, err, types.ErrNotAuthorized)
}

func TestConcurrentDepositsKeepAccounting(t *testing.T) {
	f := newFixture(t)
	const depositors = 16

	var wg sync.WaitGroup
	for i := 0; i < depositors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := types.Account("user-" + string(rune('a'+i)))
			_, err := f.vault.Deposit(f.ctx, caller, toWantUnit(10))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, toWantUnit(10*depositors), f.vault.TotalShares())
	assert.Equal(t, toWantUnit(10*depositors), f.balance(t))
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)

	t.Run("fees", func(t *testing.T) {
		assert.ErrorIs(t, f.strat.UpdateFees(f.ctx, strategist, defaultFees), types.ErrNotAuthorized)
		assert.ErrorIs(t, f.strat.UpdateFees(f.ctx, admin, fees.FeeConfig{TreasuryBps: 1_001}), types.ErrInvalidFeeConfig)
		require.NoError(t, f.strat.UpdateFees(f.ctx, admin, fees.FeeConfig{TreasuryBps: 500, CallerBps: 100}))
		assert.Equal(t, uint32(500), f.strat.Fees().TreasuryBps)
	})

	t.Run("security fee", func(t *testing.T) {
		assert.ErrorIs(t, f.strat.UpdateSecurityFee(f.ctx, admin, 11), types.ErrInvalidFeeConfig)
		require.NoError(t, f.strat.UpdateSecurityFee(f.ctx, admin, 0))
		assert.Zero(t, f.strat.SecurityFeeBps())
	})

	t.Run("strategists", func(t *testing.T) {
		assert.ErrorIs(t, f.strat.RemoveStrategist(f.ctx, admin, strategist), types.ErrInvalidFeeConfig)

		require.NoError(t, f.strat.AddStrategist(f.ctx, admin, "second"))
		require.NoError(t, f.strat.AddStrategist(f.ctx, admin, "second"))
		assert.Len(t, f.strat.Recipients().Strategists, 2)
		assert.True(t, f.roles.Has(access.RoleStrategist, "second"))

		require.NoError(t, f.strat.RemoveStrategist(f.ctx, admin, strategist))
		assert.Equal(t, []types.Account{"second"}, f.strat.Recipients().Strategists)
		assert.False(t, f.roles.Has(access.RoleStrategist, strategist))
	})

	t.Run("cadence", func(t *testing.T) {
		assert.ErrorIs(t, f.strat.UpdateHarvestLogCadence(f.ctx, alice, 60), types.ErrNotAuthorized)
		require.NoError(t, f.strat.UpdateHarvestLogCadence(f.ctx, admin, 60))
		now := f.strat.LastHarvest()
		assert.False(t, f.strat.HarvestDue(now+59))
		assert.True(t, f.strat.HarvestDue(now+60))
	})
}

func TestRestoreHarvestLog(t *testing.T) {
	f := newFixture(t)
	entries := []types.HarvestEntry{entryAt(1_700_000_100), entryAt(1_700_000_200)}

	require.NoError(t, f.strat.RestoreHarvestLog(entries))
	assert.Equal(t, int64(1_700_000_200), f.strat.LastHarvest())
	assert.Len(t, f.strat.HarvestLog(), 2)
	assert.ErrorIs(t, f.strat.RestoreHarvestLog(entries), types.ErrInvalidTransition)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, toWantUnit(3))
	require.NoError(t, err)

	snap, err := f.strat.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, want, snap.Want)
	assert.Equal(t, types.StateActive, snap.State)
	assert.Equal(t, toWantUnit(3), snap.ManagedBalance)
	assert.Equal(t, uint32(fees.MaxSecurityFeeBps), snap.WithdrawFeeBps)
	assert.Equal(t, []types.Account{strategist}, snap.Recipients.Strategists)
}
