// Package strategy implements the auto-compounding strategy that custodies a vault's funds:
// it deploys want into a liquidity source, harvests rewards back into want, pays fees
// and reinvests the rest, and gates all of it behind a lifecycle state machine.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/guard"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/vault"
)

// MaxTotalFeeBps caps the combined harvest fee at 10% of profit.
const MaxTotalFeeBps = 1_000

var ErrInvalidConfig = errors.New("strategy configuration is invalid")

var strategyLogger = logger.GetForComponent("strategy")

// Custodian is the vault side of the pairing: the strategy returns funds to it and
// detaches from it on retirement. *vault.ShareVault satisfies it.
type Custodian interface {
	ID() string
	Want() string
	Guard() *guard.Guard
	Strategy() vault.Strategy
	Reclaim(ctx context.Context, from vault.Strategy, amount sdkmath.Int) error
	Detach(ctx context.Context, from vault.Strategy) error
}

// Config wires a strategy to its vault, its liquidity source and its fee recipients.
type Config struct {
	Custodian         Custodian
	Source            liquidity.Source
	Access            *access.Set
	FeeSink           fees.Sink
	Clock             clock.Clock
	Recipients        types.FeeRecipients
	Fees              fees.FeeConfig
	SecurityFeeBps    uint32
	HarvestLogCadence int64 // seconds; advisory spacing between harvests
	LogCapacity       int
	RestrictHarvest   bool // limit Harvest to keepers, strategists and admins
}

// Strategy is a single-vault auto-compounder.
type Strategy struct {
	custodian Custodian
	vaultID   string
	want      string
	source    liquidity.Source
	access    *access.Set
	sink      fees.Sink
	clock     clock.Clock
	guard     *guard.Guard
	logger    zerolog.Logger

	mu              sync.RWMutex
	state           types.StrategyState
	recipients      types.FeeRecipients
	fees            fees.FeeConfig
	securityFeeBps  uint32
	cadence         int64
	restrictHarvest bool
	wantHeld        sdkmath.Int
	lastHarvest     int64
	log             *harvestLog
}

var _ vault.Strategy = (*Strategy)(nil)

func validateConfig(cfg Config) error {
	switch {
	case cfg.Custodian == nil:
		return fmt.Errorf("%w: custodian cannot be nil", ErrInvalidConfig)
	case cfg.Source == nil:
		return fmt.Errorf("%w: liquidity source cannot be nil", ErrInvalidConfig)
	case cfg.Access == nil:
		return fmt.Errorf("%w: access set cannot be nil", ErrInvalidConfig)
	case cfg.FeeSink == nil:
		return fmt.Errorf("%w: fee sink cannot be nil", ErrInvalidConfig)
	case cfg.Clock == nil:
		return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
	case cfg.Recipients.Treasury.IsZero():
		return fmt.Errorf("%w: treasury cannot be empty", ErrInvalidConfig)
	case cfg.Recipients.PaymentSplitter.IsZero():
		return fmt.Errorf("%w: payment splitter cannot be empty", ErrInvalidConfig)
	case len(cfg.Recipients.Strategists) == 0:
		return fmt.Errorf("%w: at least one strategist is required", ErrInvalidConfig)
	case cfg.HarvestLogCadence < 0:
		return fmt.Errorf("%w: harvest log cadence cannot be negative", ErrInvalidConfig)
	}
	if err := validateFees(cfg.Fees); err != nil {
		return err
	}
	if cfg.SecurityFeeBps > fees.MaxSecurityFeeBps {
		return fmt.Errorf("security fee %d bps above %d: %w", cfg.SecurityFeeBps, fees.MaxSecurityFeeBps, types.ErrInvalidFeeConfig)
	}
	return nil
}

func validateFees(cfg fees.FeeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Total() > MaxTotalFeeBps {
		return fmt.Errorf("fee split totals %d bps (max %d): %w", cfg.Total(), MaxTotalFeeBps, types.ErrInvalidFeeConfig)
	}
	return nil
}

// New builds an Active strategy for cfg.Custodian. It still has to be attached to the vault.
func New(cfg Config) (*Strategy, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	strategists := make([]types.Account, 0, len(cfg.Recipients.Strategists))
	for _, a := range cfg.Recipients.Strategists {
		if a.IsZero() {
			return nil, fmt.Errorf("%w: empty strategist", ErrInvalidConfig)
		}
		if !slices.Contains(strategists, a) {
			strategists = append(strategists, a)
			cfg.Access.Grant(access.RoleStrategist, a)
		}
	}
	recipients := cfg.Recipients
	recipients.Strategists = strategists

	s := &Strategy{
		custodian:       cfg.Custodian,
		vaultID:         cfg.Custodian.ID(),
		want:            cfg.Custodian.Want(),
		source:          cfg.Source,
		access:          cfg.Access,
		sink:            cfg.FeeSink,
		clock:           cfg.Clock,
		guard:           cfg.Custodian.Guard(),
		logger:          strategyLogger.With().Str("vault", cfg.Custodian.ID()).Logger(),
		state:           types.StateActive,
		recipients:      recipients,
		fees:            cfg.Fees,
		securityFeeBps:  cfg.SecurityFeeBps,
		cadence:         cfg.HarvestLogCadence,
		restrictHarvest: cfg.RestrictHarvest,
		wantHeld:        sdkmath.ZeroInt(),
		lastHarvest:     cfg.Clock.Now(),
		log:             newHarvestLog(cfg.LogCapacity),
	}
	s.logger.Info().
		Str("want", s.want).
		Uint64("total_fee_bps", cfg.Fees.Total()).
		Uint32("security_fee_bps", cfg.SecurityFeeBps).
		Msg("Strategy created")
	return s, nil
}

// Want returns the compounded denom.
func (s *Strategy) Want() string { return s.want }

// VaultID returns the identity of the owning vault.
func (s *Strategy) VaultID() string { return s.vaultID }

// State returns the lifecycle state.
func (s *Strategy) State() types.StrategyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ManagedBalance returns want held by the strategy plus want deployed in the source.
func (s *Strategy) ManagedBalance(ctx context.Context) (sdkmath.Int, error) {
	ctx, release, err := s.guard.EnterShared(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	defer release()

	ext, done := s.guard.External(ctx)
	deployed, err := s.source.ManagedBalance(ext)
	done()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to read liquidity source balance: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wantHeld.Add(deployed), nil
}

// Recipients returns a copy of the fee recipients.
func (s *Strategy) Recipients() types.FeeRecipients {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.recipients
	r.Strategists = slices.Clone(s.recipients.Strategists)
	return r
}

// Fees returns the harvest fee split.
func (s *Strategy) Fees() fees.FeeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees
}

// SecurityFeeBps returns the withdrawal fee.
func (s *Strategy) SecurityFeeBps() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.securityFeeBps
}

func (s *Strategy) requireVault(caller types.Account) error {
	if caller != types.Account(s.vaultID) {
		return fmt.Errorf("%q is not the vault: %w", caller, types.ErrNotAuthorized)
	}
	return nil
}

// Deposit deploys amount received from the vault, together with any want the strategy already holds.
func (s *Strategy) Deposit(ctx context.Context, caller types.Account, amount sdkmath.Int) error {
	if err := s.requireVault(caller); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("deposit of %v: %w", amount, types.ErrInvalidAmount)
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.RLock()
	state, held := s.state, s.wantHeld
	s.mu.RUnlock()
	if !state.CanDeploy() {
		return fmt.Errorf("strategy is %s: %w", state, types.ErrStrategyNotActive)
	}

	total := held.Add(amount)
	if !total.IsPositive() {
		return nil
	}
	ext, done := s.guard.External(ctx)
	err = s.source.DeployCapital(ext, total)
	done()
	if err != nil {
		return fmt.Errorf("failed to deploy %s: %w", total, err)
	}

	s.mu.Lock()
	s.wantHeld = s.wantHeld.Sub(held)
	s.mu.Unlock()
	s.logger.Debug().Str("amount", total.String()).Msg("Capital deployed")
	return nil
}

// Withdraw returns up to amount to the vault minus the security fee, which stays invested.
// Withdrawals are served in every lifecycle state.
func (s *Strategy) Withdraw(ctx context.Context, caller types.Account, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := s.requireVault(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("withdrawal of %v: %w", amount, types.ErrInvalidAmount)
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	s.mu.RLock()
	held, feeBps := s.wantHeld, s.securityFeeBps
	s.mu.RUnlock()

	fee := fees.WithdrawFee(amount, feeBps)
	target := amount.Sub(fee)
	fromHeld := sdkmath.MinInt(held, target)
	got := sdkmath.ZeroInt()
	if rest := target.Sub(fromHeld); rest.IsPositive() {
		ext, done := s.guard.External(ctx)
		got, err = s.source.WithdrawCapital(ext, rest)
		done()
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to withdraw %s from liquidity source: %w", rest, err)
		}
	}

	s.mu.Lock()
	s.wantHeld = s.wantHeld.Sub(fromHeld)
	s.mu.Unlock()

	out := fromHeld.Add(got)
	s.logger.Debug().
		Str("requested", amount.String()).
		Str("fee", fee.String()).
		Str("returned", out.String()).
		Msg("Capital returned to vault")
	return out, nil
}

// Snapshot captures the strategy for persistence and the status API.
func (s *Strategy) Snapshot(ctx context.Context) (types.StrategySnapshot, error) {
	ctx, release, err := s.guard.EnterShared(ctx)
	if err != nil {
		return types.StrategySnapshot{}, err
	}
	defer release()

	managed, err := s.ManagedBalance(ctx)
	if err != nil {
		return types.StrategySnapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipients := s.recipients
	recipients.Strategists = slices.Clone(s.recipients.Strategists)
	return types.StrategySnapshot{
		Want:              s.want,
		State:             s.state,
		ManagedBalance:    managed,
		WithdrawFeeBps:    s.securityFeeBps,
		HarvestLogCadence: s.cadence,
		LastHarvest:       s.lastHarvest,
		HarvestLog:        s.log.all(),
		Recipients:        recipients,
	}, nil
}
