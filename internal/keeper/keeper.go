package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/state"
	"github.com/elys-network/autocompounder/internal/types"
)

// DefaultAPRWindow is the number of harvests averaged for the APR gauge.
const DefaultAPRWindow = 10

// Skip reasons reported in CycleResult.
const (
	SkipNotActive = "strategy not active"
	SkipNotDue    = "harvest not due"
	SkipNoRewards = "no pending rewards"
)

// Vault is the part of the share vault the keeper reads.
type Vault interface {
	ID() string
	Snapshot(ctx context.Context) (types.VaultSnapshot, error)
}

// Strategy is the part of the strategy the keeper drives.
type Strategy interface {
	State() types.StrategyState
	HarvestDue(now int64) bool
	EstimateHarvest(ctx context.Context) (profit sdkmath.Int, callerShare sdkmath.Int, err error)
	Harvest(ctx context.Context, caller types.Account) (types.HarvestReceipt, error)
	AverageAPRAcrossLastNHarvests(n int) (sdkmath.Int, error)
	Snapshot(ctx context.Context) (types.StrategySnapshot, error)
}

// Metrics receives what the keeper observes each cycle.
type Metrics interface {
	ObserveVault(snap types.VaultSnapshot)
	ObserveStrategy(st types.StrategyState, aprBps sdkmath.Int)
	ObserveHarvest(receipt types.HarvestReceipt)
	ObserveCycle(duration time.Duration, err error)
}

// Keeper harvests the strategy on a schedule and records what it sees.
type Keeper struct {
	logger    zerolog.Logger
	vault     Vault
	strategy  Strategy
	recorder  state.Recorder
	metrics   Metrics
	clock     clock.Clock
	account   types.Account
	aprWindow int

	mu   sync.RWMutex
	last *CycleResult
}

// Config holds the dependencies for creating a new Keeper
type Config struct {
	Vault     Vault
	Strategy  Strategy
	Recorder  state.Recorder // Defaults to a NoopRecorder
	Metrics   Metrics        // Optional
	Clock     clock.Clock
	Account   types.Account // Receives the caller share of every harvest
	APRWindow int           // Defaults to DefaultAPRWindow
}

// CycleResult summarizes one keeper cycle.
type CycleResult struct {
	CycleID     string                `json:"cycle_id"`
	CycleNumber int                   `json:"cycle_number"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Harvested   bool                  `json:"harvested"`
	SkipReason  string                `json:"skip_reason,omitempty"`
	Receipt     *types.HarvestReceipt `json:"receipt,omitempty"`
	APRBps      sdkmath.Int           `json:"apr_bps"`
	Vault       types.VaultSnapshot   `json:"vault"`
	Error       string                `json:"error,omitempty"`
}

// New creates a keeper.
func New(cfg Config) (*Keeper, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = &state.NoopRecorder{}
	}
	if cfg.APRWindow <= 0 {
		cfg.APRWindow = DefaultAPRWindow
	}

	k := &Keeper{
		logger:    logger.GetForComponent("keeper").With().Str("vault", cfg.Vault.ID()).Logger(),
		vault:     cfg.Vault,
		strategy:  cfg.Strategy,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		account:   cfg.Account,
		aprWindow: cfg.APRWindow,
	}
	k.logger.Info().
		Str("account", cfg.Account.String()).
		Int("aprWindow", cfg.APRWindow).
		Msg("Keeper created")
	return k, nil
}

func validateConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault cannot be nil")
	}
	if cfg.Strategy == nil {
		return errors.New("strategy cannot be nil")
	}
	if cfg.Clock == nil {
		return errors.New("clock cannot be nil")
	}
	if cfg.Account.IsZero() {
		return errors.New("keeper account cannot be empty")
	}
	return nil
}

// LastCycle returns the result of the most recent cycle, if any.
func (k *Keeper) LastCycle() (CycleResult, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.last == nil {
		return CycleResult{}, false
	}
	return *k.last, true
}

// RunLoop runs one cycle immediately and then on every tick of the cron schedule
// (six fields, seconds first) until ctx is done. Ticks that arrive while a cycle is
// still running are skipped.
func (k *Keeper) RunLoop(ctx context.Context, schedule string) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { k.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("register keeper schedule %q: %w", schedule, err)
	}

	k.logger.Info().Str("schedule", schedule).Msg("Starting keeper loop")
	k.runScheduled(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
	return nil
}

func (k *Keeper) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := k.RunCycle(ctx); err != nil {
		k.logger.Error().Err(err).Msg("Keeper cycle failed")
	}
}

// RunCycle harvests when the strategy is active, due and has rewards, then records
// vault and strategy snapshots and updates metrics.
func (k *Keeper) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now(),
		APRBps:    sdkmath.ZeroInt(),
	}
	cycleLogger := k.logger.With().Str("cycle_id", result.CycleID).Logger()

	err := k.runCycle(ctx, &result, cycleLogger)
	result.Duration = time.Since(result.StartedAt)
	if err != nil {
		result.Error = err.Error()
	}
	if k.metrics != nil {
		k.metrics.ObserveCycle(result.Duration, err)
	}

	k.mu.Lock()
	k.last = &result
	k.mu.Unlock()

	ev := cycleLogger.Info()
	if err != nil {
		ev = cycleLogger.Error().Err(err)
	}
	ev.Int("cycle", result.CycleNumber).
		Bool("harvested", result.Harvested).
		Str("skip", result.SkipReason).
		Dur("duration", result.Duration).
		Msg("Keeper cycle completed")
	return result, err
}

func (k *Keeper) runCycle(ctx context.Context, result *CycleResult, log zerolog.Logger) error {
	cycle, err := k.recorder.NextCycle(ctx)
	if err != nil {
		return fmt.Errorf("allocate cycle number: %w", err)
	}
	result.CycleNumber = cycle
	log.Debug().Int("cycle", cycle).Msg("Starting keeper cycle")

	harvestErr := k.maybeHarvest(ctx, result, log)
	if harvestErr != nil && !result.Harvested {
		return harvestErr
	}
	// a harvest whose fee payment failed still moved funds and is recorded
	return errors.Join(harvestErr, k.record(ctx, result))
}

func (k *Keeper) maybeHarvest(ctx context.Context, result *CycleResult, log zerolog.Logger) error {
	if st := k.strategy.State(); st != types.StateActive {
		result.SkipReason = SkipNotActive
		log.Info().Str("state", st.String()).Msg("Skipping harvest: strategy not active")
		return nil
	}
	if !k.strategy.HarvestDue(k.clock.Now()) {
		result.SkipReason = SkipNotDue
		return nil
	}

	profit, callerShare, err := k.strategy.EstimateHarvest(ctx)
	if err != nil {
		return fmt.Errorf("estimate harvest: %w", err)
	}
	if !profit.IsPositive() {
		result.SkipReason = SkipNoRewards
		return nil
	}
	log.Debug().
		Str("profit", profit.String()).
		Str("callerShare", callerShare.String()).
		Msg("Harvest estimate")

	receipt, err := k.strategy.Harvest(ctx, k.account)
	if err != nil && !errors.Is(err, types.ErrFeePayment) {
		return fmt.Errorf("harvest: %w", err)
	}
	result.Harvested = true
	result.Receipt = &receipt
	if k.metrics != nil {
		k.metrics.ObserveHarvest(receipt)
	}
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}

func (k *Keeper) record(ctx context.Context, result *CycleResult) error {
	vaultSnap, err := k.vault.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot vault: %w", err)
	}
	vaultSnap.CycleNumber = result.CycleNumber
	result.Vault = vaultSnap

	stratSnap, err := k.strategy.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot strategy: %w", err)
	}

	apr, err := k.strategy.AverageAPRAcrossLastNHarvests(k.aprWindow)
	switch {
	case errors.Is(err, types.ErrInsufficientHistory):
		apr = sdkmath.ZeroInt()
	case err != nil:
		return fmt.Errorf("average apr: %w", err)
	}
	result.APRBps = apr

	if k.metrics != nil {
		k.metrics.ObserveVault(vaultSnap)
		k.metrics.ObserveStrategy(stratSnap.State, apr)
	}

	return errors.Join(
		k.recorder.RecordVault(ctx, vaultSnap),
		k.recorder.RecordStrategy(ctx, result.CycleNumber, stratSnap),
	)
}
