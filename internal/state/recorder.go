package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/elys-network/autocompounder/internal/types"
)

// ErrPersistenceDisabled is returned by NoopRecorder for history queries.
var ErrPersistenceDisabled = errors.New("persistence disabled")

// Recorder persists what the keeper observes each cycle.
type Recorder interface {
	// NextCycle allocates the next keeper cycle number.
	NextCycle(ctx context.Context) (int, error)
	RecordVault(ctx context.Context, snap types.VaultSnapshot) error
	// RecordStrategy stores the strategy's harvest log entries that are not stored yet.
	RecordStrategy(ctx context.Context, cycle int, snap types.StrategySnapshot) error
	Summary(ctx context.Context) (*HarvestSummary, error)
}

// PostgresRecorder writes to the global DB pool.
type PostgresRecorder struct {
	vaultID string
}

var _ Recorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder returns a recorder for the vault. InitDB must have been called.
func NewPostgresRecorder(vaultID string) (*PostgresRecorder, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}
	if vaultID == "" {
		return nil, errors.New("vault id is required")
	}
	return &PostgresRecorder{vaultID: vaultID}, nil
}

func (r *PostgresRecorder) NextCycle(ctx context.Context) (int, error) {
	return IncrementCycleNumber(ctx)
}

func (r *PostgresRecorder) RecordVault(ctx context.Context, snap types.VaultSnapshot) error {
	if _, err := SaveVaultSnapshot(ctx, r.vaultID, snap); err != nil {
		return fmt.Errorf("record vault %s: %w", r.vaultID, err)
	}
	return nil
}

func (r *PostgresRecorder) RecordStrategy(ctx context.Context, cycle int, snap types.StrategySnapshot) error {
	if _, err := SaveHarvestEntries(ctx, r.vaultID, cycle, snap.State, snap.HarvestLog); err != nil {
		return fmt.Errorf("record strategy of %s: %w", r.vaultID, err)
	}
	return nil
}

func (r *PostgresRecorder) Summary(ctx context.Context) (*HarvestSummary, error) {
	return GetHarvestSummary(ctx, r.vaultID)
}

// NoopRecorder keeps only an in-memory cycle counter.
type NoopRecorder struct {
	mu    sync.Mutex
	cycle int
}

var _ Recorder = (*NoopRecorder)(nil)

func (r *NoopRecorder) NextCycle(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycle++
	return r.cycle, nil
}

func (r *NoopRecorder) RecordVault(context.Context, types.VaultSnapshot) error { return nil }

func (r *NoopRecorder) RecordStrategy(context.Context, int, types.StrategySnapshot) error {
	return nil
}

func (r *NoopRecorder) Summary(context.Context) (*HarvestSummary, error) {
	return nil, ErrPersistenceDisabled
}

// VaultRestorer accepts a persisted vault snapshot.
type VaultRestorer interface {
	Restore(ctx context.Context, snap types.VaultSnapshot) error
}

// HarvestLogRestorer accepts a persisted harvest log.
type HarvestLogRestorer interface {
	RestoreHarvestLog(entries []types.HarvestEntry) error
}

// SeedFunc receives the amount the snapshot attributed to the strategy.
type SeedFunc func(ctx context.Context, managed sdkmath.Int) error

// RestoreLatest loads the newest vault snapshot and up to logLimit harvest entries and applies
// them. seed, when non-nil, runs before the vault is restored. It reports false when nothing
// was stored for the vault.
func RestoreLatest(ctx context.Context, vaultID string, v VaultRestorer, s HarvestLogRestorer, logLimit int, seed SeedFunc) (bool, error) {
	snap, err := LoadLatestVaultSnapshot(ctx, vaultID)
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	managed := sdkmath.ZeroInt()
	if snap.TotalManagedAssets.GT(snap.IdleBalance) {
		managed = snap.TotalManagedAssets.Sub(snap.IdleBalance)
	}
	if seed != nil && managed.IsPositive() {
		if err := seed(ctx, managed); err != nil {
			return false, fmt.Errorf("seed strategy balance: %w", err)
		}
	}
	if err := v.Restore(ctx, *snap); err != nil {
		return false, fmt.Errorf("restore vault: %w", err)
	}

	entries, err := LoadHarvestLog(ctx, vaultID, logLimit)
	if err != nil {
		return true, fmt.Errorf("load harvest log: %w", err)
	}
	if err := s.RestoreHarvestLog(entries); err != nil {
		return true, fmt.Errorf("restore harvest log: %w", err)
	}

	stateLogger.Info().
		Str("vault", vaultID).
		Int("cycle", snap.CycleNumber).
		Int("harvests", len(entries)).
		Str("managed", managed.String()).
		Msg("Restored vault state from database")
	return true, nil
}
