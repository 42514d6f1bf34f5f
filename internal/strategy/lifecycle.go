package strategy

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/types"
)

// Valid transitions:
//
//	ACTIVE   -> PAUSED | PANICKED | RETIRED
//	PAUSED   -> ACTIVE | PANICKED | RETIRED
//	PANICKED -> RETIRED
//
// RETIRED is final; lifecycle calls on a retired strategy are ignored.
func canTransition(from, to types.StrategyState) bool {
	switch from {
	case types.StateActive:
		return to == types.StatePaused || to == types.StatePanicked || to == types.StateRetired
	case types.StatePaused:
		return to == types.StateActive || to == types.StatePanicked || to == types.StateRetired
	case types.StatePanicked:
		return to == types.StateRetired
	default:
		return false
	}
}

// retired reports whether the strategy is retired, logging the ignored call if so.
func (s *Strategy) retired(op string) bool {
	if s.State() != types.StateRetired {
		return false
	}
	s.logger.Info().Err(types.ErrAlreadyRetired).Str("op", op).Msg("Lifecycle call ignored")
	return true
}

func transitionError(from, to types.StrategyState) error {
	return fmt.Errorf("%s -> %s: %w", from, to, types.ErrInvalidTransition)
}

func (s *Strategy) setState(to types.StrategyState) types.StrategyState {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Strategy state changed")
	return from
}

// Pause stops deposits and harvests. Deployed capital stays in the liquidity source.
func (s *Strategy) Pause(ctx context.Context, caller types.Account) error {
	if err := s.access.Require(caller, access.RoleStrategist, access.RoleAdmin); err != nil {
		return err
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.retired("pause") {
		return nil
	}
	if from := s.State(); !canTransition(from, types.StatePaused) {
		return transitionError(from, types.StatePaused)
	}
	s.setState(types.StatePaused)
	return nil
}

// Unpause reactivates a paused strategy and redeploys the want it holds.
func (s *Strategy) Unpause(ctx context.Context, caller types.Account) error {
	if err := s.access.Require(caller, access.RoleStrategist, access.RoleAdmin); err != nil {
		return err
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.retired("unpause") {
		return nil
	}
	if from := s.State(); !canTransition(from, types.StateActive) {
		return transitionError(from, types.StateActive)
	}
	s.setState(types.StateActive)
	s.redeployHeld(ctx)
	return nil
}

// Panic pulls everything out of the liquidity source, skipping the harvest, and hands it
// back to the vault. The strategy ends up PANICKED; only retirement follows.
func (s *Strategy) Panic(ctx context.Context, caller types.Account) error {
	if err := s.access.Require(caller, access.RoleStrategist, access.RoleAdmin); err != nil {
		return err
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.retired("panic") {
		return nil
	}
	if from := s.State(); !canTransition(from, types.StatePanicked) {
		return transitionError(from, types.StatePanicked)
	}
	if err := s.withdrawAllToCustodian(ctx); err != nil {
		return err
	}
	s.setState(types.StatePanicked)
	return nil
}

// RetireStrat empties the strategy into the vault and detaches from it.
// Retiring an already retired strategy is a no-op.
func (s *Strategy) RetireStrat(ctx context.Context, caller types.Account) error {
	if err := s.access.Require(caller, access.RoleStrategist, access.RoleAdmin); err != nil {
		return err
	}
	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if s.retired("retire") {
		return nil
	}
	if err := s.withdrawAllToCustodian(ctx); err != nil {
		return err
	}
	if s.attached() {
		if err := s.custodian.Detach(ctx, s); err != nil {
			return fmt.Errorf("failed to detach from vault: %w", err)
		}
	}
	s.setState(types.StateRetired)
	return nil
}

// drainSource withdraws everything deployed in the liquidity source. Requires the lease.
func (s *Strategy) drainSource(ctx context.Context) (sdkmath.Int, error) {
	ext, done := s.guard.External(ctx)
	defer done()

	deployed, err := s.source.ManagedBalance(ext)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to read liquidity source balance: %w", err)
	}
	if !deployed.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	got, err := s.source.WithdrawCapital(ext, deployed)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to withdraw %s from liquidity source: %w", deployed, err)
	}
	return got, nil
}

func (s *Strategy) attached() bool {
	current := s.custodian.Strategy()
	return current != nil && current == s
}

// withdrawAllToCustodian requires the lease. The source withdrawal is the only fallible
// step; when it fails nothing has moved.
func (s *Strategy) withdrawAllToCustodian(ctx context.Context) error {
	got, err := s.drainSource(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.wantHeld = s.wantHeld.Add(got)
	held := s.wantHeld
	s.mu.Unlock()

	if !held.IsPositive() || !s.attached() {
		return nil
	}
	if err := s.custodian.Reclaim(ctx, s, held); err != nil {
		// funds stay held by the strategy and can be reclaimed by a later retire
		return errors.Join(fmt.Errorf("failed to return %s to vault", held), err)
	}
	s.mu.Lock()
	s.wantHeld = s.wantHeld.Sub(held)
	s.mu.Unlock()
	s.logger.Info().Str("amount", held.String()).Msg("Funds returned to vault")
	return nil
}
