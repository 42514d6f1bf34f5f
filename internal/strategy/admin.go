package strategy

import (
	"context"
	"fmt"
	"slices"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/types"
)

// UpdateFees replaces the harvest fee split. The total is capped at MaxTotalFeeBps.
func (s *Strategy) UpdateFees(ctx context.Context, caller types.Account, cfg fees.FeeConfig) error {
	if err := s.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if err := validateFees(cfg); err != nil {
		return err
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	s.fees = cfg
	s.mu.Unlock()
	s.logger.Info().
		Uint32("treasury_bps", cfg.TreasuryBps).
		Uint32("strategist_bps", cfg.StrategistBps).
		Uint32("caller_bps", cfg.CallerBps).
		Msg("Harvest fees updated")
	return nil
}

// UpdateSecurityFee sets the withdrawal fee, at most fees.MaxSecurityFeeBps.
func (s *Strategy) UpdateSecurityFee(ctx context.Context, caller types.Account, bps uint32) error {
	if err := s.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if bps > fees.MaxSecurityFeeBps {
		return fmt.Errorf("security fee %d bps above %d: %w", bps, fees.MaxSecurityFeeBps, types.ErrInvalidFeeConfig)
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	s.securityFeeBps = bps
	s.mu.Unlock()
	s.logger.Info().Uint32("security_fee_bps", bps).Msg("Security fee updated")
	return nil
}

// AddStrategist adds account to the strategist set. Adding a member again is a no-op.
func (s *Strategy) AddStrategist(ctx context.Context, caller, account types.Account) error {
	if err := s.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if account.IsZero() {
		return fmt.Errorf("strategist cannot be empty: %w", types.ErrInvalidFeeConfig)
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.recipients.Strategists, account) {
		return nil
	}
	s.recipients.Strategists = append(s.recipients.Strategists, account)
	s.access.Grant(access.RoleStrategist, account)
	s.logger.Info().Str("strategist", account.String()).Msg("Strategist added")
	return nil
}

// RemoveStrategist removes account from the strategist set. The set cannot become empty
// while the strategy is active.
func (s *Strategy) RemoveStrategist(ctx context.Context, caller, account types.Account) error {
	if err := s.access.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	_, release, err := s.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.recipients.Strategists, account)
	if idx < 0 {
		return nil
	}
	if len(s.recipients.Strategists) == 1 && s.state == types.StateActive {
		return fmt.Errorf("cannot remove the last strategist of an active strategy: %w", types.ErrInvalidFeeConfig)
	}
	s.recipients.Strategists = slices.Delete(s.recipients.Strategists, idx, idx+1)
	s.access.Revoke(access.RoleStrategist, account)
	s.logger.Info().Str("strategist", account.String()).Msg("Strategist removed")
	return nil
}
