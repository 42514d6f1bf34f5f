/*

This file contains the deployment description of one vault and its strategy, read from YAML.
Values can be overridden from the environment; anything left unset falls back to
DefaultStrategyParameters.

*/

package config

import (
	"fmt"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"gopkg.in/yaml.v3"

	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/utils"
)

// VaultDeployment describes the share vault.
type VaultDeployment struct {
	ID            string   `yaml:"id"`
	Want          string   `yaml:"want"`
	Decimals      int      `yaml:"decimals"`
	Name          string   `yaml:"name"`
	Symbol        string   `yaml:"symbol"`
	DepositFeeBps uint32   `yaml:"deposit_fee_bps"`
	TvlCap        string   `yaml:"tvl_cap"` // decimal want units; empty means uncapped
	Treasury      string   `yaml:"treasury"`
	Admins        []string `yaml:"admins"`
}

// StrategyDeployment describes the strategy and its fee recipients.
type StrategyDeployment struct {
	Treasury          string   `yaml:"treasury"`
	PaymentSplitter   string   `yaml:"payment_splitter"`
	Strategists       []string `yaml:"strategists"`
	TreasuryBps       *uint32  `yaml:"treasury_bps"`
	StrategistBps     *uint32  `yaml:"strategist_bps"`
	CallerBps         *uint32  `yaml:"caller_bps"`
	SecurityFeeBps    *uint32  `yaml:"security_fee_bps"`
	HarvestLogCadence int64    `yaml:"harvest_log_cadence"`
	LogCapacity       int      `yaml:"log_capacity"`
	RestrictHarvest   bool     `yaml:"restrict_harvest"`
}

// KeeperDeployment describes the harvest keeper.
type KeeperDeployment struct {
	Schedule string `yaml:"schedule"` // six-field cron spec, seconds first
	Account  string `yaml:"account"`
}

// FarmDeployment parameterizes the simulated liquidity source.
type FarmDeployment struct {
	RewardRateBps       uint32 `yaml:"reward_rate_bps"`
	ExchangeRate        string `yaml:"exchange_rate"`
	WithdrawSlippageBps uint32 `yaml:"withdraw_slippage_bps"`
}

// Deployment is the full deployment file.
type Deployment struct {
	Vault    VaultDeployment    `yaml:"vault"`
	Strategy StrategyDeployment `yaml:"strategy"`
	Keeper   KeeperDeployment   `yaml:"keeper"`
	Farm     FarmDeployment     `yaml:"farm"`
}

// LoadDeployment reads the deployment file, then applies environment variable overrides and defaults.
func LoadDeployment(path string) (*Deployment, error) {
	d := &Deployment{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment file: %w", err)
	}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parse deployment file: %w", err)
	}

	// Environment variable overrides
	if v := os.Getenv("VAULT_TVL_CAP"); v != "" {
		d.Vault.TvlCap = v
	}
	if v := os.Getenv("KEEPER_SCHEDULE"); v != "" {
		d.Keeper.Schedule = v
	}
	if v := os.Getenv("KEEPER_ACCOUNT"); v != "" {
		d.Keeper.Account = v
	}
	if os.Getenv("VAULT_DEPOSIT_FEE_BPS") != "" {
		bps, err := getEnvAsUint64("VAULT_DEPOSIT_FEE_BPS")
		if err != nil {
			return nil, err
		}
		d.Vault.DepositFeeBps = uint32(bps)
	}
	if os.Getenv("FARM_EXCHANGE_RATE") != "" {
		rate, err := getEnvAsFloat64("FARM_EXCHANGE_RATE")
		if err != nil {
			return nil, err
		}
		d.Farm.ExchangeRate = strconv.FormatFloat(rate, 'f', -1, 64)
	}

	d.applyDefaults()
	return d, nil
}

func (d *Deployment) applyDefaults() {
	defaults := DefaultStrategyParameters
	if d.Vault.Decimals == 0 {
		d.Vault.Decimals = 6
	}
	if d.Vault.ID == "" {
		d.Vault.ID = "vault-" + d.Vault.Want
	}
	if d.Strategy.Treasury == "" {
		d.Strategy.Treasury = d.Vault.Treasury
	}
	if d.Strategy.TreasuryBps == nil {
		d.Strategy.TreasuryBps = &defaults.Fees.TreasuryBps
	}
	if d.Strategy.StrategistBps == nil {
		d.Strategy.StrategistBps = &defaults.Fees.StrategistBps
	}
	if d.Strategy.CallerBps == nil {
		d.Strategy.CallerBps = &defaults.Fees.CallerBps
	}
	if d.Strategy.SecurityFeeBps == nil {
		d.Strategy.SecurityFeeBps = &defaults.SecurityFeeBps
	}
	if d.Strategy.HarvestLogCadence == 0 {
		d.Strategy.HarvestLogCadence = defaults.HarvestLogCadence
	}
	if d.Strategy.LogCapacity == 0 {
		d.Strategy.LogCapacity = defaults.LogCapacity
	}
	if d.Keeper.Schedule == "" {
		d.Keeper.Schedule = defaults.KeeperSchedule
	}
	if d.Farm.ExchangeRate == "" {
		d.Farm.ExchangeRate = "1"
	}
}

// Validate checks that all required fields are set and consistent.
func (d *Deployment) Validate() error {
	if err := sdk.ValidateDenom(d.Vault.Want); err != nil {
		return fmt.Errorf("vault.want: %w", err)
	}
	if d.Vault.Decimals < 0 || d.Vault.Decimals > 18 {
		return fmt.Errorf("vault.decimals must be between 0 and 18")
	}
	if d.Vault.DepositFeeBps >= fees.BasisPoints {
		return fmt.Errorf("vault.deposit_fee_bps must be below %d", fees.BasisPoints)
	}
	if _, _, err := d.TvlCapAmount(); err != nil {
		return fmt.Errorf("vault.tvl_cap: %w", err)
	}
	if d.Vault.Treasury == "" {
		return fmt.Errorf("vault.treasury is required")
	}
	if len(d.Vault.Admins) == 0 {
		return fmt.Errorf("vault.admins requires at least one account")
	}
	if d.Strategy.PaymentSplitter == "" {
		return fmt.Errorf("strategy.payment_splitter is required")
	}
	if len(d.Strategy.Strategists) == 0 {
		return fmt.Errorf("strategy.strategists requires at least one account")
	}
	if err := d.FeeConfig().Validate(); err != nil {
		return fmt.Errorf("strategy fees: %w", err)
	}
	if *d.Strategy.SecurityFeeBps > fees.MaxSecurityFeeBps {
		return fmt.Errorf("strategy.security_fee_bps must be at most %d", fees.MaxSecurityFeeBps)
	}
	if d.Strategy.HarvestLogCadence < 0 {
		return fmt.Errorf("strategy.harvest_log_cadence cannot be negative")
	}
	if d.Keeper.Account == "" {
		return fmt.Errorf("keeper.account is required")
	}
	if _, err := d.FarmConfig(); err != nil {
		return fmt.Errorf("farm: %w", err)
	}
	return nil
}

// TvlCapAmount returns the TVL cap in base units and whether one is set.
func (d *Deployment) TvlCapAmount() (sdkmath.Int, bool, error) {
	if d.Vault.TvlCap == "" {
		return sdkmath.Int{}, false, nil
	}
	amount, err := utils.ParseDecimalAmount(d.Vault.TvlCap, d.Vault.Decimals)
	if err != nil {
		return sdkmath.Int{}, false, err
	}
	return amount, true, nil
}

// FeeConfig returns the harvest fee split.
func (d *Deployment) FeeConfig() fees.FeeConfig {
	return fees.FeeConfig{
		TreasuryBps:   *d.Strategy.TreasuryBps,
		StrategistBps: *d.Strategy.StrategistBps,
		CallerBps:     *d.Strategy.CallerBps,
	}
}

// FarmConfig returns the simulated liquidity source parameters.
func (d *Deployment) FarmConfig() (liquidity.FarmConfig, error) {
	rate, err := sdkmath.LegacyNewDecFromStr(d.Farm.ExchangeRate)
	if err != nil {
		return liquidity.FarmConfig{}, fmt.Errorf("exchange_rate %q: %w", d.Farm.ExchangeRate, err)
	}
	if !rate.IsPositive() {
		return liquidity.FarmConfig{}, liquidity.ErrInvalidExchangeRate
	}
	return liquidity.FarmConfig{
		RewardRateBps:       d.Farm.RewardRateBps,
		ExchangeRate:        rate,
		WithdrawSlippageBps: d.Farm.WithdrawSlippageBps,
	}, nil
}

// FeeRecipients returns the strategy's fee recipients.
func (d *Deployment) FeeRecipients() types.FeeRecipients {
	strategists := make([]types.Account, 0, len(d.Strategy.Strategists))
	for _, s := range d.Strategy.Strategists {
		strategists = append(strategists, types.Account(s))
	}
	return types.FeeRecipients{
		Treasury:        types.Account(d.Strategy.Treasury),
		PaymentSplitter: types.Account(d.Strategy.PaymentSplitter),
		Strategists:     strategists,
	}
}

// AdminAccounts returns the vault admins.
func (d *Deployment) AdminAccounts() []types.Account {
	out := make([]types.Account, 0, len(d.Vault.Admins))
	for _, a := range d.Vault.Admins {
		out = append(out, types.Account(a))
	}
	return out
}
