package config

import (
	"os"
	"path/filepath"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/autocompounder/internal/types"
)

const sampleDeployment = `
vault:
  id: reaper-usdc
  want: uusdc
  decimals: 6
  name: USDC Crypt
  symbol: rfUSDC
  deposit_fee_bps: 0
  tvl_cap: "1_000_000"
  treasury: treasury
  admins: [admin]
strategy:
  payment_splitter: splitter
  strategists: [strategist-1, strategist-2]
  caller_bps: 50
  restrict_harvest: true
keeper:
  account: keeper
farm:
  reward_rate_bps: 1200
`

func writeDeployment(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDeploymentAppliesDefaults(t *testing.T) {
	d, err := LoadDeployment(writeDeployment(t, sampleDeployment))
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	assert.Equal(t, "reaper-usdc", d.Vault.ID)
	assert.Equal(t, "treasury", d.Strategy.Treasury)
	assert.Equal(t, uint32(50), d.FeeConfig().CallerBps)
	assert.Equal(t, DefaultStrategyParameters.Fees.TreasuryBps, d.FeeConfig().TreasuryBps)
	assert.Equal(t, uint32(10), *d.Strategy.SecurityFeeBps)
	assert.Equal(t, int64(3600), d.Strategy.HarvestLogCadence)
	assert.Equal(t, DefaultStrategyParameters.KeeperSchedule, d.Keeper.Schedule)
	assert.True(t, d.Strategy.RestrictHarvest)

	capacity, capped, err := d.TvlCapAmount()
	require.NoError(t, err)
	assert.True(t, capped)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1_000_000, 6), capacity)

	farm, err := d.FarmConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(1200), farm.RewardRateBps)
	assert.Equal(t, sdkmath.LegacyOneDec(), farm.ExchangeRate)

	assert.Equal(t, []types.Account{"strategist-1", "strategist-2"}, d.FeeRecipients().Strategists)
	assert.Equal(t, []types.Account{"admin"}, d.AdminAccounts())
}

func TestLoadDeploymentEnvOverrides(t *testing.T) {
	t.Setenv("KEEPER_SCHEDULE", "*/30 * * * * *")
	t.Setenv("VAULT_TVL_CAP", "")
	t.Setenv("VAULT_DEPOSIT_FEE_BPS", "25")
	t.Setenv("FARM_EXCHANGE_RATE", "0.5")

	d, err := LoadDeployment(writeDeployment(t, sampleDeployment))
	require.NoError(t, err)
	assert.Equal(t, "*/30 * * * * *", d.Keeper.Schedule)
	assert.Equal(t, uint32(25), d.Vault.DepositFeeBps)
	assert.Equal(t, "0.5", d.Farm.ExchangeRate)

	t.Setenv("VAULT_DEPOSIT_FEE_BPS", "lots")
	_, err = LoadDeployment(writeDeployment(t, sampleDeployment))
	assert.Error(t, err)
}

func TestDeploymentValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Deployment)
	}{
		{"bad denom", func(d *Deployment) { d.Vault.Want = "!" }},
		{"fee too high", func(d *Deployment) { d.Vault.DepositFeeBps = 10_000 }},
		{"bad cap", func(d *Deployment) { d.Vault.TvlCap = "ten" }},
		{"no admins", func(d *Deployment) { d.Vault.Admins = nil }},
		{"no strategists", func(d *Deployment) { d.Strategy.Strategists = nil }},
		{"security fee", func(d *Deployment) { v := uint32(11); d.Strategy.SecurityFeeBps = &v }},
		{"split over 100%", func(d *Deployment) { v := uint32(10_000); d.Strategy.TreasuryBps = &v }},
		{"no keeper", func(d *Deployment) { d.Keeper.Account = "" }},
		{"zero exchange rate", func(d *Deployment) { d.Farm.ExchangeRate = "0" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := LoadDeployment(writeDeployment(t, sampleDeployment))
			require.NoError(t, err)
			tc.mutate(d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestLoadDeploymentMissingFile(t *testing.T) {
	_, err := LoadDeployment(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DEPLOYMENT_FILE", "deployment.yaml")
	t.Setenv("VAULT_MODE", "remote")
	t.Setenv("LIQUIDITY_GRPC", "localhost:9090")
	t.Setenv("STATUS_PORT", "9000")

	require.NoError(t, LoadConfig())
	assert.Equal(t, ModeRemote, VaultMode)
	assert.Equal(t, "localhost:9090", LiquidityGRPC)
	assert.Equal(t, "9000", StatusPort)

	t.Setenv("VAULT_MODE", "paper")
	assert.Error(t, LoadConfig())

	t.Setenv("VAULT_MODE", "remote")
	t.Setenv("STATUS_PORT", "http")
	assert.Error(t, LoadConfig())
}
