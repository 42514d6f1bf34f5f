package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/keeper"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/metrics"
	"github.com/elys-network/autocompounder/internal/state"
	"github.com/elys-network/autocompounder/internal/strategy"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/vault"
)

const (
	admin      = types.Account("admin")
	keeperAcct = types.Account("keeper")
	alice      = types.Account("alice")
)

type stubCycles struct {
	result *keeper.CycleResult
}

func (s stubCycles) LastCycle() (keeper.CycleResult, bool) {
	if s.result == nil {
		return keeper.CycleResult{}, false
	}
	return *s.result, true
}

type stubHistory struct {
	summary *state.HarvestSummary
	err     error
}

func (s stubHistory) Summary(context.Context) (*state.HarvestSummary, error) {
	return s.summary, s.err
}

type fixture struct {
	ctx   context.Context
	clock *clock.Manual
	vault *vault.ShareVault
	strat *strategy.Strategy
	reg   *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		clock: clock.NewManual(1_700_000_000),
		reg:   metrics.New(6),
	}
	roles := access.NewSet(admin)
	ledger := fees.NewLedger()

	farm, err := liquidity.NewFarm(liquidity.FarmConfig{
		RewardRateBps: 2_000,
		ExchangeRate:  sdkmath.LegacyOneDec(),
	}, f.clock)
	require.NoError(t, err)

	f.vault, err = vault.New(vault.Config{
		ID:       "web-usdc",
		Want:     "uusdc",
		Name:     "USDC Crypt",
		Symbol:   "rfUSDC",
		Treasury: "treasury",
		Access:   roles,
		FeeSink:  ledger,
		Observer: f.reg,
	})
	require.NoError(t, err)

	f.strat, err = strategy.New(strategy.Config{
		Custodian: f.vault,
		Source:    farm,
		Access:    roles,
		FeeSink:   ledger,
		Clock:     f.clock,
		Recipients: types.FeeRecipients{
			Treasury:        "treasury",
			PaymentSplitter: "splitter",
			Strategists:     []types.Account{"strategist"},
		},
		Fees:              fees.FeeConfig{TreasuryBps: 304, StrategistBps: 101, CallerBps: 45},
		SecurityFeeBps:    10,
		HarvestLogCadence: 3600,
	})
	require.NoError(t, err)
	require.NoError(t, f.vault.Attach(f.ctx, admin, f.strat))
	return f
}

func (f *fixture) server(t *testing.T, mutate ...func(*Config)) *WebServer {
	t.Helper()
	cfg := Config{
		Vault:    f.vault,
		Strategy: f.strat,
		Clock:    f.clock,
		Metrics:  f.reg.Handler(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	ws, err := NewWebServer(cfg)
	require.NoError(t, err)
	return ws
}

func get(t *testing.T, ws *WebServer, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNewWebServerValidates(t *testing.T) {
	f := newFixture(t)
	_, err := NewWebServer(Config{Strategy: f.strat, Clock: f.clock})
	assert.Error(t, err)
	_, err = NewWebServer(Config{Vault: f.vault, Strategy: f.strat})
	assert.Error(t, err)

	ws, err := NewWebServer(Config{Vault: f.vault, Strategy: f.strat, Clock: f.clock})
	require.NoError(t, err)
	assert.Equal(t, "8080", ws.port)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	t.Run("ok without database", func(t *testing.T) {
		rec, body := get(t, f.server(t), "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("degraded when database is down", func(t *testing.T) {
		ws := f.server(t, func(c *Config) {
			c.DBCheck = func(context.Context) error { return errors.New("connection refused") }
		})
		rec, body := get(t, ws, "/api/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "DEGRADED", body["status"])
	})

	t.Run("degraded when last cycle failed", func(t *testing.T) {
		ws := f.server(t, func(c *Config) {
			c.Keeper = stubCycles{result: &keeper.CycleResult{CycleNumber: 4, StartedAt: time.Now(), Error: "harvest: boom"}}
		})
		rec, body := get(t, ws, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		status := body["keeper_status"].(map[string]interface{})
		cycle := status["cycle_info"].(map[string]interface{})
		assert.Equal(t, "failed", cycle["last_cycle_status"])
		assert.EqualValues(t, 4, cycle["current_cycle"])
	})
}

func TestVaultEndpoints(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, sdkmath.NewInt(1_000_000))
	require.NoError(t, err)
	ws := f.server(t)

	rec, body := get(t, ws, "/api/vault")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "web-usdc", body["vault_id"])
	assert.Equal(t, "rfUSDC", body["symbol"])
	snap := body["snapshot"].(map[string]interface{})
	assert.Equal(t, "1000000", snap["total_shares"])
	assert.Equal(t, true, snap["strategy_attached"])

	rec, body = get(t, ws, "/api/vault/balances/alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000000", body["shares"])
	assert.Equal(t, "1000000", body["value"])

	_, body = get(t, ws, "/api/vault/balances/nobody")
	assert.Equal(t, "0", body["shares"])
}

func TestStrategyAndHarvestEndpoints(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, sdkmath.NewInt(1_000_000_000))
	require.NoError(t, err)
	ws := f.server(t)

	_, body := get(t, ws, "/api/strategy")
	assert.Nil(t, body["apr_bps"], "no APR before the first harvest")
	assert.Equal(t, false, body["harvest_due"])
	strat := body["strategy"].(map[string]interface{})
	assert.Equal(t, "ACTIVE", strat["state"])

	for i := 0; i < 3; i++ {
		f.clock.Advance(3600)
		_, err := f.strat.Harvest(f.ctx, keeperAcct)
		require.NoError(t, err)
	}

	_, body = get(t, ws, "/api/strategy?window=2")
	assert.NotNil(t, body["apr_bps"])
	assert.EqualValues(t, 2, body["apr_window"])

	rec, body := get(t, ws, "/api/harvests?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	harvests := body["harvests"].([]interface{})
	last := harvests[1].(map[string]interface{})
	assert.EqualValues(t, f.clock.Now(), last["timestamp"])

	_, body = get(t, ws, "/api/harvests?limit=bogus")
	assert.EqualValues(t, 3, body["count"])
}

func TestHarvestSummaryEndpoint(t *testing.T) {
	f := newFixture(t)

	rec, _ := get(t, f.server(t), "/api/harvests/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = get(t, f.server(t, func(c *Config) { c.History = &state.NoopRecorder{} }), "/api/harvests/summary")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	summary := &state.HarvestSummary{VaultID: "web-usdc", TotalHarvests: 7, TotalProfit: sdkmath.NewInt(420)}
	rec, body := get(t, f.server(t, func(c *Config) { c.History = stubHistory{summary: summary} }), "/api/harvests/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, body["total_harvests"])
	assert.Equal(t, "420", body["total_profit"])

	rec, _ = get(t, f.server(t, func(c *Config) { c.History = stubHistory{err: errors.New("db down")} }), "/api/harvests/summary")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLastCycleEndpoint(t *testing.T) {
	f := newFixture(t)

	rec, _ := get(t, f.server(t), "/api/keeper/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = get(t, f.server(t, func(c *Config) { c.Keeper = stubCycles{} }), "/api/keeper/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	result := &keeper.CycleResult{CycleID: "abc", CycleNumber: 9, Harvested: true, APRBps: sdkmath.NewInt(1910)}
	rec, body := get(t, f.server(t, func(c *Config) { c.Keeper = stubCycles{result: result} }), "/api/keeper/last")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", body["cycle_id"])
	assert.Equal(t, "1910", body["apr_bps"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, err := f.vault.Deposit(f.ctx, alice, sdkmath.NewInt(2_000_000))
	require.NoError(t, err)

	rec, _ := get(t, f.server(t), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autocompounder_deposits_total")
}

func TestReadDuringCollaboratorCallIsRetryable(t *testing.T) {
	f := newFixture(t)
	ws := f.server(t)

	ctx, release, err := f.vault.Guard().Enter(f.ctx)
	require.NoError(t, err)
	_, done := f.vault.Guard().External(ctx)

	rec, body := get(t, ws, "/api/vault")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Failed to retrieve vault", body["message"])
	rec, _ = get(t, ws, "/api/strategy")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	done()
	release()
	rec, _ = get(t, ws, "/api/vault")
	assert.Equal(t, http.StatusOK, rec.Code)
}
