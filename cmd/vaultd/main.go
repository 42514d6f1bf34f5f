package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/elys-network/autocompounder/internal/access"
	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/config"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/keeper"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/liquidity/remote"
	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/metrics"
	"github.com/elys-network/autocompounder/internal/state"
	"github.com/elys-network/autocompounder/internal/strategy"
	"github.com/elys-network/autocompounder/internal/types"
	"github.com/elys-network/autocompounder/internal/vault"
	"github.com/elys-network/autocompounder/internal/web"
)

// main is the entry point of the vault daemon: it builds the vault and its strategy,
// then runs the harvest keeper and the status API until SIGINT or SIGTERM.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(config.LogLevel)
	log.Info().Str("mode", config.VaultMode).Msg("Vault daemon starting...")

	deployment, err := config.LoadDeployment(config.DeploymentFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load deployment file")
	}
	if err := deployment.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid deployment file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()

	// --- 2. Liquidity Source (with Safety Switch) ---
	var (
		source liquidity.Source
		seed   state.SeedFunc
	)
	switch config.VaultMode {
	case config.ModeRemote:
		client, err := remote.Dial(config.LiquidityGRPC, transportCredentials(config.LiquidityGRPC)...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create liquidity client")
		}
		defer client.Close()
		source = client
	default:
		log.Warn().Msg("Running against the simulated farm. No real funds are moved.")
		farmCfg, err := deployment.FarmConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid farm parameters")
		}
		farm, err := liquidity.NewFarm(farmCfg, clk)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create simulated farm")
		}
		source = farm
		seed = func(ctx context.Context, managed sdkmath.Int) error {
			return farm.DeployCapital(ctx, managed)
		}
	}

	// --- 3. Vault and Strategy ---
	admins := deployment.AdminAccounts()
	roles := access.NewSet(admins...)
	keeperAccount := types.Account(deployment.Keeper.Account)
	roles.Grant(access.RoleKeeper, keeperAccount)

	ledger := fees.NewLedger()
	registry := metrics.New(deployment.Vault.Decimals)

	capacity, _, err := deployment.TvlCapAmount()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TVL cap")
	}

	shareVault, err := vault.New(vault.Config{
		ID:            deployment.Vault.ID,
		Want:          deployment.Vault.Want,
		Name:          deployment.Vault.Name,
		Symbol:        deployment.Vault.Symbol,
		DepositFeeBps: deployment.Vault.DepositFeeBps,
		Capacity:      capacity,
		Treasury:      types.Account(deployment.Vault.Treasury),
		Access:        roles,
		FeeSink:       ledger,
		Observer:      registry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault")
	}

	strat, err := strategy.New(strategy.Config{
		Custodian:         shareVault,
		Source:            source,
		Access:            roles,
		FeeSink:           ledger,
		Clock:             clk,
		Recipients:        deployment.FeeRecipients(),
		Fees:              deployment.FeeConfig(),
		SecurityFeeBps:    *deployment.Strategy.SecurityFeeBps,
		HarvestLogCadence: deployment.Strategy.HarvestLogCadence,
		LogCapacity:       deployment.Strategy.LogCapacity,
		RestrictHarvest:   deployment.Strategy.RestrictHarvest,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy")
	}

	// --- 4. Persistence (optional) ---
	var (
		recorder state.Recorder = &state.NoopRecorder{}
		dbCheck  func(context.Context) error
	)
	if config.DBHost != "" {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: mustAtoi(config.DBPort, 5432),
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		pg, err := state.NewPostgresRecorder(shareVault.ID())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create recorder")
		}
		recorder, dbCheck = pg, state.TestDBConnection

		restored, err := state.RestoreLatest(ctx, shareVault.ID(), shareVault, strat, deployment.Strategy.LogCapacity, seed)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to restore vault state")
		}
		if !restored {
			log.Info().Msg("No stored vault state found. Starting empty.")
		}
	} else {
		log.Warn().Msg("DB_HOST not set. Vault state will not survive a restart.")
	}

	if err := shareVault.Attach(ctx, admins[0], strat); err != nil {
		log.Fatal().Err(err).Msg("Failed to attach strategy")
	}

	// --- 5. Keeper and Status API ---
	k, err := keeper.New(keeper.Config{
		Vault:    shareVault,
		Strategy: strat,
		Recorder: recorder,
		Metrics:  registry,
		Clock:    clk,
		Account:  keeperAccount,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	webServer, err := web.NewWebServer(web.Config{
		Port:     config.StatusPort,
		Vault:    shareVault,
		Strategy: strat,
		Clock:    clk,
		Keeper:   k,
		History:  recorder,
		Metrics:  registry.Handler(),
		DBCheck:  dbCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return k.RunLoop(gctx, deployment.Keeper.Schedule)
	})
	g.Go(func() error {
		log.Info().Str("port", config.StatusPort).Str("url", "http://localhost:"+config.StatusPort).Msg("Starting status API")
		return webServer.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Vault daemon stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Vault daemon stopped")
}

// transportCredentials selects TLS for endpoints on port 443.
func transportCredentials(endpoint string) []grpc.DialOption {
	if strings.HasSuffix(endpoint, ":443") {
		return []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))}
	}
	return nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
