package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/config"
	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/liquidity/remote"
	"github.com/elys-network/autocompounder/internal/logger"
)

// main serves the simulated farm over gRPC so that a vault daemon in remote mode
// can be exercised end to end.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)

	deploymentFile := os.Getenv("DEPLOYMENT_FILE")
	if deploymentFile == "" {
		log.Fatal().Msg("DEPLOYMENT_FILE environment variable not set.")
	}
	deployment, err := config.LoadDeployment(deploymentFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load deployment file")
	}
	farmCfg, err := deployment.FarmConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid farm parameters")
	}
	farm, err := liquidity.NewFarm(farmCfg, clock.NewSystem())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulated farm")
	}

	addr := os.Getenv("LIQUIDITY_LISTEN")
	if addr == "" {
		addr = ":9090"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("Failed to listen")
	}

	srv := grpc.NewServer()
	remote.Register(srv, farm)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info().Msg("Stopping liquidity server...")
		srv.GracefulStop()
	}()

	log.Info().
		Str("addr", addr).
		Uint32("reward_rate_bps", farmCfg.RewardRateBps).
		Str("exchange_rate", farmCfg.ExchangeRate.String()).
		Msg("Serving simulated farm")
	if err := srv.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("Liquidity server failed")
	}
}
