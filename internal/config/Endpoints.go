package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LiquidityGRPC is the gRPC endpoint of the remote liquidity adapter. Required in remote mode.
	LiquidityGRPC string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	if VaultMode != ModeRemote {
		LiquidityGRPC = getEnvOrDefault("LIQUIDITY_GRPC", "")
		return nil
	}

	var err error
	LiquidityGRPC, err = getEnv("LIQUIDITY_GRPC")
	if err != nil {
		return err
	}

	log.Debug().
		Str("LiquidityGRPC", LiquidityGRPC).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
