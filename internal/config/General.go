package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Vault modes select where the strategy's liquidity source lives.
const (
	ModeSimulated = "simulated"
	ModeRemote    = "remote"
)

// AppConfig holds all runtime configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string

	// VaultMode is ModeSimulated (in-memory farm) or ModeRemote (gRPC liquidity adapter).
	VaultMode string

	// DeploymentFile is the path to the YAML file describing the vault and strategy.
	DeploymentFile string

	// StatusPort is the port of the read-only status API.
	StatusPort string

	// Database settings. An empty DBHost disables persistence.
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// DEPLOYMENT_FILE is required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	DeploymentFile, err = getEnv("DEPLOYMENT_FILE")
	if err != nil {
		return err
	}

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	StatusPort = getEnvOrDefault("STATUS_PORT", "8080")
	if _, err := strconv.ParseUint(StatusPort, 10, 16); err != nil {
		return errors.New("environment variable STATUS_PORT must be a valid port, got: " + StatusPort)
	}

	VaultMode = strings.ToLower(getEnvOrDefault("VAULT_MODE", ModeSimulated))
	if VaultMode != ModeSimulated && VaultMode != ModeRemote {
		return errors.New("environment variable VAULT_MODE must be " + ModeSimulated + " or " + ModeRemote + ", got: " + VaultMode)
	}

	DBHost = getEnvOrDefault("DB_HOST", "")
	DBPort = getEnvOrDefault("DB_PORT", "5432")
	DBUser = getEnvOrDefault("DB_USER", "postgres")
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBName = getEnvOrDefault("DB_NAME", "autocompounder")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultMode", VaultMode).
		Str("DeploymentFile", DeploymentFile).
		Str("StatusPort", StatusPort).
		Bool("Persistence", DBHost != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
