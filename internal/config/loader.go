// loader.go implements the static configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in the safety window math.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Process envconfig struct tags to populate the Config struct.
//  4. Validate the struct using go-playground/validator.
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the envconfig prefix; empty keeps variable names flat
// (DEVICE_ID, not PUMPWATCH_DEVICE_ID) to match the fleet provisioning
// scripts.
const envPrefix = ""

// Load reads, populates, and validates the static process configuration.
func Load() (*Config, error) {
	// Step 1: all timestamps in the system are UTC.
	time.Local = time.UTC

	// Step 2: .env is a local-development convenience; it does not override
	// variables already present in the environment.
	_ = godotenv.Load()

	// Step 3: populate from the environment.
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	// Step 4: structural validation.
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
