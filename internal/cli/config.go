package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-formset/pkg/record/redisstore"
)

// Config is read from the environment after the optional .env file.
type Config struct {
	// ENV: FORMSET_DRIVER (memory, sqlite, postgres, redis)
	Driver string `env:"FORMSET_DRIVER,default=memory"`
	// ENV: FORMSET_DSN
	DSN string `env:"FORMSET_DSN"`
	// ENV: FORMSET_LOG_LEVEL
	LogLevel string `env:"FORMSET_LOG_LEVEL,default=warn"`
	// ENV: FORMSET_LOG_JSON
	LogJSON bool `env:"FORMSET_LOG_JSON,default=false"`

	Redis redisstore.EnvConfig
}

// loadConfig loads envFile into the process environment, keeping variables
// that are already set, then decodes Config. A missing envFile is ignored.
func loadConfig(envFile string) (Config, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("cli: load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("cli: decode environment: %w", err)
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = driverMemory
	}
	return cfg, nil
}
