// Package config loads the enumerated platform settings from spec §6,
// following infrastructure/config's env-first, typed-helper style.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting spec §6 enumerates.
type Config struct {
	AllowSimFallback       bool                `yaml:"allowSimFallback"`
	DatabentoAPIKey        string              `yaml:"-"` // secrets never come from a checked-in file
	FixEnabled             bool                `yaml:"fixEnabled"`
	FleetRiskInterval      time.Duration       `yaml:"fleetRiskInterval"`
	MaxContractsByStage    map[string]int      `yaml:"maxContractsByStage"`
	FallbackAlertThreshold float64             `yaml:"fallbackAlertThreshold"`
	VarianceAlertThreshold float64             `yaml:"varianceAlertThreshold"`
	RedisAddr              string              `yaml:"redisAddr"`
}

// Load reads Config from the process environment, applying the documented
// defaults for anything unset. A .env file in the working directory is
// loaded first if present; it is optional, so a missing file is silent and
// only a malformed one is warned about.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("config: could not load .env: %v\n", err)
	}

	return Config{
		AllowSimFallback:       EnvBool("ALLOW_SIM_FALLBACK", false),
		DatabentoAPIKey:        os.Getenv("DATABENTO_API_KEY"),
		FixEnabled:             EnvBool("FIX_ENABLED", false),
		FleetRiskInterval:      time.Duration(EnvInt("FLEET_RISK_INTERVAL_MS", 60000)) * time.Millisecond,
		MaxContractsByStage:    loadMaxContracts(),
		FallbackAlertThreshold: EnvFloat("FALLBACK_ALERT_THRESHOLD", 0.05),
		VarianceAlertThreshold: EnvFloat("VARIANCE_ALERT_THRESHOLD", 0.001),
		RedisAddr:              EnvOrDefault("REDIS_ADDR", "localhost:6379"),
	}
}

// LoadFile starts from Load's env-derived Config and overlays a YAML file's
// values on top, for operators who prefer a checked-in override file over
// exporting every variable. A missing file is not an error; a malformed one
// is. Secrets (DatabentoAPIKey) are never read from the file.
func LoadFile(path string) (Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func loadMaxContracts() map[string]int {
	stages := []string{"TRIALS", "PAPER", "SHADOW", "CANARY", "LIVE"}
	out := make(map[string]int, len(stages))
	defaults := map[string]int{"TRIALS": 1, "PAPER": 2, "SHADOW": 3, "CANARY": 5, "LIVE": 10}
	for _, stage := range stages {
		out[stage] = EnvInt("MAX_CONTRACTS_"+stage, defaults[stage])
	}
	return out
}

// HasRealDataProvider reports whether a real market-data credential is
// configured, gating the "real provider preferred" branch of spec §4.2 step 3.
func (c Config) HasRealDataProvider() bool {
	return strings.TrimSpace(c.DatabentoAPIKey) != ""
}

// EnvOrDefault returns the trimmed environment variable or def if unset/blank.
func EnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvBool parses a boolean env var, defaulting to def on absence or parse error.
func EnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt parses an integer env var, defaulting to def on absence or parse error.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvFloat parses a float env var, defaulting to def on absence or parse error.
func EnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
