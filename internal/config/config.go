package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
}

type WorkerConfig struct {
	DatabaseURL string
	TickEvery   time.Duration
	LockTimeout time.Duration
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL string
	AccountID  string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MINTAGE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TickEvery:   envDurationDefault("MINTAGE_TICK_EVERY", time.Hour),
		LockTimeout: envDurationDefault("MINTAGE_LOCK_TIMEOUT", 10*time.Minute),
		RunOnce:     envBoolDefault("MINTAGE_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TickEvery < time.Minute {
		return cfg, fmt.Errorf("MINTAGE_TICK_EVERY must be at least 1m, got %s", cfg.TickEvery)
	}
	if cfg.LockTimeout <= 0 {
		return cfg, fmt.Errorf("MINTAGE_LOCK_TIMEOUT must be positive, got %s", cfg.LockTimeout)
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("MINT_API_BASE_URL", "http://localhost:8080"), "/"),
		AccountID:  strings.TrimSpace(os.Getenv("MINT_ACCOUNT_ID")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
