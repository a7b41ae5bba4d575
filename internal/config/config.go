// Package config loads process configuration from configs/config.yaml with
// environment substitution for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Solana   SolanaConfig
	Venues   VenuesConfig
	Executor ExecutorConfig
	Monitor  MonitorConfig
	Storage  StorageConfig
	Runtime  RuntimeConfig
}

type SolanaConfig struct {
	RPCURL       string
	WSURL        string
	SignerSecret string // base58 64-byte keypair, usually ${SIGNER_SECRET_KEY}
}

type VenuesConfig struct {
	JupiterURL      string
	GMGNURL         string
	FallbackEnabled bool
}

type ExecutorConfig struct {
	SlippageBps   int
	MaxTradeSOL   float64
	QuoteTimeout  time.Duration
	SubmitTimeout time.Duration
}

type MonitorConfig struct {
	Interval       time.Duration
	MaxConcurrency int
	PriceURL       string
	RedisAddr      string
}

type StorageConfig struct {
	Backend       string // "memory" or "postgres"
	PostgresDSN   string
	ClickhouseDSN string
}

type RuntimeConfig struct {
	LogLevel   string
	ListenAddr string
}

func Load() (*Config, error) {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		// Running on defaults without a config file is fine; a present
		// but broken file is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults()

	cfg := &Config{}

	cfg.Solana = SolanaConfig{
		RPCURL:       viper.GetString("solana.rpc_url"),
		WSURL:        viper.GetString("solana.ws_url"),
		SignerSecret: envSub("solana.signer_secret"),
	}

	cfg.Venues = VenuesConfig{
		JupiterURL:      viper.GetString("venues.jupiter_url"),
		GMGNURL:         viper.GetString("venues.gmgn_url"),
		FallbackEnabled: viper.GetBool("venues.fallback_enabled"),
	}

	cfg.Executor = ExecutorConfig{
		SlippageBps:   viper.GetInt("executor.slippage_bps"),
		MaxTradeSOL:   viper.GetFloat64("executor.max_trade_sol"),
		QuoteTimeout:  viper.GetDuration("executor.quote_timeout"),
		SubmitTimeout: viper.GetDuration("executor.submit_timeout"),
	}

	cfg.Monitor = MonitorConfig{
		Interval:       viper.GetDuration("monitor.interval"),
		MaxConcurrency: viper.GetInt("monitor.max_concurrency"),
		PriceURL:       viper.GetString("monitor.price_url"),
		RedisAddr:      viper.GetString("monitor.redis_addr"),
	}

	cfg.Storage = StorageConfig{
		Backend:       viper.GetString("storage.backend"),
		PostgresDSN:   envSub("storage.postgres_dsn"),
		ClickhouseDSN: envSub("storage.clickhouse_dsn"),
	}

	cfg.Runtime = RuntimeConfig{
		LogLevel:   viper.GetString("runtime.log_level"),
		ListenAddr: viper.GetString("runtime.listen_addr"),
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("venues.fallback_enabled", true)
	viper.SetDefault("executor.slippage_bps", 100)
	viper.SetDefault("executor.max_trade_sol", 10.0)
	viper.SetDefault("executor.quote_timeout", 5*time.Second)
	viper.SetDefault("executor.submit_timeout", 60*time.Second)
	viper.SetDefault("monitor.interval", 5*time.Second)
	viper.SetDefault("monitor.max_concurrency", 8)
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("runtime.log_level", "info")
	viper.SetDefault("runtime.listen_addr", ":8080")
}

var envRe = regexp.MustCompile(`\$\{(\w+)\}`)

func envSub(key string) string {
	val := viper.GetString(key)
	if val == "" {
		return ""
	}
	return envRe.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
