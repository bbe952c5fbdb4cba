// Package config loads the explicit configuration struct passed to every
// component at construction. No business logic reads the environment
// directly; behavior stays reproducible in tests.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full agent configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Agent   AgentConfig   `mapstructure:"agent"`
	X402    X402Config    `mapstructure:"x402"`
	Chains  ChainsConfig  `mapstructure:"chains"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Demo swaps real chain clients for deterministic simulation
	// clients at construction time.
	Demo bool `mapstructure:"demo"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type AgentConfig struct {
	// AutoExecute gates the monitor loop; when false, readiness and
	// decision operations remain available for manual invocation.
	AutoExecute     bool          `mapstructure:"auto_execute"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
}

type X402Config struct {
	// Domain is used to build verification URLs in 402 bodies.
	Domain string `mapstructure:"domain"`
	// PaymentTimeoutSeconds sets the advisory expiry of generated
	// payment instructions.
	PaymentTimeoutSeconds int `mapstructure:"payment_timeout_seconds"`
}

// Timeout returns the challenge expiry as a duration.
func (c X402Config) Timeout() time.Duration {
	return time.Duration(c.PaymentTimeoutSeconds) * time.Second
}

type ChainsConfig struct {
	Solana SolanaChainConfig `mapstructure:"solana"`
	Base   BaseChainConfig   `mapstructure:"base"`
}

type SolanaChainConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"`
	USDCMint   string `mapstructure:"usdc_mint"`
}

type BaseChainConfig struct {
	RPCURL      string `mapstructure:"rpc_url"`
	PrivateKey  string `mapstructure:"private_key"`
	USDCAddress string `mapstructure:"usdc_address"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from the given YAML file (optional) with
// CROWDMIND_* environment overrides and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.port", 8080)
	v.SetDefault("store.path", "./data/crowdmind.db")
	v.SetDefault("agent.auto_execute", false)
	v.SetDefault("agent.monitor_interval", "60s")
	v.SetDefault("x402.domain", "http://localhost:8080")
	v.SetDefault("x402.payment_timeout_seconds", 600)
	v.SetDefault("chains.solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("chains.solana.usdc_mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	v.SetDefault("chains.base.rpc_url", "https://mainnet.base.org")
	v.SetDefault("chains.base.usdc_address", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("demo", false)

	v.SetEnvPrefix("CROWDMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
