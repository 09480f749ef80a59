package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/pools"
)

// Pool listing sources.
const (
	PoolSourceDerived  = "derived"
	PoolSourcePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	ChainID          uint64
	LogLevel         string
	MetricsAddr      string
	PGDSN            string
	PoolSource       string
	V3CacheLifetime  string
	SimulationRPCURL string
	SimulationMethod string
	RiskCacheTTL     time.Duration
	RiskConcurrency  int
	MaxRetries       int
	RetryBackoff     time.Duration
	Out              string

	// Tokens maps symbols to addresses for command arguments.
	Tokens       map[string]string
	RoutingKnobs RoutingConfig
	Swap         SwapConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		ChainID:          v.GetUint64("chain-id"),
		LogLevel:         v.GetString("log-level"),
		MetricsAddr:      v.GetString("metrics-addr"),
		PGDSN:            v.GetString("pg-dsn"),
		PoolSource:       strings.ToLower(v.GetString("pool-source")),
		V3CacheLifetime:  strings.ToLower(v.GetString("v3-cache-lifetime")),
		SimulationRPCURL: v.GetString("simulation-rpc"),
		SimulationMethod: v.GetString("simulation-method"),
		RiskCacheTTL:     v.GetDuration("risk-cache-ttl"),
		RiskConcurrency:  v.GetInt("risk-concurrency"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		Out:              v.GetString("out"),
		Tokens:           getStringMap(v, "tokens"),
		RoutingKnobs:     LoadRouting(v),
		Swap:             loadSwap(v),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", chains.Mainnet)
	v.SetDefault("log-level", "info")
	v.SetDefault("pool-source", PoolSourceDerived)
	v.SetDefault("v3-cache-lifetime", "request")
	v.SetDefault("simulation-method", "tenderly_simulateBundle")
	v.SetDefault("risk-cache-ttl", 10*time.Minute)
	v.SetDefault("risk-concurrency", 8)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 100*time.Millisecond)
	setRoutingDefaults(v)
	setSwapDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func (c Config) validate() error {
	if _, err := chains.Get(c.ChainID); err != nil {
		return err
	}
	switch c.PoolSource {
	case PoolSourceDerived:
	case PoolSourcePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pool source %q requires pg-dsn", c.PoolSource)
		}
	default:
		return fmt.Errorf("unknown pool source %q", c.PoolSource)
	}
	if _, err := c.CacheLifetime(); err != nil {
		return err
	}
	return nil
}

// CacheLifetime returns the lifetime of cached concentrated-liquidity pools.
func (c Config) CacheLifetime() (pools.CacheLifetime, error) {
	switch c.V3CacheLifetime {
	case "", "request":
		return pools.RequestLifetime, nil
	case "process":
		return pools.ProcessLifetime, nil
	default:
		return 0, fmt.Errorf("unknown v3 cache lifetime %q", c.V3CacheLifetime)
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		if len(typed) == 1 {
			return splitAndClean(typed[0])
		}
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}
	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[strings.ToLower(k)] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
