package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds relay configuration loaded from flags, env, or config file.
// Built once at startup and passed by reference; never mutated after Load.
type Config struct {
	SourceName      string
	SourceRPC       string
	DestName        string
	DestRPC         string
	ContractAddress string

	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	MaxBlockRange uint64
	MaxRetries    int
	RetryBackoff  time.Duration

	StoreBackend string
	StorePath    string
	PGDSN        string
	RelayName    string

	DeadLetterPath      string
	MaxDispatchAttempts int

	GasOracleURL string
	LogLevel     string
}

// Load merges config file, RELAY_* environment variables, and flags.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("source-name", "source")
	v.SetDefault("dest-name", "destination")
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("max-block-range", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("store-backend", "file")
	v.SetDefault("store", "./data/relay_state.json")
	v.SetDefault("relay-name", "relay")
	v.SetDefault("dead-letter", "./data/dead_letters.jsonl")
	v.SetDefault("max-dispatch-attempts", 0)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		SourceName:          v.GetString("source-name"),
		SourceRPC:           v.GetString("source-rpc"),
		DestName:            v.GetString("dest-name"),
		DestRPC:             v.GetString("dest-rpc"),
		ContractAddress:     v.GetString("contract"),
		StartBlock:          v.GetUint64("start-block"),
		Confirmations:       v.GetUint64("confirmations"),
		PollInterval:        v.GetDuration("poll-interval"),
		MaxBlockRange:       v.GetUint64("max-block-range"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		StoreBackend:        v.GetString("store-backend"),
		StorePath:           v.GetString("store"),
		PGDSN:               v.GetString("pg-dsn"),
		RelayName:           v.GetString("relay-name"),
		DeadLetterPath:      v.GetString("dead-letter"),
		MaxDispatchAttempts: v.GetInt("max-dispatch-attempts"),
		GasOracleURL:        v.GetString("gas-oracle-url"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}
