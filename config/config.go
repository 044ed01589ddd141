// Package config loads the bridge service configuration with viper. Defaults
// are registered in code so a missing key in config.yaml never yields a zero
// value, and every key can be overridden from the environment with the
// BRIDGE_ prefix (BRIDGE_SERVER_PORT, BRIDGE_BRIDGE_MIN_STAKE, ...).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is where the service looks for its config file.
const DefaultPath = "config/config.yaml"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LevelDB LevelDBConfig `mapstructure:"leveldb"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Channel ChannelConfig `mapstructure:"channel"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type BridgeConfig struct {
	// ForeignChain names the counterpart ledger; it suffixes the ctxTo/ctxFrom/recordFrom prefixes.
	ForeignChain  string `mapstructure:"foreign_chain"`
	EscrowAccount string `mapstructure:"escrow_account"`
	MinStake      uint64 `mapstructure:"min_stake"`
}

type ChannelConfig struct {
	// LocalParticipant is 1 or 2: which channel participant holds its account on this ledger.
	LocalParticipant int `mapstructure:"local_participant"`
	MirrorRetries    int `mapstructure:"mirror_retries"`
	RetryDelayMs     int `mapstructure:"retry_delay_ms"`
}

// RetryDelay is the pause between two reads of a foreign mirror.
func (c ChannelConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// LocalIndex is the zero-based participant index used for balances and signatures.
func (c ChannelConfig) LocalIndex() int {
	return c.LocalParticipant - 1
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.app_log_file", "logs/app.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/ledger")
	v.SetDefault("bridge.foreign_chain", "ETH")
	v.SetDefault("bridge.escrow_account", "depositaddr")
	v.SetDefault("bridge.min_stake", 10)
	v.SetDefault("channel.local_participant", 2)
	v.SetDefault("channel.mirror_retries", 10)
	v.SetDefault("channel.retry_delay_ms", 10)
}

// Load reads the file at path. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BRIDGE")
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
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the state machines cannot run with.
func (c *Config) Validate() error {
	if c.Channel.LocalParticipant != 1 && c.Channel.LocalParticipant != 2 {
		return fmt.Errorf("channel.local_participant must be 1 or 2, got %d", c.Channel.LocalParticipant)
	}
	if c.Channel.MirrorRetries <= 0 {
		return fmt.Errorf("channel.mirror_retries must be positive, got %d", c.Channel.MirrorRetries)
	}
	if c.Channel.RetryDelayMs < 0 {
		return fmt.Errorf("channel.retry_delay_ms must not be negative, got %d", c.Channel.RetryDelayMs)
	}
	if c.Bridge.ForeignChain == "" {
		return fmt.Errorf("bridge.foreign_chain must be set")
	}
	if c.Bridge.EscrowAccount == "" {
		return fmt.Errorf("bridge.escrow_account must be set")
	}
	if c.Bridge.MinStake == 0 {
		return fmt.Errorf("bridge.min_stake must be positive")
	}
	return nil
}
