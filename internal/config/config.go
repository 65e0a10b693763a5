package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// EnvPrefix prefixes every environment override, e.g. TELEPHONY_SERVER_SOCKET.
const EnvPrefix = "TELEPHONY_"

type Config struct {
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Registry    RegistryConfig    `yaml:"registry" envPrefix:"REGISTRY_"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Extensions  ExtensionsConfig  `yaml:"extensions" envPrefix:"EXT_"`
	Mock        MockConfig        `yaml:"mock" envPrefix:"MOCK_"`
	Log         LogConfig         `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Socket         string        `yaml:"socket" env:"SOCKET"`
	MaxConnections int           `yaml:"max_connections" env:"MAX_CONNECTIONS"`
	SendBuffer     int           `yaml:"send_buffer" env:"SEND_BUFFER"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PingInterval   time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
}

type RegistryConfig struct {
	SlotCount   int  `yaml:"slot_count" env:"SLOT_COUNT"`
	VirtualSlot bool `yaml:"virtual_slot" env:"VIRTUAL_SLOT"`
	OutboxSize  int  `yaml:"outbox_size" env:"OUTBOX_SIZE"`
}

// SlotRange returns the slots exposed by the device.
func (r RegistryConfig) SlotRange() telephony.SlotRange {
	return telephony.SlotRange{Count: r.SlotCount, Virtual: r.VirtualSlot}
}

// PermissionsConfig grants permissions to callers. Each entry is a numeric
// uid, a bundle name, or "*" for every caller.
type PermissionsConfig struct {
	Grants map[telephony.Permission][]string `yaml:"grants"`
	System []string                          `yaml:"system"`
}

type ExtensionsConfig struct {
	// OperatorNames overrides the operator display name by PLMN.
	OperatorNames map[string]string `yaml:"operator_names" env:"OPERATOR_NAMES"`
	// MaxSignalLevel clamps reported signal bars. Zero disables the clamp.
	MaxSignalLevel int `yaml:"max_signal_level" env:"MAX_SIGNAL_LEVEL"`
}

type MockConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Socket:         "/tmp/telephony-state-registry.sock",
			MaxConnections: 128,
			SendBuffer:     64,
			WriteTimeout:   5 * time.Second,
			PingInterval:   30 * time.Second,
		},
		Registry: RegistryConfig{
			SlotCount:  2,
			OutboxSize: 64,
		},
		Permissions: PermissionsConfig{
			Grants: map[telephony.Permission][]string{},
			System: []string{"0"},
		},
		Extensions: ExtensionsConfig{
			OperatorNames: map[string]string{},
		},
		Mock: MockConfig{
			Interval: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv loads dotenv (when it exists) into the process environment and
// then applies TELEPHONY_* overrides on top of c. Variables already set in
// the environment win over the dotenv file.
func (c *Config) ApplyEnv(dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Socket == "" {
		errs = append(errs, errors.New("server.socket must be set"))
	}
	if c.Server.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections))
	}
	if c.Server.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer))
	}
	if c.Registry.SlotCount < 1 {
		errs = append(errs, fmt.Errorf("registry.slot_count must be at least 1, got %d", c.Registry.SlotCount))
	}
	if c.Registry.OutboxSize < 1 {
		errs = append(errs, fmt.Errorf("registry.outbox_size must be at least 1, got %d", c.Registry.OutboxSize))
	}
	for perm := range c.Permissions.Grants {
		if !perm.Known() {
			errs = append(errs, fmt.Errorf("permissions.grants: unknown permission %q", perm))
		}
	}
	if c.Extensions.MaxSignalLevel < 0 {
		errs = append(errs, fmt.Errorf("extensions.max_signal_level must not be negative, got %d", c.Extensions.MaxSignalLevel))
	}
	if c.Mock.Enabled && c.Mock.Interval <= 0 {
		errs = append(errs, errors.New("mock.interval must be positive when mock is enabled"))
	}
	return errors.Join(errs...)
}
