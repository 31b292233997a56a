package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig holds the connection form defaults of the watch client.
// Empty strings are normalized by the client package.
type ClientConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Subscription string        `yaml:"subscription"`
	Event        string        `yaml:"event"`
	InfoTimeout  time.Duration `yaml:"info_timeout"`
	MaxEntries   int           `yaml:"max_entries"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Root         string        `yaml:"root"`
	Recursive    bool          `yaml:"recursive"`
	SendBuffer   int           `yaml:"send_buffer"`
	Mock         bool          `yaml:"mock"`
	MockInterval time.Duration `yaml:"mock_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Host:         "localhost",
			Port:         "7777",
			Subscription: ".*",
			Event:        ".*",
			InfoTimeout:  10 * time.Second,
			MaxEntries:   500,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         7777,
			Root:         ".",
			Recursive:    true,
			SendBuffer:   64,
			MockInterval: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file over the defaults. Fields missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.fill()
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

// fill restores defaults for numeric fields explicitly zeroed in the file.
func (c *Config) fill() {
	def := defaultConfig()
	if c.Client.InfoTimeout <= 0 {
		c.Client.InfoTimeout = def.Client.InfoTimeout
	}
	if c.Client.MaxEntries <= 0 {
		c.Client.MaxEntries = def.Client.MaxEntries
	}
	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.SendBuffer <= 0 {
		c.Server.SendBuffer = def.Server.SendBuffer
	}
	if c.Server.MockInterval <= 0 {
		c.Server.MockInterval = def.Server.MockInterval
	}
	if c.Server.Root == "" {
		c.Server.Root = def.Server.Root
	}
}
