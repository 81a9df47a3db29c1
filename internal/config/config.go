package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// LogBackendJSON stores the publish log as a JSON array file.
	LogBackendJSON = "json"
	// LogBackendBolt stores the publish log in a bbolt database.
	LogBackendBolt = "bolt"
)

type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Account AccountConfig `mapstructure:"account"`
	Display DisplayConfig `mapstructure:"display"`
}

type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	LogBackend string `mapstructure:"log_backend"`
}

type GraphConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

type AccountConfig struct {
	ValidateURL    string        `mapstructure:"validate_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DisplayConfig struct {
	TimestampLayout string `mapstructure:"timestamp_layout"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Data: DataConfig{
			Dir:        filepath.Join(homeDir, ".pagepost"),
			LogBackend: LogBackendJSON,
		},
		Graph: GraphConfig{
			Endpoint:       "https://graph.facebook.com",
			RequestTimeout: 30 * time.Second,
			UserAgent:      "pagepost/1",
		},
		Account: AccountConfig{
			ValidateURL:    "https://accuvat.io/validate",
			RequestTimeout: 15 * time.Second,
		},
		Display: DisplayConfig{
			// en-US toLocaleString style
			TimestampLayout: "1/2/2006, 3:04:05 PM",
		},
	}
}

// DefaultPath is the config file location used when none is given.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "pagepost", "config.toml")
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("data.dir", cfg.Data.Dir)
	v.SetDefault("data.log_backend", cfg.Data.LogBackend)
	v.SetDefault("graph.endpoint", cfg.Graph.Endpoint)
	v.SetDefault("graph.request_timeout", cfg.Graph.RequestTimeout)
	v.SetDefault("graph.user_agent", cfg.Graph.UserAgent)
	v.SetDefault("account.validate_url", cfg.Account.ValidateURL)
	v.SetDefault("account.request_timeout", cfg.Account.RequestTimeout)
	v.SetDefault("display.timestamp_layout", cfg.Display.TimestampLayout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAGEPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.Data.Dir = expandPath(config.Data.Dir)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Data.LogBackend {
	case LogBackendJSON, LogBackendBolt:
	default:
		errs = append(errs, fmt.Errorf("data.log_backend: unsupported backend %q", c.Data.LogBackend))
	}
	if strings.TrimSpace(c.Graph.Endpoint) == "" {
		errs = append(errs, errors.New("graph.endpoint: must not be empty"))
	}
	if c.Graph.RequestTimeout <= 0 {
		errs = append(errs, errors.New("graph.request_timeout: must be positive"))
	}
	if c.Display.TimestampLayout == "" {
		errs = append(errs, errors.New("display.timestamp_layout: must not be empty"))
	}
	return errors.Join(errs...)
}

// expandPath expands ~ to the home directory and makes the path absolute
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

// fileConfig mirrors Config with durations as strings for TOML readability.
type fileConfig struct {
	Data struct {
		Dir        string `toml:"dir"`
		LogBackend string `toml:"log_backend"`
	} `toml:"data"`
	Graph struct {
		Endpoint       string `toml:"endpoint"`
		RequestTimeout string `toml:"request_timeout"`
		UserAgent      string `toml:"user_agent"`
	} `toml:"graph"`
	Account struct {
		ValidateURL    string `toml:"validate_url"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"account"`
	Display struct {
		TimestampLayout string `toml:"timestamp_layout"`
	} `toml:"display"`
}

func Save(config *Config, path string) error {
	var fc fileConfig
	fc.Data.Dir = config.Data.Dir
	fc.Data.LogBackend = config.Data.LogBackend
	fc.Graph.Endpoint = config.Graph.Endpoint
	fc.Graph.RequestTimeout = config.Graph.RequestTimeout.String()
	fc.Graph.UserAgent = config.Graph.UserAgent
	fc.Account.ValidateURL = config.Account.ValidateURL
	fc.Account.RequestTimeout = config.Account.RequestTimeout.String()
	fc.Display.TimestampLayout = config.Display.TimestampLayout

	data, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
