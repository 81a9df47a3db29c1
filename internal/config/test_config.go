package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig(dir string) *Config {
	cfg := defaultConfig()
	cfg.Data.Dir = dir
	cfg.Graph.RequestTimeout = 2 * time.Second
	cfg.Graph.UserAgent = "pagepost-test/1"
	cfg.Account.RequestTimeout = 2 * time.Second
	return cfg
}
