// Package config loads the on-device engine configuration from a YAML
// file, falling back to safe defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file or individual keys are missing.
const (
	DefaultDataDir          = "dtguard-data"
	DefaultHTTPAddr         = "127.0.0.1:8745"
	DefaultFeedMaxRows      = 500
	DefaultRootCacheTTL     = 5 * time.Minute
	DefaultPhishingCacheTTL = 10 * time.Minute
	DefaultPhishingCacheLen = 256
	DefaultWatchInterval    = 15 * time.Minute
	DefaultUrgentLimit      = 3
)

// Config is the full runtime configuration of the engine.
type Config struct {
	DataDir          string        `yaml:"data_dir"`
	HTTPAddr         string        `yaml:"http_addr"`
	FeedMaxRows      int           `yaml:"feed_max_rows"`
	RootCacheTTL     time.Duration `yaml:"root_cache_ttl"`
	PhishingCacheTTL time.Duration `yaml:"phishing_cache_ttl"`
	PhishingCacheLen int           `yaml:"phishing_cache_len"`
	WatchInterval    time.Duration `yaml:"watch_interval"`
	UrgentLimit      int           `yaml:"urgent_limit"`
	TrustedDomains   []string      `yaml:"trusted_domains"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir,
		HTTPAddr:         DefaultHTTPAddr,
		FeedMaxRows:      DefaultFeedMaxRows,
		RootCacheTTL:     DefaultRootCacheTTL,
		PhishingCacheTTL: DefaultPhishingCacheTTL,
		PhishingCacheLen: DefaultPhishingCacheLen,
		WatchInterval:    DefaultWatchInterval,
		UrgentLimit:      DefaultUrgentLimit,
	}
}

// Load reads the configuration at path. A missing file yields the
// defaults; a present but malformed file is an error. Keys left unset in
// the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// normalized clamps nonsensical values back to their defaults.
func (c Config) normalized() Config {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.FeedMaxRows <= 0 {
		c.FeedMaxRows = DefaultFeedMaxRows
	}
	if c.RootCacheTTL <= 0 {
		c.RootCacheTTL = DefaultRootCacheTTL
	}
	if c.PhishingCacheTTL <= 0 {
		c.PhishingCacheTTL = DefaultPhishingCacheTTL
	}
	if c.PhishingCacheLen <= 0 {
		c.PhishingCacheLen = DefaultPhishingCacheLen
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = DefaultWatchInterval
	}
	if c.UrgentLimit <= 0 {
		c.UrgentLimit = DefaultUrgentLimit
	}
	return c
}
