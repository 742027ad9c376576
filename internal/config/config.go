// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the claudecoder YAML configuration. Absent keys keep
// their defaults and out of range values are clamped by Sanitize.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/traylinx/claudecoder/internal/assembler"
	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/cache"
	"github.com/traylinx/claudecoder/internal/fallback"
	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/optimizer"
	"github.com/traylinx/claudecoder/internal/provider"
	"github.com/traylinx/claudecoder/internal/tokenizer"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "claudecoder.yaml"

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Provider is "auto", "aws" or "openrouter".
	Provider string `yaml:"provider"`
	// Models is the comma separated, prioritized model list.
	Models string `yaml:"models"`

	MaxTokens      int           `yaml:"max-tokens"`
	MaxRequests    int           `yaml:"max-requests"`
	RequestTimeout time.Duration `yaml:"request-timeout"`
	// RequestRetry is the number of retries of a failed provider call.
	RequestRetry int    `yaml:"request-retry"`
	AWSRegion    string `yaml:"aws-region"`
	// OpenRouterBaseURL overrides the OpenRouter endpoint.
	OpenRouterBaseURL string `yaml:"openrouter-base-url"`

	Fallback     FallbackConfig     `yaml:"fallback"`
	Tokenization TokenizationConfig `yaml:"tokenization"`
	Cache        CacheConfig        `yaml:"cache"`
	Logging      LoggingConfig      `yaml:"logging"`
	Audit        AuditConfig        `yaml:"audit"`
}

// FallbackConfig tunes model rotation.
type FallbackConfig struct {
	RetryInterval     int           `yaml:"retry-interval"`
	RateLimitCooldown time.Duration `yaml:"rate-limit-cooldown"`
	MaxRetries        int           `yaml:"max-retries"`
}

// TokenizationConfig tunes repository optimization.
type TokenizationConfig struct {
	Enabled bool `yaml:"enabled"`
	// Estimator is "simple" or "tiktoken".
	Estimator        string  `yaml:"estimator"`
	ListingLimit     int     `yaml:"listing-limit"`
	SummaryThreshold int     `yaml:"summary-threshold"`
	SummaryRatio     float64 `yaml:"summary-ratio"`
	BatchSize        int     `yaml:"batch-size"`
}

// CacheConfig selects the summary cache.
type CacheConfig struct {
	// Backend is "none", "memory", "file" or "sqlite".
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig controls log level and destination.
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`
	ToFile bool   `yaml:"to-file"`
	Dir    string `yaml:"dir"`
}

// AuditConfig controls the JSON lines audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider:       "auto",
		Models:         models.DefaultModel,
		MaxTokens:      provider.DefaultMaxTokens,
		MaxRequests:    assembler.DefaultMaxRequests,
		RequestTimeout: provider.DefaultRequestTimeout,
		RequestRetry:   provider.DefaultRetries,
		AWSRegion:      provider.DefaultAWSRegion,
		Fallback: FallbackConfig{
			RetryInterval:     5,
			RateLimitCooldown: fallback.DefaultRateLimitCooldown,
			MaxRetries:        2,
		},
		Tokenization: TokenizationConfig{
			Enabled:          true,
			Estimator:        tokenizer.MethodSimple,
			ListingLimit:     optimizer.DefaultListingLimit,
			SummaryThreshold: optimizer.DefaultSummaryThreshold,
			SummaryRatio:     optimizer.DefaultSummaryRatio,
			BatchSize:        optimizer.DefaultBatchSize,
		},
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			TTL:     cache.DefaultTTL,
		},
		Logging: LoggingConfig{Dir: "logs"},
		Audit:   AuditConfig{Path: "./logs/audit.log"},
	}
}

// LoadConfig reads YAML from configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns Default().
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg := Default()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize normalizes enumerations and clamps numeric settings.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}
	def := Default()

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case "auto", string(models.ProviderAWS), string(models.ProviderOpenRouter):
	default:
		cfg.Provider = def.Provider
	}
	cfg.Models = strings.TrimSpace(cfg.Models)

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RequestRetry < 0 {
		cfg.RequestRetry = 0
	}
	if cfg.RequestRetry > 10 {
		cfg.RequestRetry = 10
	}
	cfg.AWSRegion = strings.TrimSpace(cfg.AWSRegion)
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = def.AWSRegion
	}

	fb := &cfg.Fallback
	if fb.RetryInterval < 1 {
		fb.RetryInterval = 1
	}
	if fb.RateLimitCooldown < time.Second {
		fb.RateLimitCooldown = def.Fallback.RateLimitCooldown
	}
	if fb.MaxRetries < 1 {
		fb.MaxRetries = 1
	}

	tk := &cfg.Tokenization
	tk.Estimator = strings.ToLower(strings.TrimSpace(tk.Estimator))
	if tk.Estimator != tokenizer.MethodSimple && tk.Estimator != tokenizer.MethodTiktoken {
		tk.Estimator = tokenizer.MethodSimple
	}
	if tk.ListingLimit <= 0 {
		tk.ListingLimit = def.Tokenization.ListingLimit
	}
	if tk.SummaryThreshold <= 0 {
		tk.SummaryThreshold = def.Tokenization.SummaryThreshold
	}
	if tk.SummaryRatio <= 0 || tk.SummaryRatio > 1 {
		tk.SummaryRatio = def.Tokenization.SummaryRatio
	}
	if tk.BatchSize <= 0 {
		tk.BatchSize = def.Tokenization.BatchSize
	}
	if tk.BatchSize > 16 {
		tk.BatchSize = 16
	}

	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	switch cfg.Cache.Backend {
	case cache.BackendNone, cache.BackendMemory, cache.BackendFile, cache.BackendSQLite:
	case "":
		cfg.Cache.Backend = cache.BackendNone
	default:
		cfg.Cache.Backend = def.Cache.Backend
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}

	if strings.TrimSpace(cfg.Audit.Path) == "" {
		cfg.Audit.Path = def.Audit.Path
	}
}

// FallbackOptions converts the fallback section.
func (cfg *Config) FallbackOptions() fallback.Options {
	return fallback.Options{
		RetryInterval:     cfg.Fallback.RetryInterval,
		RateLimitCooldown: cfg.Fallback.RateLimitCooldown,
		MaxRetries:        cfg.Fallback.MaxRetries,
	}
}

// OptimizerOptions converts the tokenization section.
func (cfg *Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		ListingLimit:     cfg.Tokenization.ListingLimit,
		SummaryThreshold: cfg.Tokenization.SummaryThreshold,
		SummaryRatio:     cfg.Tokenization.SummaryRatio,
		BatchSize:        cfg.Tokenization.BatchSize,
		EstimatorMethod:  cfg.Tokenization.Estimator,
	}
}

// ProviderOptions converts the request settings.
func (cfg *Config) ProviderOptions() provider.Options {
	return provider.Options{
		MaxTokens:      cfg.MaxTokens,
		RequestTimeout: cfg.RequestTimeout,
		Retries:        cfg.RequestRetry,
		BaseURL:        cfg.OpenRouterBaseURL,
	}
}

// AuditLoggerConfig converts the audit section.
func (cfg *Config) AuditLoggerConfig() audit.Config {
	return audit.Config{Enabled: cfg.Audit.Enabled, Path: cfg.Audit.Path}
}
