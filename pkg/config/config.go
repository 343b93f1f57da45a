// Package config provides the process-wide configuration for the dataset
// engine. The configuration is built once at startup, validated, and then
// injected into the components that need it; nothing reads it as an ambient
// global after initialization.
package config

import (
	"runtime"
	"time"

	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// EngineConfig holds every tunable of the dataset engine.
type EngineConfig struct {
	// CacheDir is where materialized datasets are written by default.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// DefaultBatchSize is the batch size used by batched map and filter
	// when the caller does not specify one.
	DefaultBatchSize int `yaml:"default_batch_size" json:"default_batch_size"`

	// MaxProcs caps the number of parallel workers a single map or filter
	// may spawn. Zero means the number of CPUs.
	MaxProcs int `yaml:"max_procs" json:"max_procs"`

	// MaxAsyncConcurrency bounds the number of asynchronous callback
	// invocations the engine drives at once.
	MaxAsyncConcurrency int `yaml:"max_async_concurrency" json:"max_async_concurrency"`

	// Hub configures the remote content store used by push and pull.
	Hub HubConfig `yaml:"hub" json:"hub"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// HubConfig configures access to an S3-compatible content store.
type HubConfig struct {
	Endpoint        string        `yaml:"endpoint" json:"endpoint"`
	Bucket          string        `yaml:"bucket" json:"bucket"`
	AccessKeyID     string        `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool          `yaml:"use_ssl" json:"use_ssl"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" json:"requests_per_sec"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// Default returns an EngineConfig with production defaults.
func Default() *EngineConfig {
	return &EngineConfig{
		CacheDir:            ".datasets_cache",
		DefaultBatchSize:    1000,
		MaxProcs:            runtime.NumCPU(),
		MaxAsyncConcurrency: 1000,
		Hub: HubConfig{
			UseSSL:         true,
			RequestsPerSec: 50,
			Timeout:        30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the configuration for impossible values.
func (c *EngineConfig) Validate() error {
	if c.DefaultBatchSize <= 0 {
		return dserrors.Newf(dserrors.ErrorTypeConfig,
			"default_batch_size must be positive, got %d", c.DefaultBatchSize)
	}
	if c.MaxProcs < 0 {
		return dserrors.Newf(dserrors.ErrorTypeConfig,
			"max_procs must be non-negative, got %d", c.MaxProcs)
	}
	if c.MaxAsyncConcurrency <= 0 {
		return dserrors.Newf(dserrors.ErrorTypeConfig,
			"max_async_concurrency must be positive, got %d", c.MaxAsyncConcurrency)
	}
	if c.Hub.RequestsPerSec < 0 {
		return dserrors.Newf(dserrors.ErrorTypeConfig,
			"hub.requests_per_sec must be non-negative, got %f", c.Hub.RequestsPerSec)
	}
	return nil
}

// Procs resolves MaxProcs against the machine.
func (c *EngineConfig) Procs() int {
	if c.MaxProcs <= 0 {
		return runtime.NumCPU()
	}
	return c.MaxProcs
}
