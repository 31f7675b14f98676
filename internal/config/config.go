package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/quantarax/filehash/internal/chunker"
	"github.com/quantarax/filehash/internal/hashing"
	"github.com/quantarax/filehash/internal/validation"
)

const (
	minChunkSize = 1
	maxChunkSize = chunker.MaxSize

	defaultManifestChunkSize = 1 << 20
)

// Config holds filehash configuration
type Config struct {
	Algorithm   string `yaml:"algorithm"`
	Encoding    string `yaml:"encoding"`
	ChunkSize   int    `yaml:"chunk_size"`
	RateLimit   int64  `yaml:"rate_limit_bytes_per_second"`
	LogLevel    string `yaml:"log_level"`
	MetricsFile string `yaml:"metrics_file"`
	ServiceName string `yaml:"service_name"`

	// TracingEndpoint is the Jaeger collector URL; empty falls back to
	// OTEL_EXPORTER_JAEGER_ENDPOINT.
	TracingEndpoint string `yaml:"tracing_endpoint"`

	ManifestAlgorithm string `yaml:"manifest_algorithm"`
	ManifestChunkSize int    `yaml:"manifest_chunk_size"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Algorithm:   hashing.MD5.String(),
		Encoding:    hashing.HexUpper.String(),
		ChunkSize:   hashing.DefaultChunkSize,
		LogLevel:    "info",
		ServiceName: "filehash",

		ManifestAlgorithm: hashing.BLAKE3.String(),
		ManifestChunkSize: defaultManifestChunkSize,
	}
}

// LoadConfig loads configuration from a YAML file and applies FILEHASH_*
// environment overrides. An empty path yields the defaults plus overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FILEHASH_ALGORITHM"); v != "" {
		c.Algorithm = v
	}
	if v := os.Getenv("FILEHASH_ENCODING"); v != "" {
		c.Encoding = v
	}
	if v := os.Getenv("FILEHASH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FILEHASH_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
	if v := os.Getenv("FILEHASH_TRACING_ENDPOINT"); v != "" {
		c.TracingEndpoint = v
	}
	if v := os.Getenv("FILEHASH_MANIFEST_ALGORITHM"); v != "" {
		c.ManifestAlgorithm = v
	}
	if v := os.Getenv("FILEHASH_MANIFEST_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FILEHASH_MANIFEST_CHUNK_SIZE: %w", err)
		}
		c.ManifestChunkSize = n
	}
	if v := os.Getenv("FILEHASH_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FILEHASH_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("FILEHASH_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FILEHASH_RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}
	return nil
}

// Validate checks every field can be used as-is.
func (c *Config) Validate() error {
	if _, err := hashing.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("algorithm: %w", err)
	}
	if _, err := hashing.ParseEncoding(c.Encoding); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if err := validation.ValidateRangeInt(c.ChunkSize, minChunkSize, maxChunkSize); err != nil {
		return fmt.Errorf("chunk_size: %w", err)
	}
	if _, err := hashing.ParseAlgorithm(c.ManifestAlgorithm); err != nil {
		return fmt.Errorf("manifest_algorithm: %w", err)
	}
	if err := validation.ValidateRangeInt(c.ManifestChunkSize, minChunkSize, maxChunkSize); err != nil {
		return fmt.Errorf("manifest_chunk_size: %w", err)
	}
	if c.RateLimit != 0 {
		if err := validation.ValidateRangeInt64(c.RateLimit, int64(c.ChunkSize), 1<<40); err != nil {
			return fmt.Errorf("rate_limit_bytes_per_second must be 0 or at least chunk_size: %w", err)
		}
	}
	if err := validation.ValidateStringNonEmpty(c.ServiceName); err != nil {
		return fmt.Errorf("service_name: %w", err)
	}
	return nil
}

// HashAlgorithm returns the parsed algorithm. Call after Validate.
func (c *Config) HashAlgorithm() hashing.Algorithm {
	alg, _ := hashing.ParseAlgorithm(c.Algorithm)
	return alg
}

// ManifestHashAlgorithm returns the parsed manifest algorithm. Call after Validate.
func (c *Config) ManifestHashAlgorithm() hashing.Algorithm {
	alg, _ := hashing.ParseAlgorithm(c.ManifestAlgorithm)
	return alg
}

// HashEncoding returns the parsed encoding. Call after Validate.
func (c *Config) HashEncoding() hashing.Encoding {
	enc, _ := hashing.ParseEncoding(c.Encoding)
	return enc
}

// HasherOptions translates the configuration into Hasher options.
func (c *Config) HasherOptions() []hashing.Option {
	return []hashing.Option{
		hashing.WithChunkSize(c.ChunkSize),
		hashing.WithRateLimit(c.RateLimit),
	}
}
