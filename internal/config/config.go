// Package config loads soltool settings from YAML. Decoding is strict and every
// field has an explicit default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/DMA-Software/dma-golso/pkg/amf3"
	"github.com/DMA-Software/dma-golso/pkg/flex"
	"github.com/DMA-Software/dma-golso/pkg/sol"
)

// Default values applied to unset fields.
const (
	DefaultWorkers  = 4
	DefaultLogLevel = "info"
)

// Config holds the codec and run settings.
type Config struct {
	MaxDepth       int    `yaml:"max_depth"`       // Composite nesting limit
	RawExternals   bool   `yaml:"raw_externals"`   // Keep unknown externalizable bodies as raw bytes
	Flex           bool   `yaml:"flex"`            // Register the Flex collection codecs
	TolerateLength bool   `yaml:"tolerate_length"` // Warn instead of failing on a bad SOL length field
	Workers        int    `yaml:"workers"`         // Files processed concurrently
	LogLevel       string `yaml:"log_level"`       // logrus level name
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads configuration from a YAML file.
// Returns an error if the file cannot be read, decoded or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, rejecting unknown fields.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = amf3.DefaultMaxDepth
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 || c.MaxDepth > 4096 {
		return fmt.Errorf("max_depth must be between 1 and 4096, got %d", c.MaxDepth)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level. It falls back to info for a value
// that did not pass Validate.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// CodecOptions builds the AMF options described by c.
func (c *Config) CodecOptions() amf3.Options {
	opts := amf3.Options{MaxDepth: c.MaxDepth, RawExternals: c.RawExternals}
	if c.Flex {
		flex.Install(&opts)
	}
	return opts
}

// SOLOptions builds SOL options described by c, logging through logger.
func (c *Config) SOLOptions(logger logrus.FieldLogger) sol.Options {
	return sol.Options{
		Options:        c.CodecOptions(),
		TolerateLength: c.TolerateLength,
		Logger:         logger,
	}
}
