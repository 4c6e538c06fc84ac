package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding. Pointer fields
// distinguish "absent" from zero values, and durations are parsed from
// strings ("20s", "500ms") since yaml.v3 has no native duration support.
type fileConfig struct {
	StartURL         *string `yaml:"start_url"`
	MaxPages         *int    `yaml:"max_pages"`
	WithDetails      *bool   `yaml:"with_details"`
	Timeout          *string `yaml:"timeout"`
	MaxRetries       *int    `yaml:"max_retries"`
	RetryBackoff     *string `yaml:"retry_backoff"`
	RetryBackoffMax  *string `yaml:"retry_backoff_max"`
	Delay            *string `yaml:"delay"`
	OutputFile       *string `yaml:"output_file"`
	UserAgent        *string `yaml:"user_agent"`
	MetricsAddr      *string `yaml:"metrics_addr"`
	Verbose          *bool   `yaml:"verbose"`
	RespectRobotsTxt *bool   `yaml:"respect_robots_txt"`
	VisitedCacheSize *int    `yaml:"visited_cache_size"`
}

// LoadFile merges a YAML configuration file into c. Keys absent from
// the file keep their current values, so callers can layer a file on
// top of DefaultConfig before applying flags.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.StartURL != nil {
		c.StartURL = *fc.StartURL
	}
	if fc.MaxPages != nil {
		c.MaxPages = *fc.MaxPages
	}
	if fc.WithDetails != nil {
		c.WithDetails = *fc.WithDetails
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.OutputFile != nil {
		c.OutputFile = *fc.OutputFile
	}
	if fc.UserAgent != nil {
		c.UserAgent = *fc.UserAgent
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
	if fc.Verbose != nil {
		c.Verbose = *fc.Verbose
	}
	if fc.RespectRobotsTxt != nil {
		c.RespectRobotsTxt = *fc.RespectRobotsTxt
	}
	if fc.VisitedCacheSize != nil {
		c.VisitedCacheSize = *fc.VisitedCacheSize
	}

	durations := []struct {
		key   string
		raw   *string
		field *time.Duration
	}{
		{"timeout", fc.Timeout, &c.Timeout},
		{"retry_backoff", fc.RetryBackoff, &c.RetryBackoff},
		{"retry_backoff_max", fc.RetryBackoffMax, &c.RetryBackoffMax},
		{"delay", fc.Delay, &c.Delay},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("parse %s in config file %s: %w", d.key, path, err)
		}
		*d.field = v
	}

	return nil
}
