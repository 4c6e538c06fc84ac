package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds crawler configuration.
type Config struct {
	StartURL         string
	MaxPages         int // 0 means no page limit
	WithDetails      bool
	Timeout          time.Duration
	MaxRetries       int // attempts per URL, not extra tries
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	Delay            time.Duration
	OutputFile       string
	UserAgent        string
	MetricsAddr      string
	Verbose          bool
	RespectRobotsTxt bool
	VisitedCacheSize int
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		StartURL:         "https://books.toscrape.com/catalogue/page-1.html",
		MaxPages:         0,
		WithDetails:      false,
		Timeout:          20 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     1 * time.Second,
		RetryBackoffMax:  10 * time.Second,
		Delay:            0,
		OutputFile:       "output/books.xlsx",
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		MetricsAddr:      "",
		Verbose:          false,
		RespectRobotsTxt: false,
		VisitedCacheSize: 1024,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must allow at least one attempt")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}
	if c.RetryBackoffMax <= 0 {
		return fmt.Errorf("retry backoff max must be positive")
	}
	if c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.VisitedCacheSize <= 0 {
		return fmt.Errorf("visited cache size must be positive")
	}

	return nil
}
