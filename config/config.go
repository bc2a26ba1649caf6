package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`

	OutputDir    string `yaml:"output_dir"`
	LogDir       string `yaml:"log_dir"`
	StateDir     string `yaml:"state_dir"`
	OutputFormat string `yaml:"output_format"` // json, csv, dual, badger, or all

	// Throttle intervals are multiples of ThrottleUnit.
	ThrottleUnit   time.Duration `yaml:"throttle_unit"`
	PageThrottle   int           `yaml:"page_throttle"`
	ShortThrottle  int           `yaml:"short_throttle"`
	MediumThrottle int           `yaml:"medium_throttle"`
	LongThrottle   int           `yaml:"long_throttle"`
	MediumEvery    int           `yaml:"medium_every"`
	LongEvery      int           `yaml:"long_every"`

	MaxReviewPages int  `yaml:"max_review_pages"`
	TestModePages  int  `yaml:"test_mode_pages"`
	TestMode       bool `yaml:"test_mode"`
	OmitReviews    bool `yaml:"omit_reviews"`
	Verbose        bool `yaml:"verbose"`

	LinkCacheSize int    `yaml:"link_cache_size"`
	MetricsAddr   string `yaml:"metrics_addr"`
}

// DefaultConfig returns the pacing the app store tolerates without blocking.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://apps.shopify.com",
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		OutputDir:      "output",
		LogDir:         "log",
		StateDir:       "state",
		OutputFormat:   "json",
		ThrottleUnit:   time.Second,
		PageThrottle:   2,
		ShortThrottle:  3,
		MediumThrottle: 60,
		LongThrottle:   300,
		MediumEvery:    100,
		LongEvery:      500,
		MaxReviewPages: 999,
		TestModePages:  3,
		LinkCacheSize:  500_000,
	}
}

// LoadFile overlays the YAML file at path onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SCRAPER_* environment variables.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("SCRAPER_BASE_URL"); ok {
		c.BaseURL = value
	}
	if value, ok := EnvString("SCRAPER_OUTPUT_DIR"); ok {
		c.OutputDir = value
	}
	if value, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	if value, ok, err := EnvInt("SCRAPER_THROTTLE"); err != nil {
		return fmt.Errorf("invalid SCRAPER_THROTTLE: %w", err)
	} else if ok {
		c.PageThrottle = value
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Origin returns the scheme and host of BaseURL without a trailing slash.
func (c *Config) Origin() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return parsed.Scheme + "://" + parsed.Host
}

// PageDelay is the pause between two review page fetches.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.PageThrottle) * c.ThrottleUnit
}

// ReviewPageLimit is the last review page fetched per rating bucket.
func (c *Config) ReviewPageLimit() int {
	if c.TestMode && c.TestModePages < c.MaxReviewPages {
		return c.TestModePages
	}
	return c.MaxReviewPages
}

// OutputPath joins name onto OutputDir.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// LogPath joins name onto LogDir.
func (c *Config) LogPath(name string) string {
	return filepath.Join(c.LogDir, name)
}

// StatePath joins name onto StateDir.
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.StateDir, name)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputDir == "" || c.LogDir == "" || c.StateDir == "" {
		return fmt.Errorf("output, log and state directories cannot be empty")
	}
	switch c.OutputFormat {
	case "json", "csv", "dual", "badger", "all":
	default:
		return fmt.Errorf("output format must be json, csv, dual, badger, or all")
	}
	if c.ThrottleUnit < 0 {
		return fmt.Errorf("throttle unit cannot be negative")
	}
	if c.PageThrottle < 0 || c.ShortThrottle < 0 || c.MediumThrottle < 0 || c.LongThrottle < 0 {
		return fmt.Errorf("throttle multiples cannot be negative")
	}
	if c.MediumEvery <= 0 || c.LongEvery <= 0 {
		return fmt.Errorf("throttle tier periods must be positive")
	}
	if c.MaxReviewPages <= 0 {
		return fmt.Errorf("max review pages must be positive")
	}
	if c.TestModePages <= 0 {
		return fmt.Errorf("test mode pages must be positive")
	}
	if c.LinkCacheSize <= 0 {
		return fmt.Errorf("link cache size must be positive")
	}

	return nil
}
