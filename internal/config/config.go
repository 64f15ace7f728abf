package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dyluth/standings/internal/timespec"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is omitted.
const (
	DefaultDisplayTopK         = 10
	DefaultDisplayRefresh      = 20 * time.Second
	DefaultResetInterval       = 7 * 24 * time.Hour
	DefaultRetryInterval       = 30 * time.Second
	DefaultReceiptRetention    = 7 * 24 * time.Hour
	DefaultGroupInterval       = 28 * 24 * time.Hour
	DefaultDirectoryTTL        = 120 * time.Second
	DefaultDirectoryMaxRetries = 5
	DefaultInitialBackoff      = 500 * time.Millisecond
	DefaultMaxBackoff          = 30 * time.Second
	DefaultRatePerSecond       = 5.0
	DefaultRateBurst           = 5
	DefaultConcurrency         = 4
	DefaultRequestTimeout      = 10 * time.Second
	DefaultCharPoints          = 1
	DefaultEmojiPoints         = 5
	DefaultBurstLimit          = 10
	DefaultBurstWindow         = 5 * time.Minute
	DefaultOpsAddr             = ":8080"
	DefaultChannel             = "leaderboard"
	DefaultRedisURL            = "redis://localhost:6379"
)

// Duration is a time.Duration read from YAML as an interval string ("20s", "7d").
type Duration time.Duration

// UnmarshalYAML parses interval strings through timespec.ParseInterval.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := timespec.ParseInterval(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in the same syntax it is read with.
func (d Duration) MarshalYAML() (interface{}, error) {
	return timespec.FormatInterval(time.Duration(d)), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the top-level standings.yml configuration
type Config struct {
	Version   string           `yaml:"version"`
	Instance  string           `yaml:"instance"`
	RedisURL  string           `yaml:"redis_url,omitempty"`
	OpsAddr   string           `yaml:"ops_addr,omitempty"`
	Channel   string           `yaml:"channel,omitempty"`
	Display   *DisplayConfig   `yaml:"display,omitempty"`
	Reset     *ResetConfig     `yaml:"reset,omitempty"`
	Groups    *GroupsConfig    `yaml:"groups,omitempty"`
	Directory *DirectoryConfig `yaml:"directory,omitempty"`
	Scoring   *ScoringConfig   `yaml:"scoring,omitempty"`
}

// DisplayConfig controls the ranking artifact refresh cycle
type DisplayConfig struct {
	TopK    int      `yaml:"top_k,omitempty"`
	Refresh Duration `yaml:"refresh,omitempty"`
}

// ResetConfig controls the entity reset cycle
type ResetConfig struct {
	Interval         Duration `yaml:"interval,omitempty"`
	TopK             *int     `yaml:"top_k,omitempty"` // 0 = every entity
	RetryInterval    Duration `yaml:"retry_interval,omitempty"`
	ReceiptRetention Duration `yaml:"receipt_retention,omitempty"`
}

// GroupsConfig controls the group comparison cycle
type GroupsConfig struct {
	Interval Duration `yaml:"interval,omitempty"`
}

// DirectoryConfig configures the external directory lookups
type DirectoryConfig struct {
	BaseURL        string   `yaml:"base_url"`
	TTL            Duration `yaml:"ttl,omitempty"`
	MaxRetries     int      `yaml:"max_retries,omitempty"`
	InitialBackoff Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     Duration `yaml:"max_backoff,omitempty"`
	RatePerSecond  float64  `yaml:"rate_per_second,omitempty"`
	Burst          int      `yaml:"burst,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty"`
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`
}

// ScoringConfig controls how events turn into points
type ScoringConfig struct {
	CharPoints  *int64   `yaml:"char_points,omitempty"`
	EmojiPoints *int64   `yaml:"emoji_points,omitempty"`
	BurstLimit  *int     `yaml:"burst_limit,omitempty"` // 0 disables burst gating
	BurstWindow Duration `yaml:"burst_window,omitempty"`
	Cooldown    Duration `yaml:"cooldown,omitempty"`
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: instance
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}

	if c.RedisURL == "" {
		c.RedisURL = DefaultRedisURL
	}
	if _, err := url.Parse(c.RedisURL); err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}
	if c.OpsAddr == "" {
		c.OpsAddr = DefaultOpsAddr
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}

	if c.Display == nil {
		c.Display = &DisplayConfig{}
	}
	if err := c.Display.validate(); err != nil {
		return err
	}

	if c.Reset == nil {
		c.Reset = &ResetConfig{}
	}
	if err := c.Reset.validate(); err != nil {
		return err
	}

	if c.Groups == nil {
		c.Groups = &GroupsConfig{}
	}
	if c.Groups.Interval == 0 {
		c.Groups.Interval = Duration(DefaultGroupInterval)
	}

	// Required: directory.base_url
	if c.Directory == nil {
		return fmt.Errorf("directory section is required")
	}
	if err := c.Directory.validate(); err != nil {
		return err
	}

	if c.Scoring == nil {
		c.Scoring = &ScoringConfig{}
	}
	return c.Scoring.validate()
}

func (d *DisplayConfig) validate() error {
	if d.TopK == 0 {
		d.TopK = DefaultDisplayTopK
	}
	if d.TopK < 0 {
		return fmt.Errorf("display.top_k must be > 0, got %d", d.TopK)
	}
	if d.Refresh == 0 {
		d.Refresh = Duration(DefaultDisplayRefresh)
	}
	return nil
}

func (r *ResetConfig) validate() error {
	if r.Interval == 0 {
		r.Interval = Duration(DefaultResetInterval)
	}
	if r.TopK == nil {
		all := 0
		r.TopK = &all
	}
	if *r.TopK < 0 {
		return fmt.Errorf("reset.top_k must be >= 0 (0 = every entity), got %d", *r.TopK)
	}
	if r.RetryInterval == 0 {
		r.RetryInterval = Duration(DefaultRetryInterval)
	}
	// A retry never waits longer than the cycle itself would.
	if r.RetryInterval > r.Interval {
		r.RetryInterval = r.Interval
	}
	if r.ReceiptRetention == 0 {
		r.ReceiptRetention = Duration(DefaultReceiptRetention)
	}
	if r.ReceiptRetention < r.RetryInterval {
		return fmt.Errorf("reset.receipt_retention (%s) must be at least reset.retry_interval (%s)",
			timespec.FormatInterval(r.ReceiptRetention.Std()), timespec.FormatInterval(r.RetryInterval.Std()))
	}
	return nil
}

func (d *DirectoryConfig) validate() error {
	if d.BaseURL == "" {
		return fmt.Errorf("directory.base_url is required")
	}
	u, err := url.Parse(d.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("directory.base_url must be an absolute URL, got %q", d.BaseURL)
	}
	if d.TTL == 0 {
		d.TTL = Duration(DefaultDirectoryTTL)
	}
	if d.MaxRetries == 0 {
		d.MaxRetries = DefaultDirectoryMaxRetries
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("directory.max_retries must be >= 0, got %d", d.MaxRetries)
	}
	if d.InitialBackoff == 0 {
		d.InitialBackoff = Duration(DefaultInitialBackoff)
	}
	if d.MaxBackoff == 0 {
		d.MaxBackoff = Duration(DefaultMaxBackoff)
	}
	if d.MaxBackoff < d.InitialBackoff {
		return fmt.Errorf("directory.max_backoff must be >= directory.initial_backoff")
	}
	if d.RatePerSecond == 0 {
		d.RatePerSecond = DefaultRatePerSecond
	}
	if d.RatePerSecond < 0 {
		return fmt.Errorf("directory.rate_per_second must be > 0, got %g", d.RatePerSecond)
	}
	if d.Burst == 0 {
		d.Burst = DefaultRateBurst
	}
	if d.Concurrency == 0 {
		d.Concurrency = DefaultConcurrency
	}
	if d.Concurrency < 1 || d.Burst < 1 {
		return fmt.Errorf("directory.concurrency and directory.burst must be >= 1")
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	return nil
}

func (s *ScoringConfig) validate() error {
	if s.CharPoints == nil {
		v := int64(DefaultCharPoints)
		s.CharPoints = &v
	}
	if s.EmojiPoints == nil {
		v := int64(DefaultEmojiPoints)
		s.EmojiPoints = &v
	}
	if *s.CharPoints < 0 || *s.EmojiPoints < 0 {
		return fmt.Errorf("scoring points must be >= 0")
	}
	if s.BurstLimit == nil {
		v := DefaultBurstLimit
		s.BurstLimit = &v
	}
	if *s.BurstLimit < 0 {
		return fmt.Errorf("scoring.burst_limit must be >= 0 (0 = disabled), got %d", *s.BurstLimit)
	}
	if s.BurstWindow == 0 {
		s.BurstWindow = Duration(DefaultBurstWindow)
	}
	return nil
}

// ApplyEnv overrides fields from STANDINGS_INSTANCE_NAME, REDIS_URL and
// STANDINGS_OPS_ADDR.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("STANDINGS_INSTANCE_NAME"); v != "" {
		c.Instance = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("STANDINGS_OPS_ADDR"); v != "" {
		c.OpsAddr = v
	}
}

// Parse decodes and validates a standings.yml document, applying
// environment overrides before validation.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if getenv != nil {
		config.ApplyEnv(getenv)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Load reads and validates standings.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, os.Getenv)
}
