package gatekeep

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how (and whether) admission control is applied.
type Mode string

const (
	// ModeDisabled turns admission control off entirely.
	ModeDisabled Mode = "disabled"

	// ModeSimple keys buckets on the connection peer address.
	ModeSimple Mode = "simple"

	// ModeSmart keys buckets on the client address recovered from
	// trusted-proxy headers, useful behind reverse proxies.
	ModeSmart Mode = "smart"
)

// Config holds the admission control policy. It is immutable after the
// limiter is constructed.
type Config struct {
	// Mode is one of "disabled", "simple" or "smart"
	Mode Mode `yaml:"mode,omitempty"`

	// RefillRate is the number of tokens added per second
	RefillRate float64 `yaml:"refill_rate,omitempty"`

	// BurstSize is the bucket capacity: the maximum requests admitted
	// instantaneously
	BurstSize int64 `yaml:"burst_size,omitempty"`

	// GCInterval is how often the evictor scans for idle buckets
	// Format: "60s", "2m"
	GCInterval string `yaml:"gc_interval,omitempty"`

	// EvictionHorizon is how long a bucket must sit idle before it is
	// removed. Defaults to three GC intervals so an entry cannot be
	// evicted mid-burst.
	EvictionHorizon string `yaml:"eviction_horizon,omitempty"`

	// TrustedProxies lists IPs or CIDR blocks whose forwarding headers
	// are honored in smart mode
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// NewConfig returns a Config with the default policy.
func NewConfig() *Config {
	return &Config{
		Mode:       ModeSimple,
		RefillRate: 4,
		BurstSize:  2,
		GCInterval: "60s",
	}
}

// LoadConfigFromFile loads configuration from a YAML file. Errors carry
// the offending path.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &config, nil
}

// applyDefaults fills unset fields with the default policy.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeSimple
	}
	if c.RefillRate == 0 {
		c.RefillRate = 4
	}
	if c.BurstSize == 0 {
		c.BurstSize = 2
	}
	if c.GCInterval == "" {
		c.GCInterval = "60s"
	}
}

// Validate checks the configuration. A limiter must not be constructed
// from a config that fails validation.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDisabled, ModeSimple, ModeSmart:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}

	if c.RefillRate <= 0 {
		return ErrNonPositiveRefillRate
	}
	if c.BurstSize <= 0 {
		return ErrNonPositiveBurst
	}

	gc, err := c.gcInterval()
	if err != nil {
		return err
	}
	horizon, err := c.evictionHorizon()
	if err != nil {
		return err
	}
	if horizon < gc {
		return fmt.Errorf("%w: eviction_horizon %v shorter than gc_interval %v",
			ErrInvalidConfig, horizon, gc)
	}

	if _, err := parseTrustList(c.TrustedProxies); err != nil {
		return err
	}

	return nil
}

func (c *Config) gcInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.GCInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: gc_interval %q: %v", ErrInvalidConfig, c.GCInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: gc_interval must be positive", ErrInvalidConfig)
	}
	return d, nil
}

func (c *Config) evictionHorizon() (time.Duration, error) {
	if c.EvictionHorizon == "" {
		gc, err := c.gcInterval()
		if err != nil {
			return 0, err
		}
		return 3 * gc, nil
	}
	d, err := time.ParseDuration(c.EvictionHorizon)
	if err != nil {
		return 0, fmt.Errorf("%w: eviction_horizon %q: %v", ErrInvalidConfig, c.EvictionHorizon, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: eviction_horizon must be positive", ErrInvalidConfig)
	}
	return d, nil
}
