package gatekeep

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()

	if c.Mode != ModeSimple {
		t.Errorf("Mode = %q, want %q", c.Mode, ModeSimple)
	}
	if c.RefillRate != 4 {
		t.Errorf("RefillRate = %f, want 4", c.RefillRate)
	}
	if c.BurstSize != 2 {
		t.Errorf("BurstSize = %d, want 2", c.BurstSize)
	}
	gc, err := c.gcInterval()
	if err != nil {
		t.Fatalf("gcInterval() failed: %v", err)
	}
	if gc != 60*time.Second {
		t.Errorf("gcInterval() = %v, want 60s", gc)
	}
	// Horizon defaults to three GC intervals.
	horizon, err := c.evictionHorizon()
	if err != nil {
		t.Fatalf("evictionHorizon() failed: %v", err)
	}
	if horizon != 3*gc {
		t.Errorf("evictionHorizon() = %v, want %v", horizon, 3*gc)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
mode: smart
refill_rate: 10
burst_size: 5
gc_interval: 30s
eviction_horizon: 2m
trusted_proxies:
  - 10.0.0.0/8
  - 192.168.1.1
`)

	c, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() failed: %v", err)
	}

	if c.Mode != ModeSmart {
		t.Errorf("Mode = %q, want %q", c.Mode, ModeSmart)
	}
	if c.RefillRate != 10 {
		t.Errorf("RefillRate = %f, want 10", c.RefillRate)
	}
	if c.BurstSize != 5 {
		t.Errorf("BurstSize = %d, want 5", c.BurstSize)
	}
	if len(c.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v, want 2 entries", c.TrustedProxies)
	}
	horizon, err := c.evictionHorizon()
	if err != nil {
		t.Fatalf("evictionHorizon() failed: %v", err)
	}
	if horizon != 2*time.Minute {
		t.Errorf("evictionHorizon() = %v, want 2m", horizon)
	}
}

func TestLoadConfigFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `mode: disabled`)

	c, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() failed: %v", err)
	}
	if c.Mode != ModeDisabled {
		t.Errorf("Mode = %q, want %q", c.Mode, ModeDisabled)
	}
	if c.RefillRate != 4 || c.BurstSize != 2 {
		t.Errorf("defaults not applied: rate=%f burst=%d", c.RefillRate, c.BurstSize)
	}
}

func TestLoadConfigFromFile_MissingFileNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	_, err := LoadConfigFromFile(path)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the offending path %q", err, path)
	}
}

func TestLoadConfigFromFile_BadYAMLNamesPath(t *testing.T) {
	path := writeConfigFile(t, "mode: [unterminated")

	_, err := LoadConfigFromFile(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the offending path %q", err, path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectedErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "unknown mode",
			mutate:      func(c *Config) { c.Mode = "clever" },
			expectedErr: ErrUnknownMode,
		},
		{
			name:        "negative refill rate",
			mutate:      func(c *Config) { c.RefillRate = -1 },
			expectedErr: ErrNonPositiveRefillRate,
		},
		{
			name:        "negative burst",
			mutate:      func(c *Config) { c.BurstSize = -1 },
			expectedErr: ErrNonPositiveBurst,
		},
		{
			name:        "unparseable gc interval",
			mutate:      func(c *Config) { c.GCInterval = "soon" },
			expectedErr: ErrInvalidConfig,
		},
		{
			name:        "horizon shorter than gc interval",
			mutate:      func(c *Config) { c.EvictionHorizon = "1s" },
			expectedErr: ErrInvalidConfig,
		},
		{
			name:        "invalid trusted proxy",
			mutate:      func(c *Config) { c.TrustedProxies = []string{"nope"} },
			expectedErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectedErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.expectedErr)
			}
		})
	}
}
