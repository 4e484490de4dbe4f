package gatekeep

import (
	"fmt"
	"log/slog"
)

// Option is a functional option for configuring a Limiter.
type Option func(*limiter) error

// WithConfig sets the admission control policy.
func WithConfig(config *Config) Option {
	return func(l *limiter) error {
		if config == nil {
			return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
		}
		l.config = config
		return nil
	}
}

// WithConfigFile loads the policy from a YAML file.
func WithConfigFile(path string) Option {
	return func(l *limiter) error {
		config, err := LoadConfigFromFile(path)
		if err != nil {
			return err
		}
		l.logger.Info("loaded config file", "path", path)
		l.config = config
		return nil
	}
}

// WithPolicy sets the bucket parameters directly. This is a convenience
// option for basic use.
func WithPolicy(burstSize int64, refillRate float64) Option {
	return func(l *limiter) error {
		if burstSize <= 0 {
			return ErrNonPositiveBurst
		}
		if refillRate <= 0 {
			return ErrNonPositiveRefillRate
		}
		l.config.BurstSize = burstSize
		l.config.RefillRate = refillRate
		return nil
	}
}

// WithStore sets a custom bucket store.
func WithStore(store Store) Option {
	return func(l *limiter) error {
		if store == nil {
			return fmt.Errorf("%w: store cannot be nil", ErrInvalidConfig)
		}
		l.store = store
		return nil
	}
}

// WithKeyExtractor overrides the extractor selected by the mode.
func WithKeyExtractor(extractor KeyExtractor) Option {
	return func(l *limiter) error {
		if extractor == nil {
			return fmt.Errorf("%w: key extractor cannot be nil", ErrInvalidConfig)
		}
		l.extractor = extractor
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *limiter) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		l.logger = logger
		return nil
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(l *limiter) error {
		if recorder == nil {
			return fmt.Errorf("%w: recorder cannot be nil", ErrInvalidConfig)
		}
		l.recorder = recorder
		return nil
	}
}
