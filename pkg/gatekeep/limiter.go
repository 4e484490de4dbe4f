package gatekeep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Limiter is the admission control decision engine.
type Limiter interface {
	// Allow checks whether a request with the given key is admitted.
	Allow(key string) (*Decision, error)

	// AllowRequest extracts the key from the request with the configured
	// extractor and checks whether it is admitted.
	AllowRequest(r *http.Request) (*Decision, error)

	// Middleware returns an HTTP middleware that applies admission
	// control. In disabled mode it returns the handler unchanged.
	Middleware(next http.Handler) http.Handler

	// StartEvictor starts the background goroutine that removes idle
	// buckets. It runs until ctx is cancelled.
	StartEvictor(ctx context.Context)
}

// Decision contains the result of an admission check.
type Decision struct {
	// Allowed indicates whether the request should proceed
	Allowed bool

	// Remaining is the number of tokens left in the bucket
	Remaining int64

	// Limit is the bucket capacity (max burst)
	Limit int64

	// RetryAfter is how long to wait before a request would be admitted.
	// Zero when Allowed is true.
	RetryAfter time.Duration

	// Key is the client identity that was checked
	Key string
}

// Recorder receives admission control events. The metrics package
// provides a Prometheus-backed implementation.
type Recorder interface {
	RecordAllowed()
	RecordDenied()
	RecordFailOpen()
	RecordEviction(removed, remaining int)
}

type noopRecorder struct{}

func (noopRecorder) RecordAllowed()          {}
func (noopRecorder) RecordDenied()           {}
func (noopRecorder) RecordFailOpen()         {}
func (noopRecorder) RecordEviction(int, int) {}

// limiter is the concrete implementation of Limiter.
type limiter struct {
	store     Store
	config    *Config
	extractor KeyExtractor
	logger    *slog.Logger
	recorder  Recorder

	gcInterval time.Duration
	horizon    time.Duration

	now func() time.Time // test hook
}

// New creates a Limiter from the given options. Construction fails on an
// invalid policy (non-positive rate or burst, unknown mode, bad trust
// list) so a misconfigured service refuses to start instead of running
// silently ineffective.
//
// Example:
//
//	limiter, err := gatekeep.New(
//	    gatekeep.WithPolicy(2, 4.0), // burst 2, 4 tokens/sec
//	)
func New(opts ...Option) (Limiter, error) {
	l := &limiter{
		config:   NewConfig(),
		logger:   slog.Default().With("component", "gatekeep"),
		recorder: noopRecorder{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	l.config.applyDefaults()
	if err := l.config.Validate(); err != nil {
		return nil, err
	}

	var err error
	l.gcInterval, err = l.config.gcInterval()
	if err != nil {
		return nil, err
	}
	l.horizon, err = l.config.evictionHorizon()
	if err != nil {
		return nil, err
	}

	if l.config.Mode == ModeDisabled {
		l.logger.Info("admission control disabled")
		return l, nil
	}

	if l.extractor == nil {
		switch l.config.Mode {
		case ModeSimple:
			l.extractor = ExtractPeerIP()
		case ModeSmart:
			l.extractor, err = ExtractSmartIP(l.config.TrustedProxies)
			if err != nil {
				return nil, err
			}
		}
	}

	if l.store == nil {
		l.store, err = NewInMemoryStore(l.config.BurstSize, l.config.RefillRate)
		if err != nil {
			return nil, err
		}
	}

	l.logger.Info("admission control enabled",
		"mode", l.config.Mode,
		"refill_rate", l.config.RefillRate,
		"burst_size", l.config.BurstSize)

	return l, nil
}

// Allow checks whether a request with the given key is admitted.
func (l *limiter) Allow(key string) (*Decision, error) {
	if l.config.Mode == ModeDisabled {
		return &Decision{Allowed: true, Key: key}, nil
	}
	if key == "" {
		return nil, ErrInvalidKey
	}

	bucket, err := l.store.GetBucket(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	now := l.now()
	allowed, retryAfter := bucket.takeAt(now)

	return &Decision{
		Allowed:    allowed,
		Remaining:  bucket.remainingAt(now),
		Limit:      bucket.Capacity(),
		RetryAfter: retryAfter,
		Key:        key,
	}, nil
}

// AllowRequest derives the client identity from the request and checks it.
func (l *limiter) AllowRequest(r *http.Request) (*Decision, error) {
	if l.config.Mode == ModeDisabled {
		return &Decision{Allowed: true}, nil
	}

	key, err := l.extractor(r)
	if err != nil {
		return nil, fmt.Errorf("key extraction failed: %w", err)
	}

	return l.Allow(key)
}

// Middleware wraps next with admission control. Denied requests are
// short-circuited with 429 Too Many Requests and a Retry-After header;
// internal failures admit the request (fail open) with a logged warning,
// because availability of the protected service takes priority over
// strict throttling.
func (l *limiter) Middleware(next http.Handler) http.Handler {
	if l.config.Mode == ModeDisabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := l.AllowRequest(r)
		if err != nil {
			l.logger.Warn("admission check failed, allowing request",
				"error", err, "remote_addr", r.RemoteAddr)
			l.recorder.RecordFailOpen()
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))

		if !decision.Allowed {
			retrySecs := int64(math.Ceil(decision.RetryAfter.Seconds()))
			if retrySecs < 1 {
				retrySecs = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retrySecs))
			w.Header().Set("X-RateLimit-Reset",
				fmt.Sprintf("%d", l.now().Add(decision.RetryAfter).Unix()))

			l.recorder.RecordDenied()
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		l.recorder.RecordAllowed()
		next.ServeHTTP(w, r)
	})
}
