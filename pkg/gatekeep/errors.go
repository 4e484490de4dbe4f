package gatekeep

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownMode is returned when the configured mode is not recognized
	ErrUnknownMode = errors.New("unknown admission control mode")

	// ErrNonPositiveBurst is returned when the burst size is zero or negative
	ErrNonPositiveBurst = errors.New("burst size must be positive")

	// ErrNonPositiveRefillRate is returned when the refill rate is zero or negative
	ErrNonPositiveRefillRate = errors.New("refill rate must be positive")

	// ErrInvalidKey is returned when the rate limit key is empty
	ErrInvalidKey = errors.New("rate limit key cannot be empty")

	// ErrStoreFailed is returned when bucket store operations fail
	ErrStoreFailed = errors.New("bucket store operation failed")

	// ErrKeyExtractionFailed is returned when no client identity can be
	// derived from a request
	ErrKeyExtractionFailed = errors.New("failed to extract key from request")
)
