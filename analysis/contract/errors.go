package contract

import "errors"

var (
	// ErrValidation marks bad input. Not retryable; surfaced immediately.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable marks a transient upstream failure. The tool gateway
	// retries these with backoff before surfacing.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrConfiguration marks a misconfigured tool or resource reference. Fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrGeneration marks a model call that failed or returned nothing usable.
	ErrGeneration = errors.New("generation produced no usable output")
)
