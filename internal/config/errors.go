package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrEmptyWorkDir is returned when the working directory is empty.
	ErrEmptyWorkDir = errors.New("invalid work dir: must not be empty")

	// ErrEmptyPath is returned when the cache dir, index file or output dir is empty.
	ErrEmptyPath = errors.New("invalid path: cache dir, index file and output dir must not be empty")

	// ErrInvalidDelay is returned when either delay bound is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrDelayRange is returned when the minimum delay exceeds the maximum.
	ErrDelayRange = errors.New("invalid delay: --delay-min must not exceed --delay-max")

	// ErrInvalidAttempts is returned when fewer than one attempt is configured.
	ErrInvalidAttempts = errors.New("invalid retries: at least one attempt is required")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidConcurrency is returned when format concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTrim is returned when selectors.trimTrailing is negative.
	ErrInvalidTrim = errors.New("invalid selectors.trimTrailing: must be non-negative")
)
