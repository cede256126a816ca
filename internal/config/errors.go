package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still printing a human-readable message.
var (
	// ErrNoTarget is returned when no URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTarget is returned when a target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidFormat is returned for an unknown report format.
	ErrInvalidFormat = errors.New("invalid format: must be one of text, json, markdown, html, csv")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to disable the limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidEngine is returned for an unknown browser engine.
	ErrInvalidEngine = errors.New("invalid engine: must be one of rod, chromedp, playwright")

	// ErrInvalidViewport is returned when the window width or height is not positive.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrInvalidImplicitWait is returned when the implicit wait is negative.
	ErrInvalidImplicitWait = errors.New("invalid implicit wait: must be non-negative")

	// ErrRecipeNotFound is returned when a named recipe is not in the config file.
	ErrRecipeNotFound = errors.New("recipe not found")
)
