package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// These provide sane defaults; environment/config may override where supported.

const (
	// Google Places
	PlacesOperationTimeout = 10 * time.Second
	PlacesOpenFor          = 30 * time.Second

	// Menu image reader (OpenAI, Gemini, Anthropic)
	VisionOperationTimeout = 50 * time.Second
	VisionOpenFor          = 45 * time.Second

	// Logo suggest API
	LogoOperationTimeout = 5 * time.Second
	LogoOpenFor          = 20 * time.Second

	// Health
	HealthTimeoutDefault = 5 * time.Second

	// Scan cache
	CacheCleanupInterval = 5 * time.Minute

	// Config watcher
	ConfigWatcherIntervalDefault = 2 * time.Second

	// HTTP server
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 90 * time.Second

	// App shutdown
	GracefulShutdownTimeoutDefault = 10 * time.Second
)
