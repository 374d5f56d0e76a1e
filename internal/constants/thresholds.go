package constants

// Centralized threshold values used across the application.
// Keep these stable; change deliberately and document why.
// These are not configuration knobs; use pkg/config for env-driven settings.

const (
	// Circuit breaker trip conditions
	CircuitMaxConsecFailures       = 5
	CircuitMinRequests             = 10
	CircuitFailureRate             = 0.6 // default for external HTTP
	VisionCircuitFailureRate       = 0.5
	VisionCircuitMaxConsecFailures = 3

	// Request sizes
	MaxJSONBodyBytes = 1 << 20
	MaxMenuItems     = 200
	MaxUserAllergens = 50
)
