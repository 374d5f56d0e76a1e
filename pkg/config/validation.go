package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	errs "menu-allergen-scanner/pkg/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ConfigValidator handles configuration validation
type ConfigValidator struct {
	errors []ValidationError
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ValidationError, 0),
	}
}

// AddError adds a validation error
func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// GetErrors returns all validation errors
func (cv *ConfigValidator) GetErrors() []ValidationError {
	return cv.errors
}

// Fields lists the offending keys in the order they were reported, without duplicates.
func (cv *ConfigValidator) Fields() []string {
	seen := make(map[string]bool, len(cv.errors))
	var out []string
	for _, e := range cv.errors {
		if !seen[e.Field] {
			seen[e.Field] = true
			out = append(out, e.Field)
		}
	}
	return out
}

// GetErrorsAsString returns all validation errors as a formatted string
func (cv *ConfigValidator) GetErrorsAsString() string {
	var errorStrings []string
	for _, err := range cv.errors {
		errorStrings = append(errorStrings, err.Error())
	}
	return strings.Join(errorStrings, "\n")
}

// Validate validates the entire configuration. The returned error is a
// *errors.ConfigError whose Key lists every offending variable.
func (c *Config) Validate() error {
	validator := NewConfigValidator()

	c.validateRequired(validator)
	c.validateFormats(validator)
	c.validateRanges(validator)
	c.validateEnvironment(validator)

	if validator.HasErrors() {
		return errs.NewConfig("config.Validate", strings.Join(validator.Fields(), ","),
			fmt.Sprintf("configuration validation failed:\n%s", validator.GetErrorsAsString()))
	}

	return nil
}

// AIKeyName returns the env var holding the key of the selected AI provider.
func (c *Config) AIKeyName() string {
	switch c.AIProvider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (c *Config) aiKey() string {
	switch c.AIProvider {
	case ProviderGemini:
		return c.Gemini.APIKey
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	default:
		return c.OpenAI.APIKey
	}
}

// validateRequired checks required configuration fields
func (c *Config) validateRequired(validator *ConfigValidator) {
	if c.Places.APIKey == "" {
		validator.AddError("GOOGLE_MAPS_API_KEY", "", "Google Maps API key is required")
	}

	// Only the selected provider needs a key
	if c.aiKey() == "" {
		validator.AddError(c.AIKeyName(), "", fmt.Sprintf("%s API key is required", c.AIProvider))
	}

	if c.Port == "" {
		validator.AddError("PORT", c.Port, "port is required")
	}

	if c.CacheBackend == CacheRedis && c.Redis.Addr == "" {
		validator.AddError("REDIS_ADDR", "", "redis address is required when CACHE_BACKEND=redis")
	}
}

// validateFormats checks format validity of configuration values
func (c *Config) validateFormats(validator *ConfigValidator) {
	if c.Port != "" && !validPort(c.Port) {
		validator.AddError("PORT", c.Port, "invalid port number (must be 1-65535)")
	}

	if c.AdminPort != "" && !validPort(c.AdminPort) {
		validator.AddError("ADMIN_PORT", c.AdminPort, "invalid admin port number")
	}

	switch c.AIProvider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		validator.AddError("AI_PROVIDER", c.AIProvider, "invalid AI provider (must be one of: openai, gemini, anthropic)")
	}

	switch c.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		validator.AddError("CACHE_BACKEND", c.CacheBackend, "invalid cache backend (must be 'memory' or 'redis')")
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		validator.AddError("LOG_LEVEL", c.LogLevel, "invalid log level (must be one of: trace, debug, info, warn, error, fatal)")
	}

	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		validator.AddError("LOG_FORMAT", c.LogFormat, "invalid log format (must be 'json' or 'text')")
	}

	if c.Logo.BaseURL != "" && !strings.HasPrefix(c.Logo.BaseURL, "http://") && !strings.HasPrefix(c.Logo.BaseURL, "https://") {
		validator.AddError("LOGO_API_BASE_URL", c.Logo.BaseURL, "logo API base URL must be http(s)")
	}
}

// validateRanges checks value ranges
func (c *Config) validateRanges(validator *ConfigValidator) {
	if math.IsNaN(c.MatchNameThreshold) || c.MatchNameThreshold < 0 || c.MatchNameThreshold > 1 {
		validator.AddError("MATCH_NAME_THRESHOLD", fmtFloat(c.MatchNameThreshold), "name threshold must be between 0 and 1")
	}

	if math.IsNaN(c.MatchDistanceMeters) || c.MatchDistanceMeters < 0 {
		validator.AddError("MATCH_MAX_DISTANCE_METERS", fmtFloat(c.MatchDistanceMeters), "max distance must be non-negative")
	}

	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		validator.AddError("OPENAI_TEMPERATURE", fmtFloat(c.OpenAI.Temperature), "temperature must be between 0 and 2")
	}

	if c.MaxImageBytes < 1 {
		validator.AddError("MAX_IMAGE_BYTES", strconv.FormatInt(c.MaxImageBytes, 10), "max image size must be positive")
	}

	if c.CacheMaxSize < 1 {
		validator.AddError("CACHE_MAX_SIZE", strconv.Itoa(c.CacheMaxSize), "cache size must be positive")
	}

	if c.Logo.MinNameTier < 0 || c.Logo.MinNameTier > 100 {
		validator.AddError("LOGO_MIN_NAME_TIER", strconv.Itoa(c.Logo.MinNameTier), "logo name tier must be between 0 and 100")
	}

	if c.ConfigReloadIntervalSeconds < 1 {
		validator.AddError("CONFIG_RELOAD_INTERVAL_SECONDS", strconv.Itoa(c.ConfigReloadIntervalSeconds), "reload interval must be at least 1 second")
	}
}

// validateEnvironment performs environment-specific validation
func (c *Config) validateEnvironment(validator *ConfigValidator) {
	if c.EnableFileLogging && c.LogFile != "" {
		if err := checkDirectoryWritable(c.LogFile); err != nil {
			validator.AddError("LOG_FILE", c.LogFile, fmt.Sprintf("log directory is not writable: %v", err))
		}
	}

	if c.MatchingFile != "" {
		if _, err := os.Stat(c.MatchingFile); err != nil {
			validator.AddError("MATCHING_CONFIG_FILE", c.MatchingFile, fmt.Sprintf("matching file is not readable: %v", err))
		}
	}

	if c.PromptDir != "" {
		if info, err := os.Stat(c.PromptDir); err != nil || !info.IsDir() {
			validator.AddError("PROMPT_DIR", c.PromptDir, "prompt directory is not readable")
		}
	}

	if c.Port != "" && c.Port == c.AdminPort {
		validator.AddError("ADMIN_PORT", c.AdminPort, "port conflict with PORT")
	}
}

// checkDirectoryWritable checks if the directory of filePath is writable
func checkDirectoryWritable(filePath string) error {
	dir := filepath.Dir(filePath)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.NewValidation("config.checkDirectoryWritable", "cannot create directory", err)
		}
	}

	tempFile := filepath.Join(dir, fmt.Sprintf(".write_test_%d", os.Getpid()))
	file, err := os.Create(tempFile)
	if err != nil {
		return errs.NewValidation("config.checkDirectoryWritable", "directory is not writable", err)
	}
	file.Close()
	os.Remove(tempFile)

	return nil
}

func validPort(p string) bool {
	port, err := strconv.Atoi(p)
	return err == nil && port >= 1 && port <= 65535
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfigSummary returns a summary of the configuration (excluding sensitive data)
func (c *Config) GetConfigSummary() map[string]interface{} {
	return map[string]interface{}{
		"port":                  c.Port,
		"env":                   c.Env,
		"ai_provider":           c.AIProvider,
		"ai_api_key":            maskString(c.aiKey(), 6),
		"google_maps_api_key":   maskString(c.Places.APIKey, 6),
		"logo_api_base_url":     c.Logo.BaseURL,
		"cache_backend":         c.CacheBackend,
		"match_name_threshold":  c.MatchNameThreshold,
		"match_distance_meters": c.MatchDistanceMeters,
		"matching_file":         c.MatchingFile,
		"log_level":             c.LogLevel,
		"log_format":            c.LogFormat,
		"metrics_enabled":       c.MetricsEnabled,
		"profiling_enabled":     c.ProfilingEnabled,
	}
}

// maskString masks sensitive strings for logging/display
func maskString(s string, keepFirst int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepFirst {
		return strings.Repeat("*", len(s))
	}
	return s[:keepFirst] + strings.Repeat("*", len(s)-keepFirst)
}
