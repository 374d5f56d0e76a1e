package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AI providers accepted by AI_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port string
	Env  string // development, staging, production

	// Logging
	LogLevel          string
	LogFormat         string // "json" or "text"
	LogFile           string
	EnableFileLogging bool

	// Menu image reader
	AIProvider string
	AITimeout  time.Duration
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Anthropic  AnthropicConfig

	// Upstreams
	Places PlacesConfig
	Logo   LogoConfig

	// Scan cache
	CacheBackend string
	CacheTTL     time.Duration
	CacheMaxSize int
	Redis        RedisConfig

	// Restaurant match gate. MatchingFile, when set, overrides both.
	MatchNameThreshold  float64
	MatchDistanceMeters float64
	MatchingFile        string

	// Request limits
	MaxImageBytes int64

	// Extra URLs the health manager GETs, from HEALTH_PROBE_URLS (comma separated)
	HealthProbeURLs []string

	// Prompt template overrides, read over the embedded set
	PromptDir string

	// Admin listener for /metrics, /runtime.json and pprof
	MetricsEnabled   bool
	MetricsPath      string
	AdminPort        string
	ProfilingEnabled bool

	ConfigReloadIntervalSeconds int
}

// OpenAIConfig configures the default menu reader.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // optional, for compatible gateways
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// PlacesConfig configures the Google Places text search client.
type PlacesConfig struct {
	APIKey        string
	RadiusMeters  uint
	Language      string
	Timeout       time.Duration
	MaxCandidates int
	FetchDetails  bool // look up the website of a resolved place
}

// LogoConfig configures the logo suggest API.
type LogoConfig struct {
	BaseURL       string // suggest endpoint, queried with ?query=
	ImageURL      string // direct logo endpoint, domain is appended
	APIKey        string // optional bearer token
	Timeout       time.Duration
	MinNameTier   int
	MaxSuggestion int
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func Load() *Config {
	env := strings.ToLower(getEnv("ENV", "development"))
	enableFileLogging, _ := strconv.ParseBool(getEnv("ENABLE_FILE_LOGGING", "false"))

	// Metrics default on outside production
	metricsDefault := env == "development" || env == "staging"
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", strconv.FormatBool(metricsDefault)))
	profilingEnabled, _ := strconv.ParseBool(getEnv("PROFILING_ENABLED", "false"))

	aiTimeoutSec, _ := strconv.Atoi(getEnv("AI_REQUEST_TIMEOUT_SECONDS", "60"))
	openAITemp, _ := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.1"), 64)
	openAIMaxTokens, _ := strconv.Atoi(getEnv("OPENAI_MAX_TOKENS", "2000"))
	anthropicMaxTokens, _ := strconv.Atoi(getEnv("ANTHROPIC_MAX_TOKENS", "2000"))

	placesRadius, _ := strconv.Atoi(getEnv("PLACES_RADIUS_METERS", "1000"))
	placesTimeoutSec, _ := strconv.Atoi(getEnv("PLACES_TIMEOUT_SECONDS", "12"))
	placesMax, _ := strconv.Atoi(getEnv("PLACES_MAX_CANDIDATES", "20"))
	placesDetails, _ := strconv.ParseBool(getEnv("PLACES_FETCH_DETAILS", "true"))

	logoTimeoutSec, _ := strconv.Atoi(getEnv("LOGO_TIMEOUT_SECONDS", "5"))
	logoMinTier, _ := strconv.Atoi(getEnv("LOGO_MIN_NAME_TIER", "70"))
	logoMax, _ := strconv.Atoi(getEnv("LOGO_MAX_SUGGESTIONS", "5"))

	cacheTTLSec, _ := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "3600"))
	cacheMaxSize, _ := strconv.Atoi(getEnv("CACHE_MAX_SIZE", "1000"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	nameThreshold, _ := strconv.ParseFloat(getEnv("MATCH_NAME_THRESHOLD", "0.4"), 64)
	distanceMeters, _ := strconv.ParseFloat(getEnv("MATCH_MAX_DISTANCE_METERS", "1000"), 64)

	maxImageBytes, _ := strconv.ParseInt(getEnv("MAX_IMAGE_BYTES", "10485760"), 10, 64)
	reloadIntSec, _ := strconv.Atoi(getEnv("CONFIG_RELOAD_INTERVAL_SECONDS", "2"))

	if placesRadius < 0 {
		placesRadius = 0
	}

	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  env,

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", "/var/log/menu-scanner/app.log"),
		EnableFileLogging: enableFileLogging,

		AIProvider: strings.ToLower(getEnv("AI_PROVIDER", ProviderOpenAI)),
		AITimeout:  time.Duration(aiTimeoutSec) * time.Second,
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: openAITemp,
			MaxTokens:   openAIMaxTokens,
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			Model:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens: anthropicMaxTokens,
		},

		Places: PlacesConfig{
			APIKey:        getEnv("GOOGLE_MAPS_API_KEY", ""),
			RadiusMeters:  uint(placesRadius),
			Language:      getEnv("PLACES_LANGUAGE", "en"),
			Timeout:       time.Duration(placesTimeoutSec) * time.Second,
			MaxCandidates: placesMax,
			FetchDetails:  placesDetails,
		},
		Logo: LogoConfig{
			BaseURL:       getEnv("LOGO_API_BASE_URL", "https://autocomplete.clearbit.com/v1/companies/suggest"),
			ImageURL:      getEnv("LOGO_IMAGE_BASE_URL", "https://logo.clearbit.com/"),
			APIKey:        getEnv("LOGO_API_KEY", ""),
			Timeout:       time.Duration(logoTimeoutSec) * time.Second,
			MinNameTier:   logoMinTier,
			MaxSuggestion: logoMax,
		},

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
		CacheTTL:     time.Duration(cacheTTLSec) * time.Second,
		CacheMaxSize: cacheMaxSize,
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "menuscan:"),
		},

		MatchNameThreshold:  nameThreshold,
		MatchDistanceMeters: distanceMeters,
		MatchingFile:        strings.TrimSpace(getEnv("MATCHING_CONFIG_FILE", "")),

		MaxImageBytes: maxImageBytes,

		HealthProbeURLs: splitList(getEnv("HEALTH_PROBE_URLS", "")),
		PromptDir:       strings.TrimSpace(getEnv("PROMPT_DIR", "")),

		MetricsEnabled:   metricsEnabled,
		MetricsPath:      getEnv("METRICS_PATH", "/metrics"),
		AdminPort:        getEnv("ADMIN_PORT", "9090"),
		ProfilingEnabled: profilingEnabled,

		ConfigReloadIntervalSeconds: reloadIntSec,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
