// Package health aggregates component checks into a service report. Only a
// failing critical component (the scan cache) makes the service unhealthy and
// not ready; failing upstreams degrade it, since scans can still be served
// from cache and the matching endpoints need no upstream at all.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// ComponentHealth is the last result of one checker.
type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Critical    bool                   `json:"critical"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// SystemHealth is the service-wide report.
type SystemHealth struct {
	Status     HealthStatus               `json:"status"`
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

// HealthSummary counts components per status.
type HealthSummary struct {
	TotalComponents int `json:"total_components"`
	HealthyCount    int `json:"healthy_count"`
	DegradedCount   int `json:"degraded_count"`
	UnhealthyCount  int `json:"unhealthy_count"`
	UnknownCount    int `json:"unknown_count"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) ComponentHealth
	Name() string
}

type entry struct {
	checker  HealthChecker
	critical bool
	last     ComponentHealth
}

// HealthManager runs registered checkers and keeps their last results.
type HealthManager struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	startTime time.Time
	version   string
	timeout   time.Duration
	logger    *logging.ComponentLogger
}

// HealthConfig holds configuration for the health manager
type HealthConfig struct {
	Timeout time.Duration `json:"timeout"` // per checker
	Version string        `json:"version"`
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Timeout: 5 * time.Second,
		Version: "1.0.0",
	}
}

func NewHealthManager(config HealthConfig, logger *logging.Logger) *HealthManager {
	if logger == nil {
		logger = logging.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultHealthConfig().Timeout
	}
	return &HealthManager{
		entries:   make(map[string]*entry),
		startTime: time.Now(),
		version:   config.Version,
		timeout:   config.Timeout,
		logger:    logger.WithComponent("health"),
	}
}

// RegisterChecker adds an optional component; its failure only degrades the service.
func (hm *HealthManager) RegisterChecker(checker HealthChecker) { hm.register(checker, false) }

// RegisterCritical adds a component the service cannot serve without.
func (hm *HealthManager) RegisterCritical(checker HealthChecker) { hm.register(checker, true) }

func (hm *HealthManager) register(checker HealthChecker, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	name := checker.Name()
	hm.entries[name] = &entry{
		checker:  checker,
		critical: critical,
		last:     ComponentHealth{Name: name, Status: HealthStatusUnknown, Critical: critical},
	}
	hm.logger.Info("Registered health checker", logging.String("checker", name), logging.Bool("critical", critical))
}

// CheckAll runs every checker concurrently, each under its own timeout.
func (hm *HealthManager) CheckAll(ctx context.Context) SystemHealth {
	start := time.Now()

	hm.mu.RLock()
	names := make([]string, 0, len(hm.entries))
	checkers := make([]HealthChecker, 0, len(hm.entries))
	for name, e := range hm.entries {
		names = append(names, name)
		checkers = append(checkers, e.checker)
	}
	hm.mu.RUnlock()

	results := make([]ComponentHealth, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()
			results[i] = c.Check(checkCtx)
			return nil
		})
	}
	_ = g.Wait()

	hm.mu.Lock()
	for i, name := range names {
		if e, ok := hm.entries[name]; ok {
			results[i].Name = name
			results[i].Critical = e.critical
			e.last = results[i]
		}
	}
	hm.mu.Unlock()

	report := hm.GetCachedHealth()
	hm.logger.Debug("Completed health check",
		logging.String("status", string(report.Status)),
		logging.Duration("duration", time.Since(start)),
		logging.Int("components", len(report.Components)))
	return report
}

// GetCachedHealth builds the report from the last results without checking.
func (hm *HealthManager) GetCachedHealth() SystemHealth {
	hm.mu.RLock()
	components := make(map[string]ComponentHealth, len(hm.entries))
	for name, e := range hm.entries {
		components[name] = e.last
	}
	hm.mu.RUnlock()

	status, ready, summary := summarize(components)
	return SystemHealth{
		Status:     status,
		Ready:      ready,
		Timestamp:  time.Now(),
		Version:    hm.version,
		Uptime:     time.Since(hm.startTime),
		Components: components,
		Summary:    summary,
	}
}

// summarize folds component results into the service status. A critical
// failure is unhealthy; any other failure or degradation is degraded; all
// healthy is healthy; anything else, including no components, is unknown.
func summarize(components map[string]ComponentHealth) (HealthStatus, bool, HealthSummary) {
	s := HealthSummary{TotalComponents: len(components)}
	criticalDown, optionalDown := false, false
	for _, c := range components {
		switch c.Status {
		case HealthStatusHealthy:
			s.HealthyCount++
		case HealthStatusDegraded:
			s.DegradedCount++
		case HealthStatusUnhealthy:
			s.UnhealthyCount++
			if c.Critical {
				criticalDown = true
			} else {
				optionalDown = true
			}
		default:
			s.UnknownCount++
		}
	}

	switch {
	case criticalDown:
		return HealthStatusUnhealthy, false, s
	case optionalDown || s.DegradedCount > 0:
		return HealthStatusDegraded, true, s
	case s.TotalComponents > 0 && s.HealthyCount == s.TotalComponents:
		return HealthStatusHealthy, true, s
	default:
		return HealthStatusUnknown, true, s
	}
}

// PingHealthChecker wraps a ping style probe such as a cache round trip.
type PingHealthChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingHealthChecker(name string, ping func(ctx context.Context) error) *PingHealthChecker {
	return &PingHealthChecker{name: name, ping: ping}
}

func (p *PingHealthChecker) Name() string { return p.name }

func (p *PingHealthChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	result := ComponentHealth{Name: p.name, LastChecked: start, Status: HealthStatusHealthy, Message: "Ping successful"}
	if err := p.ping(ctx); err != nil {
		result.Status = HealthStatusUnhealthy
		result.Message = "Ping failed"
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// HTTPHealthChecker GETs a URL: 2xx is healthy, 5xx or no answer unhealthy,
// anything else degraded.
type HTTPHealthChecker struct {
	client *http.Client
	url    string
	name   string
}

func NewHTTPHealthChecker(url, name string, timeout time.Duration) *HTTPHealthChecker {
	return &HTTPHealthChecker{
		client: &http.Client{Timeout: timeout},
		url:    url,
		name:   name,
	}
}

func (hhc *HTTPHealthChecker) Name() string { return hhc.name }

func (hhc *HTTPHealthChecker) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	result := ComponentHealth{
		Name:        hhc.name,
		LastChecked: start,
		Metadata:    map[string]interface{}{"url": hhc.url},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hhc.url, nil)
	if err == nil {
		var resp *http.Response
		if resp, err = hhc.client.Do(req); err == nil {
			resp.Body.Close()
			result.Metadata["status_code"] = resp.StatusCode
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				result.Status = HealthStatusHealthy
			case resp.StatusCode >= 500:
				result.Status = HealthStatusUnhealthy
			default:
				result.Status = HealthStatusDegraded
			}
			result.Message = fmt.Sprintf("HTTP status %d", resp.StatusCode)
			result.Duration = time.Since(start)
			return result
		}
	}
	result.Status = HealthStatusUnhealthy
	result.Message = "HTTP request failed"
	result.Error = err.Error()
	result.Duration = time.Since(start)
	return result
}

// BreakerHealthChecker reports an upstream from its circuit breaker state
// without calling it.
type BreakerHealthChecker struct {
	breaker *circuit.Breaker
}

func NewBreakerHealthChecker(b *circuit.Breaker) *BreakerHealthChecker {
	return &BreakerHealthChecker{breaker: b}
}

func (bhc *BreakerHealthChecker) Name() string { return bhc.breaker.Name() }

func (bhc *BreakerHealthChecker) Check(ctx context.Context) ComponentHealth {
	st := bhc.breaker.State()
	result := ComponentHealth{
		Name:        bhc.breaker.Name(),
		LastChecked: time.Now(),
		Metadata:    map[string]interface{}{"circuit": st.String()},
	}
	switch st {
	case circuit.Closed:
		result.Status = HealthStatusHealthy
		result.Message = "Upstream calls succeeding"
	case circuit.HalfOpen:
		result.Status = HealthStatusDegraded
		result.Message = "Upstream recovering"
	default:
		result.Status = HealthStatusDegraded
		result.Message = "Upstream failing, calls short-circuited"
	}
	return result
}

// Handler exposes the manager over HTTP.
type Handler struct {
	manager *HealthManager
	logger  *logging.ComponentLogger
}

func NewHandler(manager *HealthManager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{manager: manager, logger: logger.WithComponent("health_http")}
}

// Register mounts /health, /health/live, /health/ready and /health/components.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", h.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.handleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/health/components", h.handleComponents).Methods(http.MethodGet)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode health response", logging.String("error", err.Error()))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.manager.CheckAll(r.Context())
	h.writeJSON(w, statusCode(report), report)
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.manager.startTime).String(),
	})
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := h.manager.CheckAll(r.Context())
	h.writeJSON(w, statusCode(report), map[string]interface{}{
		"status":     report.Status,
		"ready":      report.Ready,
		"timestamp":  report.Timestamp,
		"components": len(report.Components),
	})
}

// handleComponents serves the last results with ?cached=true, otherwise checks.
func (h *Handler) handleComponents(w http.ResponseWriter, r *http.Request) {
	var report SystemHealth
	if r.URL.Query().Get("cached") == "true" {
		report = h.manager.GetCachedHealth()
	} else {
		report = h.manager.CheckAll(r.Context())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"components": report.Components,
		"summary":    report.Summary,
		"timestamp":  report.Timestamp,
	})
}

func statusCode(report SystemHealth) int {
	if !report.Ready {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
