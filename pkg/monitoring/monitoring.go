// Package monitoring builds the admin listener: Prometheus exposition, a JSON
// runtime snapshot for humans and, when enabled, pprof.
package monitoring

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/pprof"
	"time"

	pp "net/http/pprof"
)

// CostMetrics summarizes model spend for the runtime snapshot.
type CostMetrics struct {
	Provider         string  `json:"provider"`
	TotalRequests    int     `json:"total_requests"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	CostPerScanUSD   float64 `json:"cost_per_scan_usd"`
}

// AdminConfig selects what the admin mux serves.
type AdminConfig struct {
	MetricsPath string             // default /metrics
	Metrics     http.Handler       // nil disables the exposition endpoint
	Profiling   bool               // mount /debug/pprof/
	Costs       func() CostMetrics // nil leaves costs out of /runtime.json
}

// NewAdminMux returns the mux served on the admin port.
func NewAdminMux(cfg AdminConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, cfg.Metrics)
	}
	mux.Handle("/runtime.json", RuntimeHandler(cfg.Costs))
	EnableProfiling(cfg.Profiling)
	if cfg.Profiling {
		RegisterPprof(mux)
	}
	return mux
}

// RuntimeHandler exposes goroutine, memory and model cost figures as JSON.
func RuntimeHandler(costs func() CostMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		resp := map[string]interface{}{
			"time":             time.Now().Format(time.RFC3339),
			"goroutines":       runtime.NumGoroutine(),
			"mem_alloc_bytes":  ms.Alloc,
			"heap_inuse_bytes": ms.HeapInuse,
			"gc_num":           ms.NumGC,
		}
		if costs != nil {
			resp["ai"] = costs()
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// RegisterPprof registers the standard pprof handlers under /debug/pprof/.
func RegisterPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pp.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pp.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pp.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pp.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pp.Trace)
	mux.Handle("/debug/pprof/goroutine", pp.Handler("goroutine"))
	mux.Handle("/debug/pprof/heap", pp.Handler("heap"))
	mux.Handle("/debug/pprof/block", pp.Handler("block"))
	mux.Handle("/debug/pprof/mutex", pp.Handler("mutex"))
}

// EnableProfiling toggles block and mutex sampling.
func EnableProfiling(enabled bool) {
	if enabled {
		runtime.SetBlockProfileRate(1)
		// roughly 1 in 5 contention events
		runtime.SetMutexProfileFraction(5)
		_ = pprof.Lookup("block")
		_ = pprof.Lookup("mutex")
	} else {
		runtime.SetBlockProfileRate(0)
		runtime.SetMutexProfileFraction(0)
	}
}
