package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
)

func newManager(critical []HealthChecker, optional ...HealthChecker) *HealthManager {
	hm := NewHealthManager(HealthConfig{Timeout: time.Second, Version: "test"}, logging.Nop())
	for _, c := range critical {
		hm.RegisterCritical(c)
	}
	for _, c := range optional {
		hm.RegisterChecker(c)
	}
	return hm
}

func TestCheckAll_AggregatesStatus(t *testing.T) {
	ok := NewPingHealthChecker("cache", func(context.Context) error { return nil })
	down := NewPingHealthChecker("redis", func(context.Context) error { return errors.New("refused") })
	probe := NewPingHealthChecker("probe_1", func(context.Context) error { return errors.New("timeout") })

	tests := []struct {
		name      string
		critical  []HealthChecker
		optional  []HealthChecker
		want      HealthStatus
		wantReady bool
	}{
		{"no checkers", nil, nil, HealthStatusUnknown, true},
		{"all healthy", []HealthChecker{ok}, nil, HealthStatusHealthy, true},
		{"optional down degrades", []HealthChecker{ok}, []HealthChecker{probe}, HealthStatusDegraded, true},
		{"critical down", []HealthChecker{down}, []HealthChecker{ok}, HealthStatusUnhealthy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newManager(tt.critical, tt.optional...).CheckAll(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if got.Ready != tt.wantReady {
				t.Errorf("Ready = %v, want %v", got.Ready, tt.wantReady)
			}
			if n := len(tt.critical) + len(tt.optional); got.Summary.TotalComponents != n {
				t.Errorf("TotalComponents = %d, want %d", got.Summary.TotalComponents, n)
			}
		})
	}
}

func TestGetCachedHealth_BeforeFirstCheck(t *testing.T) {
	hm := newManager([]HealthChecker{NewPingHealthChecker("cache", func(context.Context) error { return nil })})
	got := hm.GetCachedHealth()
	if got.Status != HealthStatusUnknown || got.Summary.UnknownCount != 1 {
		t.Errorf("cached = %s unknown=%d", got.Status, got.Summary.UnknownCount)
	}
	if !got.Components["cache"].Critical {
		t.Error("cache should be marked critical")
	}

	hm.CheckAll(context.Background())
	if got := hm.GetCachedHealth().Status; got != HealthStatusHealthy {
		t.Errorf("after check = %s", got)
	}
}

func TestBreakerHealthChecker(t *testing.T) {
	b := circuit.New(circuit.Config{Name: "places", MaxConsecFailures: 1, OpenFor: time.Minute}, nil, metrics.NewRegistry())
	c := NewBreakerHealthChecker(b)
	if got := c.Check(context.Background()).Status; got != HealthStatusHealthy {
		t.Fatalf("closed breaker status = %s", got)
	}
	_ = b.Do(context.Background(), func(context.Context) error { return errors.New("down") }, nil)
	res := c.Check(context.Background())
	if res.Status != HealthStatusDegraded {
		t.Errorf("open breaker status = %s, want degraded", res.Status)
	}
	if res.Metadata["circuit"] != "open" {
		t.Errorf("circuit metadata = %v", res.Metadata["circuit"])
	}
}

func TestHTTPHealthChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if got := NewHTTPHealthChecker(srv.URL+"/up", "logo", time.Second).Check(context.Background()).Status; got != HealthStatusHealthy {
		t.Errorf("up status = %s", got)
	}
	if got := NewHTTPHealthChecker(srv.URL+"/down", "logo", time.Second).Check(context.Background()).Status; got != HealthStatusUnhealthy {
		t.Errorf("down status = %s", got)
	}
}

func TestHandler_Endpoints(t *testing.T) {
	down := NewPingHealthChecker("redis", func(context.Context) error { return errors.New("refused") })
	r := mux.NewRouter()
	NewHandler(newManager([]HealthChecker{down}), logging.Nop()).Register(r)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusServiceUnavailable},
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/health/components?cached=true", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Errorf("invalid json: %v", err)
			}
		})
	}
}
