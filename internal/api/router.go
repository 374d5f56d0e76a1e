// Package api is the HTTP surface the mobile app talks to.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/places"
	"menu-allergen-scanner/internal/vision"
	"menu-allergen-scanner/pkg/config"
	"menu-allergen-scanner/pkg/health"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
)

// MenuAnalyzer reads menu photos.
type MenuAnalyzer interface {
	Analyze(ctx context.Context, req vision.Request) (*models.MenuAnalysis, error)
}

// PlaceFinder searches places and resolves restaurants against them.
type PlaceFinder interface {
	Search(ctx context.Context, q places.Query) ([]models.Place, error)
	Resolve(ctx context.Context, target models.Place, gate matching.RestaurantGate) (*models.PlaceLookup, error)
}

// LogoFinder looks up restaurant logos.
type LogoFinder interface {
	Lookup(ctx context.Context, name, website string, minTier int) (*models.LogoLookup, error)
}

// Settings exposes the live configuration; *config.Watcher implements it.
type Settings interface {
	Current() *config.Config
	Matching() config.MatchingSettings
}

// Deps are the collaborators of the router. Health and Metrics are optional.
type Deps struct {
	Analyzer MenuAnalyzer
	Places   PlaceFinder
	Logo     LogoFinder
	Settings Settings
	Health   *health.Handler
	Metrics  *metrics.Registry
	Logger   *logging.Logger
}

const requestIDHeader = "X-Request-ID"

type server struct {
	Deps
	log *logging.ComponentLogger
}

// NewRouter builds the public router.
func NewRouter(d Deps) *mux.Router {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	s := &server{Deps: d, log: d.Logger.WithComponent("api")}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.accessLog, s.recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/menu/scan", s.handleScan).Methods(http.MethodPost)
	api.HandleFunc("/menu/match", s.handleMenuMatch).Methods(http.MethodPost)
	api.HandleFunc("/menu/similarity", s.handleSimilarity).Methods(http.MethodPost)
	api.HandleFunc("/places/search", s.handlePlacesSearch).Methods(http.MethodGet)
	api.HandleFunc("/restaurants/resolve", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/logo", s.handleLogo).Methods(http.MethodGet)

	if d.Health != nil {
		d.Health.Register(r)
	}
	// router middleware does not run for unmatched routes
	r.NotFoundHandler = requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Kind: "not_found", Message: "no such route"}, RequestID: logging.RequestID(r.Context())})
	}))
	return r
}

// requestIDMiddleware keeps a sane incoming X-Request-ID or mints one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.WithContext(r.Context()).Info("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", sw.status),
			logging.Duration("duration", time.Since(start)))
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.WithContext(r.Context()).Error("handler panic", nil, logging.Any("panic", v))
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error:     errorDetail{Kind: "internal", Message: "internal error"},
					RequestID: logging.RequestID(r.Context()),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// gate returns the live restaurant gate.
func (s *server) gate() matching.RestaurantGate {
	m := s.Settings.Matching()
	return matching.RestaurantGate{
		MinNameSimilarity: m.Restaurant.MinNameSimilarity,
		MaxDistanceMeters: m.Restaurant.MaxDistanceMeters,
	}
}
