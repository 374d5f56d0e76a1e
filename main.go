package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"menu-allergen-scanner/internal/api"
	"menu-allergen-scanner/internal/cache"
	"menu-allergen-scanner/internal/constants"
	"menu-allergen-scanner/internal/logo"
	"menu-allergen-scanner/internal/places"
	"menu-allergen-scanner/internal/prompts"
	"menu-allergen-scanner/internal/vision"
	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/config"
	"menu-allergen-scanner/pkg/container"
	"menu-allergen-scanner/pkg/health"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
	"menu-allergen-scanner/pkg/monitoring"
)

// upstreams holds one breaker per external dependency.
type upstreams struct {
	places *circuit.Breaker
	vision *circuit.Breaker
	logo   *circuit.Breaker
}

// liveFields are picked up by handlers on the next request; the rest need a restart.
var liveFields = map[string]bool{"Matching": true, "MaxImageBytes": true}

func main() {
	reg := metrics.Default

	interval := time.Duration(config.Load().ConfigReloadIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = constants.ConfigWatcherIntervalDefault
	}
	watcher, err := config.NewWatcher(interval, reg)
	if err != nil {
		log.Fatal("config: ", err)
	}
	cfg := watcher.Current()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config: ", err)
	}

	logger, err := logging.NewLogger(logConfig(cfg))
	if err != nil {
		log.Fatal("logger: ", err)
	}
	logger.Info("starting menu allergen scanner", logging.Any("config", cfg.GetConfigSummary()))

	c := buildContainer(watcher, logger, reg)
	analyzer := mustResolve[*vision.Analyzer](c, logger)
	placesClient := mustResolve[*places.Client](c, logger)
	logoClient := mustResolve[*logo.Client](c, logger)
	hm := mustResolve[*health.HealthManager](c, logger)

	router := api.NewRouter(api.Deps{
		Analyzer: analyzer,
		Places:   placesClient,
		Logo:     logoClient,
		Settings: watcher,
		Health:   health.NewHandler(hm, logger),
		Metrics:  reg,
		Logger:   logger,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		WriteTimeout:      constants.WriteTimeout,
	}

	var adminServer *http.Server
	if cfg.MetricsEnabled || cfg.ProfilingEnabled {
		var exposition http.Handler
		if cfg.MetricsEnabled {
			exposition = reg.Handler()
		}
		adminMux := monitoring.NewAdminMux(monitoring.AdminConfig{
			MetricsPath: cfg.MetricsPath,
			Metrics:     exposition,
			Profiling:   cfg.ProfilingEnabled,
			Costs: func() monitoring.CostMetrics {
				st := analyzer.CostStats()
				var perScan float64
				if st.TotalRequests > 0 {
					perScan = st.EstimatedCostUSD / float64(st.TotalRequests)
				}
				return monitoring.CostMetrics{
					Provider:         analyzer.Provider(),
					TotalRequests:    st.TotalRequests,
					TotalTokens:      st.TotalTokens,
					EstimatedCostUSD: st.EstimatedCostUSD,
					CostPerScanUSD:   perScan,
				}
			},
		})
		adminServer = &http.Server{Addr: ":" + cfg.AdminPort, Handler: adminMux, ReadHeaderTimeout: constants.ReadHeaderTimeout}
		go func() {
			logger.Info("admin server starting", logging.String("port", cfg.AdminPort))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server failed", err)
			}
		}()
	}

	changes := watcher.Subscribe()
	watcher.Start()
	go applyChanges(changes, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", logging.String("port", cfg.Port), logging.String("ai_provider", analyzer.Provider()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown", err)
		}
	}
	watcher.Close()
	if err := c.Close(); err != nil {
		logger.Error("closing resources", err)
	}
	logger.Info("shutdown complete")
	_ = logger.Close()
}

func logConfig(cfg *config.Config) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	if cfg.EnableFileLogging {
		lc.Output = "file"
		lc.FilePath = cfg.LogFile
	}
	return lc
}

func mustResolve[T any](c *container.Container, logger *logging.Logger) T {
	v, err := container.Resolve[T](c)
	if err != nil {
		logger.Fatal("wiring failed", err)
	}
	return v
}

// buildContainer registers every long-lived component. Nothing is built
// until it is resolved.
func buildContainer(w *config.Watcher, logger *logging.Logger, reg *metrics.Registry) *container.Container {
	c := container.New()
	cfg := w.Current()
	_ = container.Value(c, logger)
	_ = container.Value(c, reg)

	_ = container.Provide(c, func(c *container.Container) (cache.Cache, error) {
		cc, err := cache.New(cfg, reg)
		if err != nil {
			return nil, err
		}
		c.OnClose(cc.Close)
		return cc, nil
	})
	_ = container.Provide(c, func(*container.Container) (*upstreams, error) {
		return newUpstreams(cfg, logger, reg), nil
	})
	_ = container.Provide(c, func(*container.Container) (*prompts.Manager, error) {
		return prompts.NewManager(cfg.PromptDir)
	})

	_ = container.Provide(c, func(c *container.Container) (*vision.Analyzer, error) {
		reader, err := vision.NewReader(cfg)
		if err != nil {
			return nil, err
		}
		pm, err := container.Resolve[*prompts.Manager](c)
		if err != nil {
			return nil, err
		}
		cc, err := container.Resolve[cache.Cache](c)
		if err != nil {
			return nil, err
		}
		return vision.NewAnalyzer(reader, pm, vision.Options{
			Cache:    cc,
			CacheTTL: cfg.CacheTTL,
			Breaker:  container.MustResolve[*upstreams](c).vision,
			Registry: reg,
			Logger:   logger,
		}), nil
	})
	_ = container.Provide(c, func(c *container.Container) (*places.Client, error) {
		return places.NewClient(cfg.Places, container.MustResolve[*upstreams](c).places, reg, logger)
	})
	_ = container.Provide(c, func(c *container.Container) (*logo.Client, error) {
		cc, err := container.Resolve[cache.Cache](c)
		if err != nil {
			return nil, err
		}
		return logo.NewClient(cfg.Logo, logo.Options{
			Cache:    cc,
			CacheTTL: cfg.CacheTTL,
			Breaker:  container.MustResolve[*upstreams](c).logo,
			Registry: reg,
			Logger:   logger,
		})
	})

	_ = container.Provide(c, func(c *container.Container) (*health.HealthManager, error) {
		hc := health.DefaultHealthConfig()
		hc.Timeout = constants.HealthTimeoutDefault
		hm := health.NewHealthManager(hc, logger)

		cc, err := container.Resolve[cache.Cache](c)
		if err != nil {
			return nil, err
		}
		hm.RegisterCritical(health.NewPingHealthChecker("cache_"+cc.Name(), cc.Ping))
		up := container.MustResolve[*upstreams](c)
		for _, b := range []*circuit.Breaker{up.places, up.vision, up.logo} {
			hm.RegisterChecker(health.NewBreakerHealthChecker(b))
		}
		for i, u := range cfg.HealthProbeURLs {
			hm.RegisterChecker(health.NewHTTPHealthChecker(u, fmt.Sprintf("probe_%d", i+1), constants.HealthTimeoutDefault))
		}
		return hm, nil
	})
	return c
}

func newUpstreams(cfg *config.Config, logger *logging.Logger, reg *metrics.Registry) *upstreams {
	visionTimeout := constants.VisionOperationTimeout
	if cfg.AITimeout > 0 {
		visionTimeout = cfg.AITimeout
	}
	return &upstreams{
		places: circuit.New(circuit.Config{
			Name:              "google_places",
			OperationTimeout:  constants.PlacesOperationTimeout,
			OpenFor:           constants.PlacesOpenFor,
			MaxConsecFailures: constants.CircuitMaxConsecFailures,
			MinRequests:       constants.CircuitMinRequests,
			FailureRate:       constants.CircuitFailureRate,
		}, logger, reg),
		vision: circuit.New(circuit.Config{
			Name:              "vision_" + cfg.AIProvider,
			OperationTimeout:  visionTimeout,
			OpenFor:           constants.VisionOpenFor,
			MaxConsecFailures: constants.VisionCircuitMaxConsecFailures,
			MinRequests:       constants.CircuitMinRequests,
			FailureRate:       constants.VisionCircuitFailureRate,
		}, logger, reg),
		logo: circuit.New(circuit.Config{
			Name:              "logo",
			OperationTimeout:  constants.LogoOperationTimeout,
			OpenFor:           constants.LogoOpenFor,
			MaxConsecFailures: constants.CircuitMaxConsecFailures,
			MinRequests:       constants.CircuitMinRequests,
			FailureRate:       constants.CircuitFailureRate,
		}, logger, reg),
	}
}

func applyChanges(changes <-chan config.Change, logger *logging.Logger) {
	cl := logger.WithComponent("config")
	for chg := range changes {
		if chg.Err != nil {
			cl.Warn("config reload rejected", logging.String("error", chg.Err.Error()))
			continue
		}
		var restart []string
		for _, f := range chg.Fields {
			if !liveFields[f] {
				restart = append(restart, f)
			}
		}
		cl.Info("config applied", logging.Any("fields", chg.Fields), logging.Any("matching", chg.Matching))
		if len(restart) > 0 {
			cl.Warn("changed fields take effect after restart", logging.Any("fields", restart))
		}
	}
}
