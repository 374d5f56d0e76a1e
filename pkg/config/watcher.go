package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"menu-allergen-scanner/pkg/metrics"
)

// Change describes a configuration update event.
// Only a subset of fields may have changed; see Fields for the list of keys.
type Change struct {
	Old      *Config
	New      *Config
	Matching MatchingSettings
	Fields   []string
	Err      error
}

// Subscriber channel buffer size; small to apply back-pressure if receivers are slow.
const subBuf = 4

// Watcher periodically reloads configuration from the environment, an optional
// .env file named by CONFIG_FILE, and the YAML file named by MATCHING_CONFIG_FILE.
// Files are re-read only when their mtime moves forward.
type Watcher struct {
	mu       sync.RWMutex
	cur      *Config
	matching MatchingSettings
	closed   bool
	intv     time.Duration
	subs     []chan Change
	cancel   context.CancelFunc

	envFile    string
	envMTime   time.Time
	matchMTime time.Time
	load       func() *Config
	reg        *metrics.Registry
}

// NewWatcher loads the initial configuration. A nil reg uses metrics.Default.
func NewWatcher(interval time.Duration, reg *metrics.Registry) (*Watcher, error) {
	return newWatcher(interval, reg, Load)
}

func newWatcher(interval time.Duration, reg *metrics.Registry, load func() *Config) (*Watcher, error) {
	if reg == nil {
		reg = metrics.Default
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &Watcher{
		intv:    interval,
		envFile: strings.TrimSpace(os.Getenv("CONFIG_FILE")),
		load:    load,
		reg:     reg,
	}
	w.reloadEnvFile()
	w.cur = load()
	m, err := w.readMatching(w.cur, true)
	if err != nil {
		return nil, err
	}
	w.matching = m
	return w, nil
}

// Current returns the latest valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Matching returns the latest valid matching settings.
func (w *Watcher) Matching() MatchingSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.matching
}

// Subscribe returns a channel to receive Change notifications.
// Caller should drain the channel until it is closed.
func (w *Watcher) Subscribe() <-chan Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Change, subBuf)
	w.subs = append(w.subs, ch)
	return ch
}

// Close stops the watcher and closes subscriber channels.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	for _, s := range w.subs {
		close(s)
	}
	w.subs = nil
}

// Start begins polling in a goroutine. It is safe to call once.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.cancel != nil || w.closed {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	t := time.NewTicker(w.intv)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.checkOnce()
		}
	}
}

// reloadEnvFile overlays CONFIG_FILE onto the process environment when it changed.
func (w *Watcher) reloadEnvFile() {
	if w.envFile == "" {
		return
	}
	fi, err := os.Stat(w.envFile)
	if err != nil || !fi.ModTime().After(w.envMTime) {
		return
	}
	if err := godotenv.Overload(w.envFile); err == nil {
		w.envMTime = fi.ModTime()
	}
}

// readMatching returns the env settings, overlaid by the YAML file when set.
// With force false an unchanged file keeps the current settings.
func (w *Watcher) readMatching(cfg *Config, force bool) (MatchingSettings, error) {
	base := cfg.Matching()
	if cfg.MatchingFile == "" {
		return base, nil
	}
	fi, err := os.Stat(cfg.MatchingFile)
	if err != nil {
		return base, fmt.Errorf("stat matching file: %w", err)
	}
	if !force && !fi.ModTime().After(w.matchMTime) {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.matching, nil
	}
	m, err := LoadMatching(cfg.MatchingFile, base)
	if err != nil {
		return base, err
	}
	w.matchMTime = fi.ModTime()
	return m, nil
}

func (w *Watcher) checkOnce() {
	w.reloadEnvFile()

	old := w.Current()
	newCfg := w.load()
	if err := newCfg.Validate(); err != nil {
		w.reg.ConfigReloads.WithLabelValues("invalid").Inc()
		w.notify(Change{Old: old, New: newCfg, Err: fmt.Errorf("invalid config: %w", err)})
		return
	}

	// env threshold changes must re-apply the file on top of them
	force := old == nil || old.MatchNameThreshold != newCfg.MatchNameThreshold ||
		old.MatchDistanceMeters != newCfg.MatchDistanceMeters || old.MatchingFile != newCfg.MatchingFile ||
		old.Logo.MinNameTier != newCfg.Logo.MinNameTier
	matching, err := w.readMatching(newCfg, force)
	if err != nil {
		w.reg.ConfigReloads.WithLabelValues("invalid").Inc()
		w.notify(Change{Old: old, New: newCfg, Err: fmt.Errorf("invalid matching file: %w", err)})
		return
	}

	fields := diffKeys(old, newCfg)
	if matching != w.Matching() {
		fields = append(fields, "Matching")
	}
	if len(fields) == 0 {
		return
	}

	w.reg.ConfigReloads.WithLabelValues("applied").Inc()
	w.mu.Lock()
	w.cur = newCfg
	w.matching = matching
	w.mu.Unlock()
	w.notify(Change{Old: old, New: newCfg, Matching: matching, Fields: fields})
}

func (w *Watcher) notify(chg Change) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.subs {
		select {
		case s <- chg:
		default:
			// drop if slow; keep system moving
		}
	}
}

func diffKeys(a, b *Config) []string {
	if a == nil || b == nil {
		return []string{"all"}
	}
	var f []string
	appendIf := func(cond bool, name string) {
		if cond {
			f = append(f, name)
		}
	}
	appendIf(a.LogLevel != b.LogLevel, "LogLevel")
	appendIf(a.LogFormat != b.LogFormat, "LogFormat")
	appendIf(a.AIProvider != b.AIProvider, "AIProvider")
	appendIf(a.OpenAI.Model != b.OpenAI.Model || a.Gemini.Model != b.Gemini.Model || a.Anthropic.Model != b.Anthropic.Model, "AIModel")
	appendIf(a.CacheTTL != b.CacheTTL, "CacheTTL")
	appendIf(a.MaxImageBytes != b.MaxImageBytes, "MaxImageBytes")
	appendIf(a.MetricsEnabled != b.MetricsEnabled || a.MetricsPath != b.MetricsPath, "Metrics")
	return f
}
