package circuit

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
)

// State mirrors gobreaker's states so callers need not import it.
type State int

const (
	Closed   State = State(gobreaker.StateClosed)
	HalfOpen State = State(gobreaker.StateHalfOpen)
	Open     State = State(gobreaker.StateOpen)
)

func (s State) String() string { return gobreaker.State(s).String() }

// Config tunes a circuit breaker instance.
type Config struct {
	Name string

	OperationTimeout    time.Duration // per-call timeout
	OpenFor             time.Duration // how long to stay open before probing
	Interval            time.Duration // closed-state counter reset period, 0 keeps counts
	MaxConsecFailures   uint32        // consecutive failures to open
	MinRequests         uint32        // calls needed before FailureRate applies
	FailureRate         float64       // 0..1 fraction to open
	HalfOpenMaxInFlight uint32        // probes allowed while half-open
}

// ErrOpen indicates the breaker is open and calls are short-circuited.
var ErrOpen = errors.New("circuit open")

type Breaker struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker
	log *logging.Logger
	reg *metrics.Registry
}

// New builds a breaker reporting its state to reg. A nil reg uses metrics.Default.
func New(cfg Config, log *logging.Logger, reg *metrics.Registry) *Breaker {
	if cfg.HalfOpenMaxInFlight == 0 {
		cfg.HalfOpenMaxInFlight = 1
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if reg == nil {
		reg = metrics.Default
	}
	b := &Breaker{cfg: cfg, log: log, reg: reg}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenMaxInFlight,
		Interval:      cfg.Interval,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   b.readyToTrip,
		OnStateChange: b.onStateChange,
		IsSuccessful:  countsAsSuccess,
	})
	reg.BreakerState.WithLabelValues(cfg.Name).Set(float64(Closed))
	return b
}

func (b *Breaker) readyToTrip(c gobreaker.Counts) bool {
	if b.cfg.MaxConsecFailures > 0 && c.ConsecutiveFailures >= b.cfg.MaxConsecFailures {
		return true
	}
	if b.cfg.FailureRate > 0 && c.Requests >= b.cfg.MinRequests {
		return float64(c.TotalFailures)/float64(c.Requests) >= b.cfg.FailureRate
	}
	return false
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	b.reg.BreakerState.WithLabelValues(name).Set(float64(to))
	if b.log != nil {
		b.log.WithComponent("circuit").Info("breaker state change",
			logging.String("name", name), logging.String("from", from.String()), logging.String("to", to.String()))
	}
}

// Caller mistakes and cancellations say nothing about upstream health.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errs.Is(err, errs.ErrValidation)
}

// State reports the current breaker state.
func (b *Breaker) State() State { return State(b.cb.State()) }

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Do runs op under breaker. If open, runs fallback if provided, otherwise returns ErrOpen.
// op should return error only; any outputs can be captured via closure vars.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error, fallback func(ctx context.Context, cause error) error) error {
	if b.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrOpen
	}
	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}
	return err
}
