package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/metrics"
)

var errUpstream = errors.New("upstream down")

func fail(context.Context) error { return errUpstream }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	reg := metrics.NewRegistry()
	b := New(Config{Name: "places", MaxConsecFailures: 2, OpenFor: time.Minute}, nil, reg)

	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), fail, nil); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v, want upstream error", i, err)
		}
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(context.Background(), func(context.Context) error { called = true; return nil }, nil)
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("op ran while breaker was open")
	}
	if got := testutil.ToFloat64(reg.BreakerState.WithLabelValues("places")); got != float64(Open) {
		t.Errorf("state gauge = %v, want %v", got, float64(Open))
	}
}

func TestBreaker_FallbackReceivesCause(t *testing.T) {
	b := New(Config{Name: "logo", MaxConsecFailures: 1, OpenFor: time.Minute}, nil, metrics.NewRegistry())
	_ = b.Do(context.Background(), fail, nil)

	var cause error
	err := b.Do(context.Background(), fail, func(_ context.Context, c error) error {
		cause = c
		return nil
	})
	if err != nil {
		t.Errorf("fallback result should be returned, got %v", err)
	}
	if !errors.Is(cause, ErrOpen) {
		t.Errorf("cause = %v, want ErrOpen", cause)
	}
}

func TestBreaker_ValidationErrorsDoNotTrip(t *testing.T) {
	b := New(Config{Name: "ai", MaxConsecFailures: 1, OpenFor: time.Minute}, nil, metrics.NewRegistry())
	bad := func(context.Context) error { return errs.NewValidation("test", "bad image", nil) }
	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), bad, nil)
	}
	if b.State() != Closed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_OperationTimeout(t *testing.T) {
	b := New(Config{Name: "slow", OperationTimeout: 10 * time.Millisecond}, nil, metrics.NewRegistry())
	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestBreaker_FailureRate(t *testing.T) {
	b := New(Config{Name: "rate", MinRequests: 4, FailureRate: 0.5, OpenFor: time.Minute}, nil, metrics.NewRegistry())
	ok := func(context.Context) error { return nil }
	_ = b.Do(context.Background(), ok, nil)
	_ = b.Do(context.Background(), fail, nil)
	_ = b.Do(context.Background(), ok, nil)
	if b.State() != Closed {
		t.Fatalf("opened before MinRequests")
	}
	_ = b.Do(context.Background(), fail, nil)
	if b.State() != Open {
		t.Errorf("state = %v, want open at 50%% failures", b.State())
	}
}
