package retry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  10,
	}
	calls := 0

	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_ImmediateSuccess(t *testing.T) {
	b := DefaultBackoff()

	err := b.Do(context.Background(), func(_ int) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackoff_PermanentError(t *testing.T) {
	b := DefaultBackoff()
	calls := 0

	err := b.Do(context.Background(), func(_ int) error {
		calls++
		return Permanent(fmt.Errorf("fatal"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "fatal" {
		t.Errorf("expected 'fatal', got %q", err.Error())
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
}

func TestBackoff_MaxAttempts(t *testing.T) {
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  3,
	}
	calls := 0

	err := b.Do(context.Background(), func(_ int) error {
		calls++
		return fmt.Errorf("always fails")
	})

	if err == nil {
		t.Fatal("expected error after max attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{
		InitialDelay: 5 * time.Second,
		MaxAttempts:  100,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Do(ctx, func(_ int) error {
		return fmt.Errorf("fail")
	})

	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"not permanent", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := addJitter(d)
		lower := time.Duration(float64(d) * 0.74)
		upper := time.Duration(float64(d) * 1.26)
		if j < lower || j > upper {
			t.Errorf("jitter %v out of expected range [%v, %v]", j, lower, upper)
		}
	}
}

func TestBackoff_ZeroConfig(t *testing.T) {
	// A zero Backoff waits the 1s default between attempts.
	b := &Backoff{MaxAttempts: 2}
	calls := 0

	start := time.Now()
	_ = b.Do(context.Background(), func(_ int) error {
		calls++
		return fmt.Errorf("fail")
	})
	elapsed := time.Since(start)

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if elapsed < 500*time.Millisecond {
		t.Errorf("expected at least 500ms delay, got %v", elapsed)
	}
}

func TestBackoff_RetryableClassifier(t *testing.T) {
	errFatal := errors.New("no such device")
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxAttempts:  5,
		Retryable:    func(err error) bool { return !errors.Is(err, errFatal) },
	}
	calls := 0

	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt == 1 {
			return fmt.Errorf("connection refused")
		}
		return errFatal
	})

	if !errors.Is(err, errFatal) {
		t.Fatalf("err = %v, want the non-retryable error", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestBackoff_OnRetry(t *testing.T) {
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  5,
	}
	var attempts []int
	var waits []time.Duration
	b.OnRetry = func(attempt int, wait time.Duration, err error) {
		if err == nil {
			t.Error("OnRetry called without an error")
		}
		attempts = append(attempts, attempt)
		waits = append(waits, wait)
	}

	err := b.Do(context.Background(), func(int) error { return fmt.Errorf("down") })
	if err == nil || !strings.Contains(err.Error(), "giving up after 5 attempts") {
		t.Fatalf("err = %v", err)
	}

	if want := []int{1, 2, 3, 4}; !slices.Equal(attempts, want) {
		t.Errorf("attempts = %v, want %v", attempts, want)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}
	if !slices.Equal(waits, want) {
		t.Errorf("waits = %v, want %v", waits, want)
	}
}

// ── Retrier ──────────────────────────────────────────────────────────

func TestRetrier_BudgetAndReset(t *testing.T) {
	b := &Backoff{InitialDelay: time.Millisecond, MaxAttempts: 3}
	r := b.Retrier()
	defer r.Stop()
	ctx := context.Background()
	errDown := errors.New("down")

	if err := r.Wait(ctx, errDown); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := r.Wait(ctx, errDown); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if r.Attempts() != 2 {
		t.Errorf("attempts = %d, want 2", r.Attempts())
	}

	r.Reset()
	if r.Attempts() != 0 {
		t.Errorf("attempts after reset = %d", r.Attempts())
	}
	_ = r.Wait(ctx, errDown)
	_ = r.Wait(ctx, errDown)
	err := r.Wait(ctx, errDown)
	if !errors.Is(err, errDown) || !strings.Contains(err.Error(), "giving up after 3 attempts") {
		t.Fatalf("err = %v", err)
	}
}

func TestRetrier_WaitsGrow(t *testing.T) {
	b := &Backoff{InitialDelay: 20 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}
	r := b.Retrier()
	defer r.Stop()

	start := time.Now()
	_ = r.Wait(context.Background(), errors.New("down"))
	_ = r.Wait(context.Background(), errors.New("down"))
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("waited %v, want at least 20ms+40ms", elapsed)
	}
}

func TestRetrier_Cancelled(t *testing.T) {
	r := (&Backoff{InitialDelay: 5 * time.Second}).Retrier()
	defer r.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Wait(ctx, errors.New("down")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
