package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"heating_bridge/internal/clock"
)

// throttleErr mimics the vendor's typed rate-limit error.
type throttleErr struct{ limited bool }

func (e *throttleErr) Error() string     { return "remote api: throttled" }
func (e *throttleErr) RateLimited() bool { return e.limited }

func TestIsRateLimit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed limited", &throttleErr{limited: true}, true},
		{"typed not limited", &throttleErr{limited: false}, false},
		{"wrapped typed", fmt.Errorf("call: %w", &throttleErr{limited: true}), true},
		{"status marker", errors.New("status 429 from server"), true},
		{"vendor marker", errors.New("code TOO_MANY_REQUESTS"), true},
		{"plain failure", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimit(tc.err); got != tc.want {
				t.Errorf("IsRateLimit(%v): got %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDo_NonRateLimitPropagatesImmediately(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	boom := errors.New("boom")
	calls := 0

	_, err := Do(context.Background(), clk, func() (int, error) {
		calls++
		return 0, boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if clk.PendingWaiters() != 0 {
		t.Errorf("no delay should have been scheduled, found %d waiters", clk.PendingWaiters())
	}
}

func TestDo_RateLimitRetriesWithExponentialDelay(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	calls := 0
	var notices []string

	type result struct {
		v   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := Do(context.Background(), clk, func() (int, error) {
			calls++
			if calls <= 2 {
				return 0, &throttleErr{limited: true}
			}
			return 42, nil
		}, WithNotifier(func(msg string) { notices = append(notices, msg) }))
		done <- result{v, err}
	}()

	// First retry waits base delay (1s), second waits 2s.
	waitForWaiters(t, clk, 1)
	clk.Advance(time.Second)
	waitForWaiters(t, clk, 1)
	clk.Advance(2 * time.Second)

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.v != 42 {
			t.Errorf("value: got %d, want 42", r.v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after advancing past both delays")
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if len(notices) != 2 {
		t.Errorf("notices: got %d, want 2", len(notices))
	}
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := Do(context.Background(), clk, func() (int, error) {
			calls++
			return 0, &throttleErr{limited: true}
		}, WithMaxRetries(2))
		done <- err
	}()

	waitForWaiters(t, clk, 1)
	clk.Advance(time.Second)
	waitForWaiters(t, clk, 1)
	clk.Advance(2 * time.Second)

	select {
	case err := <-done:
		var te *throttleErr
		if !errors.As(err, &te) {
			t.Fatalf("err: got %v, want throttleErr", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3 (maxRetries=2)", calls)
	}
}

func TestDo_ContextCancelDuringWait(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, clk, func() (int, error) {
			return 0, &throttleErr{limited: true}
		})
		done <- err
	}()

	waitForWaiters(t, clk, 1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not observe cancellation")
	}
}

// waitForWaiters blocks until the fake clock has n pending waiters,
// failing the test after a real-time deadline.
func waitForWaiters(t *testing.T, clk *clock.Fake, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clk.PendingWaiters() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clock waiters", n)
		}
		time.Sleep(time.Millisecond)
	}
}
