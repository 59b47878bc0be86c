package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testRetrier(base time.Duration) *retrier {
	r := newRetrier(zap.NewNop())
	r.baseDelay = base
	return r
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r := testRetrier(time.Millisecond)
	calls := 0
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient %d", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if r.pending("op") != 0 {
		t.Errorf("counter = %d after success, want 0", r.pending("op"))
	}
}

func TestRetryExhaustsAndResets(t *testing.T) {
	r := testRetrier(time.Millisecond)
	calls := 0
	wantErr := fmt.Errorf("permanent")
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want the last failure", err)
	}
	// One initial attempt plus maxRetries retries.
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if r.pending("op") != 0 {
		t.Errorf("counter = %d after exhaustion, want 0", r.pending("op"))
	}
}

func TestRetryBackoffDoublesAndRestarts(t *testing.T) {
	const base = 20 * time.Millisecond
	r := testRetrier(base)
	fail := func(context.Context) error { return fmt.Errorf("down") }

	// 20 + 40 + 80 = 140ms of sleeping for a full exhaustion.
	start := time.Now()
	_ = r.Do(context.Background(), "op", fail)
	first := time.Since(start)
	if first < 140*time.Millisecond {
		t.Errorf("first run took %v, want >= 140ms of backoff", first)
	}

	// Counter reset: the next run starts over at the base delay instead of
	// continuing the exponential curve (which would sleep 160+320+640ms).
	start = time.Now()
	_ = r.Do(context.Background(), "op", fail)
	second := time.Since(start)
	if second >= 600*time.Millisecond {
		t.Errorf("second run took %v, backoff did not restart at base", second)
	}
}

func TestRetryIndependentOperationCounters(t *testing.T) {
	r := testRetrier(time.Millisecond)
	failing := make(chan struct{})
	go func() {
		defer close(failing)
		_ = r.Do(context.Background(), "slow", func(context.Context) error {
			return fmt.Errorf("down")
		})
	}()

	// A different operation succeeds while "slow" is mid-backoff.
	if err := r.Do(context.Background(), "fast", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	<-failing
}

func TestRetryContextCancelStopsWaiting(t *testing.T) {
	r := testRetrier(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "op", func(context.Context) error {
			return fmt.Errorf("down")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if r.pending("op") != 0 {
		t.Errorf("counter = %d after cancel, want 0", r.pending("op"))
	}
}
