package util

import (
	"context"
	"errors"
	"testing"
)

func TestRetry(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		got, err := Retry(3, func() (int, error) {
			calls++
			return 42, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 42 || calls != 1 {
			t.Errorf("got %d after %d calls, want 42 after 1", got, calls)
		}
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		got, err := Retry(3, func() (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "ok" || calls != 3 {
			t.Errorf("got %q after %d calls, want ok after 3", got, calls)
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		wantErr := errors.New("still failing")
		calls := 0
		_, err := Retry(2, func() (int, error) {
			calls++
			return 0, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Errorf("got error %v, want %v", err, wantErr)
		}
		if calls != 2 {
			t.Errorf("got %d calls, want 2", calls)
		}
	})

	t.Run("non-positive maxTries defaults to one", func(t *testing.T) {
		calls := 0
		_, _ = Retry(0, func() (int, error) {
			calls++
			return 0, errors.New("nope")
		})
		if calls != 1 {
			t.Errorf("got %d calls, want 1", calls)
		}
	})
}

func TestRetryWithContext(t *testing.T) {
	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := RetryWithContext(ctx, 5, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("should not retry")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got error %v, want context.Canceled", err)
		}
		if calls != 0 {
			t.Errorf("got %d calls, want 0", calls)
		}
	})

	t.Run("propagates deadline errors immediately", func(t *testing.T) {
		calls := 0
		_, err := RetryWithContext(context.Background(), 5, func(context.Context) (int, error) {
			calls++
			return 0, context.DeadlineExceeded
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got error %v, want context.DeadlineExceeded", err)
		}
		if calls != 1 {
			t.Errorf("got %d calls, want 1", calls)
		}
	})
}

func TestRetryWhileWithContext(t *testing.T) {
	transient := errors.New("transient")
	permanent := errors.New("permanent")
	isTransient := func(err error) bool { return errors.Is(err, transient) }

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		got, err := RetryWhileWithContext(context.Background(), 3, isTransient, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, transient
			}
			return 7, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 7 || calls != 3 {
			t.Errorf("got %d after %d calls, want 7 after 3", got, calls)
		}
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		calls := 0
		_, err := RetryWhileWithContext(context.Background(), 5, isTransient, func(context.Context) (int, error) {
			calls++
			return 0, permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("got error %v, want %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("got %d calls, want 1", calls)
		}
	})

	t.Run("bounded attempts", func(t *testing.T) {
		calls := 0
		_, err := RetryWhileWithContext(context.Background(), 3, isTransient, func(context.Context) (int, error) {
			calls++
			return 0, transient
		})
		if !errors.Is(err, transient) {
			t.Errorf("got error %v, want %v", err, transient)
		}
		if calls != 3 {
			t.Errorf("got %d calls, want 3", calls)
		}
	})
}
