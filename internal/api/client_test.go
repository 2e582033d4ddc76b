package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/drivemirror/drivemirror/internal/types"
	"google.golang.org/api/googleapi"
)

func apiError(code int) *googleapi.Error {
	return &googleapi.Error{Code: code, Header: http.Header{}}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", apiError(429), true},
		{"server error", apiError(503), true},
		{"bad request", apiError(400), false},
		{"not found", apiError(404), false},
		{"plain error", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	err := apiError(503)

	prev := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		delay := calculateBackoff(base, attempt, err)
		if delay <= 0 {
			t.Fatalf("attempt %d: delay = %v, want positive", attempt, delay)
		}
		if delay > maxRetryDelay()+maxRetryDelay()/4 {
			t.Fatalf("attempt %d: delay = %v exceeds cap with jitter margin", attempt, delay)
		}
		// Jitter is ±25%, so growth only has to hold on average; check the
		// uncapped attempts stay ordered within that tolerance.
		if attempt > 0 && attempt < 4 && delay < prev/2 {
			t.Errorf("attempt %d: delay %v collapsed below half of previous %v", attempt, delay, prev)
		}
		prev = delay
	}
}

func TestCalculateBackoffHonorsRetryAfter(t *testing.T) {
	err := apiError(429)
	err.Header.Set("Retry-After", "2")

	if got := calculateBackoff(100*time.Millisecond, 0, err); got != 2*time.Second {
		t.Errorf("calculateBackoff with Retry-After=2 = %v, want 2s", got)
	}

	err.Header.Set("Retry-After", "99999")
	if got := calculateBackoff(100*time.Millisecond, 0, err); got != maxRetryDelay() {
		t.Errorf("oversized Retry-After = %v, want cap %v", got, maxRetryDelay())
	}

	err.Header.Set("Retry-After", "not-a-number")
	if _, ok := retryAfterDelay(err); ok {
		t.Error("malformed Retry-After should be ignored")
	}
}

func TestExecuteWithRetryRecovers(t *testing.T) {
	client := NewClient(nil, 3, 1, nil)
	reqCtx := NewRequestContext("default", "", types.RequestTypeListOrSearch)

	calls := 0
	got, err := ExecuteWithRetry(context.Background(), client, reqCtx, func() (string, error) {
		calls++
		if calls < 3 {
			return "", apiError(503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("ExecuteWithRetry() = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestExecuteWithRetryStopsOnNonRetryable(t *testing.T) {
	client := NewClient(nil, 3, 1, nil)
	reqCtx := NewRequestContext("default", "", types.RequestTypeMetadata)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), client, reqCtx, func() (string, error) {
		calls++
		return "", apiError(404)
	})
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (no retries on 404)", calls)
	}
}

func TestExecuteWithRetryExhaustsBudget(t *testing.T) {
	client := NewClient(nil, 2, 1, nil)
	reqCtx := NewRequestContext("default", "", types.RequestTypeListOrSearch)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), client, reqCtx, func() (string, error) {
		calls++
		return "", apiError(503)
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3 (initial + 2 retries)", calls)
	}
}
