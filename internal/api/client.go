package api

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/drivemirror/drivemirror/internal/errors"
	"github.com/drivemirror/drivemirror/internal/logging"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/drivemirror/drivemirror/internal/utils"
	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Client wraps the Drive API with retry logic and request shaping
type Client struct {
	service    *drive.Service
	maxRetries int
	retryDelay time.Duration
	logger     logging.Logger
}

// NewClient creates a new Drive API client
func NewClient(service *drive.Service, maxRetries int, retryDelayMs int, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Client{
		service:    service,
		maxRetries: maxRetries,
		retryDelay: time.Duration(retryDelayMs) * time.Millisecond,
		logger:     logger,
	}
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(profile string, driveID string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Profile:           profile,
		DriveID:           driveID,
		InvolvedFileIDs:   []string{},
		InvolvedParentIDs: []string{},
		RequestType:       requestType,
		TraceID:           uuid.New().String(),
	}
}

// ExecuteWithRetry runs an API call, retrying retryable failures with
// exponential backoff until maxRetries is exhausted or ctx is cancelled.
func ExecuteWithRetry[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, fn func() (T, error)) (T, error) {
	var zero T

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Debug("API operation starting",
		logging.F("requestType", reqCtx.RequestType),
		logging.F("profile", reqCtx.Profile),
		logging.F("driveId", reqCtx.DriveID),
	)

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying API operation",
				logging.F("attempt", attempt),
				logging.F("maxRetries", client.maxRetries),
			)
		}

		result, err := fn()
		if err == nil {
			logger.Debug("API operation completed",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			logger.Error("API operation failed (non-retryable)",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("error", err.Error()),
				logging.F("attempts", attempt+1),
			)
			return zero, classifyError(err, reqCtx, client.logger)
		}

		if attempt == client.maxRetries {
			break
		}

		delay := calculateBackoff(client.retryDelay, attempt, err)
		logger.Warn("API operation failed (retryable)",
			logging.F("attempt", attempt+1),
			logging.F("delay_ms", delay.Milliseconds()),
			logging.F("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Error("API operation failed after max retries",
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return zero, classifyError(lastErr, reqCtx, client.logger)
}

func isRetryable(err error) bool {
	apiErr, ok := err.(*googleapi.Error)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func maxRetryDelay() time.Duration {
	return time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
}

// retryAfterDelay extracts a server-supplied Retry-After interval, if any.
func retryAfterDelay(err error) (time.Duration, bool) {
	apiErr, ok := err.(*googleapi.Error)
	if !ok {
		return 0, false
	}
	header := apiErr.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	seconds, convErr := strconv.Atoi(header)
	if convErr != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// calculateBackoff returns base * 2^attempt with ±25% jitter, capped at
// MaxRetryDelayMs. A Retry-After header from the server wins over the
// computed backoff.
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	if delay, ok := retryAfterDelay(err); ok {
		if delay > maxRetryDelay() {
			return maxRetryDelay()
		}
		return delay
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxRetryDelay() {
		delay = maxRetryDelay()
	}

	jitterRange := delay / 4
	delay += time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange

	if delay < 0 {
		delay = baseDelay
	}
	return delay
}

func classifyError(err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	return errors.ClassifyGoogleAPIError("drive", err, reqCtx, logger)
}

// Service returns the underlying Drive service
func (c *Client) Service() *drive.Service {
	return c.service
}

// Logger returns the client's logger
func (c *Client) Logger() logging.Logger {
	return c.logger
}
