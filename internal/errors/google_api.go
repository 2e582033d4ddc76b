package errors

import (
	"github.com/drivemirror/drivemirror/internal/logging"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/drivemirror/drivemirror/internal/utils"
	"google.golang.org/api/googleapi"
)

// classifyStatus maps an API HTTP status and its error reasons to an
// internal error code plus a retryability verdict.
func classifyStatus(apiErr *googleapi.Error) (code string, retryable bool) {
	switch apiErr.Code {
	case 400:
		return utils.ErrCodeInvalidArgument, false
	case 401:
		return utils.ErrCodeAuthExpired, false
	case 403:
		code = utils.ErrCodePermissionDenied
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "storageQuotaExceeded":
				code = utils.ErrCodeQuotaExceeded
			case "sharingRateLimitExceeded", "userRateLimitExceeded", "rateLimitExceeded":
				code = utils.ErrCodeRateLimited
				retryable = true
			case "dailyLimitExceeded":
				code = utils.ErrCodeRateLimited
			}
		}
		return code, retryable
	case 404:
		return utils.ErrCodeEntryNotFound, false
	case 429:
		return utils.ErrCodeRateLimited, true
	case 500, 502, 503, 504:
		return utils.ErrCodeNetworkError, true
	default:
		return utils.ErrCodeUnknown, apiErr.Code >= 500
	}
}

// reasonHint suggests a recovery action for well-known Drive error reasons.
func reasonHint(reason string) string {
	switch reason {
	case "sharingRateLimitExceeded", "userRateLimitExceeded", "rateLimitExceeded":
		return "wait before retrying"
	case "dailyLimitExceeded":
		return "quota will reset in 24 hours"
	case "insufficientFilePermissions":
		return "grant the mirror account read access"
	}
	return ""
}

// ClassifyGoogleAPIError turns a raw Drive API failure into an AppError with
// an internal code, retry hints, and trace context for the CLI envelope.
func ClassifyGoogleAPIError(service string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	apiErr, ok := err.(*googleapi.Error)
	if !ok {
		logger.Error("Non-API error",
			logging.F("error", err.Error()),
			logging.F("traceId", reqCtx.TraceID),
		)
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeNetworkError, err.Error()).
			WithRetryable(true).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("service", service).
			Build())
	}

	code, retryable := classifyStatus(apiErr)

	logger.Error("API error classified",
		logging.F("httpStatus", apiErr.Code),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("message", apiErr.Message),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("service", service),
	)

	builder := utils.NewCLIError(code, apiErr.Message).
		WithHTTPStatus(apiErr.Code).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType)).
		WithContext("service", service)

	if len(apiErr.Errors) > 0 {
		reason := apiErr.Errors[0].Reason
		builder.WithDriveReason(reason)
		if hint := reasonHint(reason); hint != "" {
			builder.WithContext("suggestedAction", hint)
		}
	}

	switch code {
	case utils.ErrCodeAuthExpired:
		builder.WithContext("suggestedAction", "run 'drivemirror auth login' to re-authenticate")
	case utils.ErrCodeEntryNotFound:
		if reqCtx.DriveID != "" {
			builder.WithContext("searchDomain", "sharedDrive").
				WithContext("driveId", reqCtx.DriveID)
		}
		builder.WithContext("suggestedAction", "verify the entry ID is correct and accessible")
	case utils.ErrCodeRateLimited:
		builder.WithContext("suggestedAction", "rate limit exceeded, retrying with backoff")
	}

	if apiErr.Code >= 500 && apiErr.Code <= 504 {
		builder.WithContext("serverError", true).
			WithContext("suggestedAction", "temporary server error, retrying")
	}

	return utils.NewAppError(builder.Build())
}
