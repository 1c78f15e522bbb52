package service

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Error reasons reported by the platform inside error payloads. The exact
// vocabulary is platform contract data and is pinned by tests.
const (
	ReasonQuotaExceeded      = "quotaExceeded"
	ReasonDailyLimitExceeded = "dailyLimitExceeded"
	ReasonVideoNotFound      = "videoNotFound"
)

// ErrAllClientsFailed is returned when every client in the pool was tried and
// none could complete the operation.
var ErrAllClientsFailed = errors.New("all clients failed")

// ErrRetriesExceeded marks an upload that burned through its retry budget on
// a single session.
var ErrRetriesExceeded = errors.New("upload retry limit exceeded")

// ErrUnexpectedUploadResponse marks a terminal upload response that carried
// no video id. Not retried.
var ErrUnexpectedUploadResponse = errors.New("upload finished with an unexpected response")

// Upload chunk requests that fail with one of these status codes are retried
// on the same session.
var retryableStatusCodes = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func errorReason(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return ""
	}
	if len(gerr.Errors) == 0 {
		return ""
	}
	return gerr.Errors[0].Reason
}

func isQuotaExceeded(err error) bool {
	switch errorReason(err) {
	case ReasonQuotaExceeded, ReasonDailyLimitExceeded:
		return true
	}
	return false
}

func isVideoNotFound(err error) bool {
	return errorReason(err) == ReasonVideoNotFound
}

// isRetryableUploadError reports whether an upload chunk failure is worth
// retrying on the same session: a retryable HTTP status, or a transport-level
// error that never produced a platform response.
func isRetryableUploadError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableStatusCodes[gerr.Code]
	}
	// No typed platform error means the request died in transit.
	return !errors.Is(err, ErrUnexpectedUploadResponse)
}
