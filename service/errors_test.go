package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

// The reason strings are platform contract data, not something we control.
// These tests pin the vocabulary the classification depends on.
func TestPlatformReasonVocabulary(t *testing.T) {
	assert.Equal(t, "quotaExceeded", ReasonQuotaExceeded)
	assert.Equal(t, "dailyLimitExceeded", ReasonDailyLimitExceeded)
	assert.Equal(t, "videoNotFound", ReasonVideoNotFound)
}

func TestIsQuotaExceeded(t *testing.T) {
	assert.True(t, isQuotaExceeded(quotaError(ReasonQuotaExceeded)))
	assert.True(t, isQuotaExceeded(quotaError(ReasonDailyLimitExceeded)))
	assert.False(t, isQuotaExceeded(quotaError("rateLimitExceeded")))
	assert.False(t, isQuotaExceeded(notFoundError()))
	assert.False(t, isQuotaExceeded(errors.New("connection reset")))
	assert.False(t, isQuotaExceeded(nil))

	// Still recognized through wrapping.
	wrapped := fmt.Errorf("delete failed: %w", quotaError(ReasonQuotaExceeded))
	assert.True(t, isQuotaExceeded(wrapped))
}

func TestIsVideoNotFound(t *testing.T) {
	assert.True(t, isVideoNotFound(notFoundError()))
	assert.False(t, isVideoNotFound(quotaError(ReasonQuotaExceeded)))
	assert.False(t, isVideoNotFound(errors.New("videoNotFound")))
}

func TestIsRetryableUploadError(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		assert.True(t, isRetryableUploadError(&googleapi.Error{Code: code}), "status %d", code)
	}
	assert.False(t, isRetryableUploadError(&googleapi.Error{Code: 403}))
	assert.False(t, isRetryableUploadError(&googleapi.Error{Code: 404}))

	// A transport-level failure never produced a platform response; retry.
	assert.True(t, isRetryableUploadError(errors.New("connection reset by peer")))

	// A terminal response we can't interpret is fatal, not transient.
	assert.False(t, isRetryableUploadError(ErrUnexpectedUploadResponse))
	assert.False(t, isRetryableUploadError(fmt.Errorf("%w: empty body", ErrUnexpectedUploadResponse)))
}
