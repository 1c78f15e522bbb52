package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	youtube "google.golang.org/api/youtube/v3"

	"github.com/avrlab/lab-projects-backend/internal/models"
)

func listResponse(items ...*youtube.Video) *youtube.VideoListResponse {
	return &youtube.VideoListResponse{
		Items:    items,
		PageInfo: &youtube.PageInfo{TotalResults: int64(len(items))},
	}
}

func TestEvaluateProcessingStillProcessing(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status: &youtube.VideoStatus{UploadStatus: "uploaded"},
		ProcessingDetails: &youtube.VideoProcessingDetails{
			ProcessingStatus: "processing",
			ProcessingProgress: &youtube.VideoProcessingDetailsProcessingProgress{
				TimeLeftMs: 4000,
			},
		},
	})

	result := evaluateProcessing(resp)

	assert.False(t, result.terminal)
	assert.Equal(t, models.ProcessingInProgress, result.updates[colProcessingStatus])
	assert.Equal(t, "4000", result.updates[colProcessingEstimate])
}

func TestEvaluateProcessingWithoutProgressKeepsEstimate(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status:            &youtube.VideoStatus{UploadStatus: "uploaded"},
		ProcessingDetails: &youtube.VideoProcessingDetails{ProcessingStatus: "processing"},
	})

	result := evaluateProcessing(resp)

	assert.False(t, result.terminal)
	// No new progress figure: the previously persisted estimate stays.
	_, touched := result.updates[colProcessingEstimate]
	assert.False(t, touched)
}

func TestEvaluateProcessingProcessed(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status: &youtube.VideoStatus{UploadStatus: "processed"},
	})

	result := evaluateProcessing(resp)

	assert.True(t, result.terminal)
	assert.Equal(t, models.ProcessingDone, result.updates[colProcessingStatus])
	assert.Equal(t, "", result.updates[colProcessingReason])
	assert.Equal(t, "", result.updates[colProcessingEstimate])
	assert.Equal(t, models.StageDocumentDraft, result.updates[colStage])
	// The transition function never touches approval; only the publisher
	// does that.
	_, touched := result.updates[colDocumentApproved]
	assert.False(t, touched)
}

func TestEvaluateProcessingTerminalUploadFailures(t *testing.T) {
	for _, status := range []string{"deleted", "failed", "rejected"} {
		resp := listResponse(&youtube.Video{
			Status: &youtube.VideoStatus{UploadStatus: status},
		})

		result := evaluateProcessing(resp)

		assert.True(t, result.terminal, "upload status %q", status)
		assert.Equal(t, models.ProcessingTerminated, result.updates[colProcessingStatus], "upload status %q", status)
		// Cleared to the empty-string sentinel so nothing tries to delete a
		// video the platform already discarded.
		assert.Equal(t, "", result.updates[colYoutubeVideoID], "upload status %q", status)
	}
}

func TestEvaluateProcessingUploadedWithoutDetails(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status: &youtube.VideoStatus{UploadStatus: "uploaded"},
	})

	result := evaluateProcessing(resp)

	assert.True(t, result.terminal)
	assert.Equal(t, models.ProcessingTerminated, result.updates[colProcessingStatus])
	assert.Equal(t, "", result.updates[colYoutubeVideoID])
}

func TestEvaluateProcessingFailedWithReason(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status: &youtube.VideoStatus{UploadStatus: "uploaded"},
		ProcessingDetails: &youtube.VideoProcessingDetails{
			ProcessingStatus:        "failed",
			ProcessingFailureReason: "transcodeFailed",
		},
	})

	result := evaluateProcessing(resp)

	assert.True(t, result.terminal)
	assert.Equal(t, models.ProcessingFailed, result.updates[colProcessingStatus])
	assert.Equal(t, "transcodeFailed", result.updates[colProcessingReason])
}

func TestEvaluateProcessingTerminatedByPlatform(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status:            &youtube.VideoStatus{UploadStatus: "uploaded"},
		ProcessingDetails: &youtube.VideoProcessingDetails{ProcessingStatus: "terminated"},
	})

	result := evaluateProcessing(resp)

	assert.True(t, result.terminal)
	assert.Equal(t, models.ProcessingTerminated, result.updates[colProcessingStatus])
	assert.Equal(t, "", result.updates[colYoutubeVideoID])
}

func TestEvaluateProcessingVideoGone(t *testing.T) {
	result := evaluateProcessing(listResponse())

	assert.True(t, result.terminal)
	assert.Equal(t, models.ProcessingTerminated, result.updates[colProcessingStatus])
	assert.Equal(t, "", result.updates[colYoutubeVideoID])
}

func TestEvaluateProcessingUnknownUploadStatusPollsAgain(t *testing.T) {
	resp := listResponse(&youtube.Video{
		Status: &youtube.VideoStatus{UploadStatus: "somethingNew"},
	})

	result := evaluateProcessing(resp)

	assert.False(t, result.terminal)
	assert.Empty(t, result.updates)
}
