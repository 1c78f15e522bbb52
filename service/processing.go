package service

import (
	"strconv"

	"github.com/avrlab/lab-projects-backend/internal/models"
	youtube "google.golang.org/api/youtube/v3"
)

// Column names the pipeline writes through field-map updates. Each update is
// one atomic persisted write; concurrent status readers see either the old
// row or the new one.
const (
	colLocalVideoPath     = "local_video_path"
	colYoutubeVideoID     = "youtube_video_id"
	colUploadStatus       = "upload_status"
	colProcessingStatus   = "processing_status"
	colProcessingReason   = "processing_failure_reason"
	colProcessingEstimate = "processing_estimated_time_left"
	colPublicStatus       = "public_status"
	colDocumentReady      = "document_ready"
	colDocumentApproved   = "document_approved"
	colDocumentEditable   = "document_editable"
	colStage              = "stage"
)

// pollResult is the outcome of evaluating one processing-status response:
// which fields to persist and whether the poll loop is done.
type pollResult struct {
	updates  map[string]interface{}
	terminal bool
}

// terminatedResult clears the video id so later flows don't try to delete a
// video the platform already discarded.
func terminatedResult() pollResult {
	return pollResult{
		updates: map[string]interface{}{
			colYoutubeVideoID:     "",
			colProcessingStatus:   models.ProcessingTerminated,
			colProcessingReason:   "",
			colProcessingEstimate: "",
		},
		terminal: true,
	}
}

// evaluateProcessing is the poll loop's transition function: given the
// platform's processing-status response, it decides the new persisted state
// and whether polling stops. It is pure so the state machine is testable
// without a network or a clock.
func evaluateProcessing(resp *youtube.VideoListResponse) pollResult {
	if resp == nil || len(resp.Items) == 0 {
		// The video is gone entirely: rejected as a duplicate, or deleted
		// out from under us.
		return terminatedResult()
	}

	item := resp.Items[0]
	uploadStatus := ""
	if item.Status != nil {
		uploadStatus = item.Status.UploadStatus
	}

	switch uploadStatus {
	case "deleted", "failed", "rejected":
		return terminatedResult()

	case "uploaded":
		if item.ProcessingDetails == nil {
			// Processing failed with no detail given.
			return terminatedResult()
		}

		switch item.ProcessingDetails.ProcessingStatus {
		case "failed":
			return pollResult{
				updates: map[string]interface{}{
					colProcessingStatus: models.ProcessingFailed,
					colProcessingReason: item.ProcessingDetails.ProcessingFailureReason,
				},
				terminal: true,
			}

		case "terminated":
			return terminatedResult()

		case "processing":
			updates := map[string]interface{}{
				colProcessingStatus: models.ProcessingInProgress,
				colProcessingReason: "",
			}
			if progress := item.ProcessingDetails.ProcessingProgress; progress != nil {
				updates[colProcessingEstimate] = strconv.FormatUint(progress.TimeLeftMs, 10)
			}
			return pollResult{updates: updates}

		default:
			// An upload status of "uploaded" with an unknown processing
			// status has nothing for us to wait on.
			return pollResult{
				updates: map[string]interface{}{
					colProcessingStatus: models.ProcessingNone,
					colProcessingReason: "",
				},
				terminal: true,
			}
		}

	case "processed":
		return pollResult{
			updates: map[string]interface{}{
				colProcessingStatus:   models.ProcessingDone,
				colProcessingReason:   "",
				colProcessingEstimate: "",
				colStage:              models.StageDocumentDraft,
			},
			terminal: true,
		}

	default:
		// Unrecognized upload status: leave the record alone and poll again.
		return pollResult{}
	}
}
