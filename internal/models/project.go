package models

type UploadStatus string

const (
	UploadNone            UploadStatus = ""
	UploadInProgress      UploadStatus = "uploading"
	UploadCompleted       UploadStatus = "completed"
	UploadFailed          UploadStatus = "failed"
	UploadDeletingCurrent UploadStatus = "deleting-current"
)

type ProcessingStatus string

const (
	ProcessingNone       ProcessingStatus = ""
	ProcessingChecking   ProcessingStatus = "checking"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingDone       ProcessingStatus = "processed"
	ProcessingFailed     ProcessingStatus = "failed"
	ProcessingTerminated ProcessingStatus = "terminated"
)

type PublicStatus string

const (
	PublicNone     PublicStatus = ""
	PublicChanging PublicStatus = "changing"
	PublicSuccess  PublicStatus = "success"
	PublicFailed   PublicStatus = "failed"
)

// StageDocumentDraft is the project stage once the uploaded video finished
// processing and the document page exists as a draft.
const StageDocumentDraft = "project page - draft"

type Project struct {
	BaseModel
	Title    string `gorm:"not null"`
	Abstract string
	Year     int    `gorm:"index"`
	Semester string `gorm:"type:varchar(20)"`
	Stage    string `gorm:"type:varchar(50)"`

	DocumentReady    bool `gorm:"not null;default:false"`
	DocumentApproved bool `gorm:"not null;default:false"`
	DocumentEditable bool `gorm:"not null;default:false"`

	LocalVideoPath string `gorm:"type:varchar(200)"`
	// YoutubeVideoID is set to the empty string after a terminal processing
	// failure so later flows don't keep trying to delete a video that is
	// already gone on the platform side.
	YoutubeVideoID              string           `gorm:"type:varchar(200)"`
	UploadStatus                UploadStatus     `gorm:"type:varchar(100)"`
	ProcessingStatus            ProcessingStatus `gorm:"type:varchar(100)"`
	ProcessingFailureReason     string           `gorm:"type:varchar(100)"`
	ProcessingEstimatedTimeLeft string           `gorm:"type:varchar(100)"`
	PublicStatus                PublicStatus     `gorm:"type:varchar(100)"`
}

// VideoReady reports whether the video was uploaded and fully processed, i.e.
// the document page can be shown.
func (p *Project) VideoReady() bool {
	return p.UploadStatus == UploadCompleted && p.ProcessingStatus == ProcessingDone
}

// VideoFailed reports whether the upload or the remote processing ended in a
// state the student has to resubmit from.
func (p *Project) VideoFailed() bool {
	return p.UploadStatus == UploadFailed ||
		p.ProcessingStatus == ProcessingTerminated ||
		p.ProcessingStatus == ProcessingFailed
}

// VideoInFlight reports whether an upload or processing poll is still running
// for this project. Document edits are rejected while this holds. A completed
// upload whose poller has not written a processing status yet counts as idle;
// treating it as in-flight would permanently lock out resubmission whenever
// the poller exits without settling on a status.
func (p *Project) VideoInFlight() bool {
	if p.UploadStatus == UploadInProgress || p.UploadStatus == UploadDeletingCurrent {
		return true
	}
	return p.ProcessingStatus == ProcessingChecking || p.ProcessingStatus == ProcessingInProgress
}

// VideoStatusSnapshot is what the status stream sends to polling clients.
type VideoStatusSnapshot struct {
	UploadStatus                UploadStatus     `json:"uploadStatus"`
	ProcessingStatus            ProcessingStatus `json:"processingStatus"`
	ProcessingFailureReason     string           `json:"processingFailureReason"`
	ProcessingEstimatedTimeLeft string           `json:"processingEstimatedTimeLeft"`
}

func (p *Project) VideoStatus() VideoStatusSnapshot {
	return VideoStatusSnapshot{
		UploadStatus:                p.UploadStatus,
		ProcessingStatus:            p.ProcessingStatus,
		ProcessingFailureReason:     p.ProcessingFailureReason,
		ProcessingEstimatedTimeLeft: p.ProcessingEstimatedTimeLeft,
	}
}
