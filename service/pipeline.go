package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avrlab/lab-projects-backend/internal/models"
	"github.com/sirupsen/logrus"
	youtube "google.golang.org/api/youtube/v3"
	"gorm.io/gorm"
)

// VideoPlatform is what the pipeline needs from the remote video host.
// Implemented by YouTubeService.
type VideoPlatform interface {
	UploadVideo(ctx context.Context, path, title, description string, keywords []string) (string, error)
	DeleteVideo(ctx context.Context, videoID string) DeleteResult
	SetVideoPublic(ctx context.Context, videoID string) error
	GetProcessingDetails(ctx context.Context, videoID string) (*youtube.VideoListResponse, error)
}

const defaultPollInterval = 3 * time.Second

// DefaultKeywords are attached to every uploaded project video.
var DefaultKeywords = []string{
	"avr lab", "lab project", "virtual reality lab", "augmented reality lab",
}

// VideoPipeline runs the long-lived remote operations as fire-and-forget
// background tasks. Tasks never report back to a caller; every outcome is
// persisted into the project record, which is also what status-polling
// clients read. Tasks are not cancellable mid-flight: a task that dies simply
// stops writing, leaving the record at its last written state.
type VideoPipeline struct {
	db       *gorm.DB
	platform VideoPlatform
	log      *logrus.Logger

	pollInterval time.Duration
	keywords     []string
}

func NewVideoPipeline(db *gorm.DB, platform VideoPlatform, log *logrus.Logger) *VideoPipeline {
	return &VideoPipeline{
		db:           db,
		platform:     platform,
		log:          log,
		pollInterval: defaultPollInterval,
		keywords:     DefaultKeywords,
	}
}

// StartUpload dispatches the upload task for a project whose local video is
// in place. The caller must have set uploadStatus to uploading already, which
// is what keeps a second submission from racing this one.
func (p *VideoPipeline) StartUpload(projectID string) {
	p.spawn("upload", projectID, map[string]interface{}{
		colUploadStatus: models.UploadFailed,
	}, func() {
		p.runUpload(context.Background(), projectID)
	})
}

// StartOverwrite dispatches the replace flow: delete the current remote
// video, then upload the new local one.
func (p *VideoPipeline) StartOverwrite(projectID string) {
	p.spawn("overwrite", projectID, map[string]interface{}{
		colUploadStatus: models.UploadFailed,
	}, func() {
		p.runOverwrite(context.Background(), projectID)
	})
}

// StartPublish dispatches the visibility publisher. The caller must have set
// publicVisibilityStatus to changing already.
func (p *VideoPipeline) StartPublish(projectID string) {
	p.spawn("publish", projectID, map[string]interface{}{
		colPublicStatus: models.PublicFailed,
	}, func() {
		p.runPublish(context.Background(), projectID)
	})
}

// spawn runs fn as a detached background task. A panicking task writes its
// failure state into the record before dying, the same as any other failure,
// because nothing else will ever report it.
func (p *VideoPipeline) spawn(name, projectID string, onPanic map[string]interface{}, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Errorf("%s task for project %s panicked: %v", name, projectID, r)
				if err := p.updateProject(projectID, onPanic); err != nil {
					p.log.WithError(err).Errorf("failed to record %s task failure for project %s", name, projectID)
				}
			}
		}()
		fn()
	}()
}

func (p *VideoPipeline) runUpload(ctx context.Context, projectID string) {
	project, err := p.getProject(projectID)
	if err != nil {
		p.log.WithError(err).Errorf("upload task could not load project %s", projectID)
		return
	}

	if err := p.updateProject(projectID, map[string]interface{}{
		colUploadStatus: models.UploadInProgress,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to mark project %s as uploading", projectID)
		return
	}

	videoPath := project.LocalVideoPath
	videoID, err := p.platform.UploadVideo(ctx, videoPath, project.Title, project.Abstract, p.keywords)
	if err != nil {
		p.log.WithError(err).Errorf("all clients failed, couldn't upload the video for project %s", projectID)
		p.failUpload(projectID)
		return
	}

	// The remote copy is authoritative now; the local file only wastes disk.
	if err := os.Remove(videoPath); err != nil {
		p.log.WithError(err).Errorf("could not delete local video file %s", videoPath)
	} else {
		p.log.Infof("local video %s was deleted", videoPath)
	}

	if err := p.updateProject(projectID, map[string]interface{}{
		colLocalVideoPath: "",
		colYoutubeVideoID: videoID,
		colUploadStatus:   models.UploadCompleted,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to record completed upload for project %s", projectID)
		return
	}

	p.runProcessingPoll(ctx, projectID)
}

func (p *VideoPipeline) runOverwrite(ctx context.Context, projectID string) {
	project, err := p.getProject(projectID)
	if err != nil {
		p.log.WithError(err).Errorf("overwrite task could not load project %s", projectID)
		return
	}

	if err := p.updateProject(projectID, map[string]interface{}{
		colUploadStatus: models.UploadDeletingCurrent,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to mark project %s as deleting current video", projectID)
		return
	}

	result := p.platform.DeleteVideo(ctx, project.YoutubeVideoID)
	if !result.VideoAbsent() {
		p.failUpload(projectID)
		return
	}

	if err := p.updateProject(projectID, map[string]interface{}{
		colYoutubeVideoID: "",
		colDocumentReady:  false,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to clear replaced video for project %s", projectID)
		return
	}

	p.runUpload(ctx, projectID)
}

// runProcessingPoll watches the remote transcoding job until it reaches a
// terminal state. There is no retry cap: the loop lives as long as the remote
// job does, which the platform bounds, not us.
func (p *VideoPipeline) runProcessingPoll(ctx context.Context, projectID string) {
	for {
		project, err := p.getProject(projectID)
		if err != nil {
			p.log.WithError(err).Errorf("processing poll could not load project %s", projectID)
			return
		}

		// Let concurrent status readers see that a poll is in flight.
		if err := p.updateProject(projectID, map[string]interface{}{
			colProcessingStatus: models.ProcessingChecking,
		}); err != nil {
			p.log.WithError(err).Errorf("failed to mark project %s as checking", projectID)
		}

		resp, err := p.platform.GetProcessingDetails(ctx, project.YoutubeVideoID)
		if err != nil {
			// Transport or quota trouble; leave the status unset for this
			// round and try again next tick.
			p.log.WithError(err).Warnf("couldn't get processing details for project %s", projectID)
			if err := p.updateProject(projectID, map[string]interface{}{
				colProcessingStatus: models.ProcessingNone,
			}); err != nil {
				p.log.WithError(err).Errorf("failed to reset checking status for project %s", projectID)
			}
		} else {
			result := evaluateProcessing(resp)
			if len(result.updates) > 0 {
				if err := p.updateProject(projectID, result.updates); err != nil {
					p.log.WithError(err).Errorf("failed to persist processing status for project %s", projectID)
				}
			}
			if result.terminal {
				return
			}
		}

		time.Sleep(p.pollInterval)
	}
}

func (p *VideoPipeline) runPublish(ctx context.Context, projectID string) {
	project, err := p.getProject(projectID)
	if err != nil {
		p.log.WithError(err).Errorf("publish task could not load project %s", projectID)
		return
	}

	if err := p.platform.SetVideoPublic(ctx, project.YoutubeVideoID); err != nil {
		p.log.WithError(err).Errorf("all clients failed, couldn't set video %s to public", project.YoutubeVideoID)
		if err := p.updateProject(projectID, map[string]interface{}{
			colPublicStatus: models.PublicFailed,
		}); err != nil {
			p.log.WithError(err).Errorf("failed to record publish failure for project %s", projectID)
		}
		return
	}

	// The one place documentApproved flips to true.
	if err := p.updateProject(projectID, map[string]interface{}{
		colPublicStatus:     models.PublicSuccess,
		colDocumentApproved: true,
		colDocumentEditable: false,
		colDocumentReady:    true,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to record publish success for project %s", projectID)
	}
}

func (p *VideoPipeline) failUpload(projectID string) {
	if err := p.updateProject(projectID, map[string]interface{}{
		colUploadStatus: models.UploadFailed,
	}); err != nil {
		p.log.WithError(err).Errorf("failed to record upload failure for project %s", projectID)
	}
}

func (p *VideoPipeline) getProject(id string) (*models.Project, error) {
	var project models.Project
	if err := p.db.Where("id = ?", id).First(&project).Error; err != nil {
		return nil, fmt.Errorf("error fetching project %s: %w", id, err)
	}
	return &project, nil
}

func (p *VideoPipeline) updateProject(id string, fields map[string]interface{}) error {
	return p.db.Model(&models.Project{}).Where("id = ?", id).Updates(fields).Error
}
