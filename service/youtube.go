package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	youtube "google.golang.org/api/youtube/v3"
)

const videoCategoryScienceTech = "28"

// DeleteReason explains a failed delete. videoNotFound is success-equivalent
// for every caller: the desired end state ("video absent") already holds.
type DeleteReason string

const (
	DeleteReasonNone     DeleteReason = ""
	DeleteReasonNotFound DeleteReason = "videoNotFound"
	DeleteReasonQuota    DeleteReason = "quotaExceeded"
	DeleteReasonOther    DeleteReason = "other"
)

type DeleteResult struct {
	Deleted bool
	Reason  DeleteReason
}

// VideoAbsent reports whether the video no longer exists on the platform,
// whether because the delete worked or because it was already gone.
func (r DeleteResult) VideoAbsent() bool {
	return r.Deleted || r.Reason == DeleteReasonNotFound
}

// YouTubeService performs the remote video operations. Every call tries the
// credential pool in order so one client's exhausted quota does not fail the
// operation.
type YouTubeService struct {
	pool clientSource
	log  *logrus.Logger

	// uploadURL and sleep are swapped out by tests; production uses the
	// platform endpoint and real backoff sleeps.
	uploadURL string
	sleep     func(time.Duration)
}

func NewYouTubeService(pool *ClientPool, log *logrus.Logger) *YouTubeService {
	return &YouTubeService{
		pool:      pool,
		log:       log,
		uploadURL: uploadEndpoint,
		sleep:     time.Sleep,
	}
}

// UploadVideo uploads the local file as an unlisted video and returns the
// assigned video id. A random correlation tag is appended to the keyword list
// before upload; it is only used to find and delete the orphan if the upload
// dies partway through.
func (s *YouTubeService) UploadVideo(ctx context.Context, path, title, description string, keywords []string) (string, error) {
	tag, err := randomHex(8)
	if err != nil {
		return "", fmt.Errorf("failed to generate correlation tag: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        append(append([]string{}, keywords...), tag),
			CategoryId:  videoCategoryScienceTech,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "unlisted",
		},
	}

	return forEachClient(ctx, s.pool, "upload", func(c *Client) (string, error) {
		s.log.Infof("client %d trying to upload...", c.Num)
		return s.uploadWithClient(ctx, c, path, video, tag)
	})
}

func (s *YouTubeService) uploadWithClient(ctx context.Context, c *Client, path string, video *youtube.Video, tag string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat video file: %w", err)
	}

	upload := newResumableUpload(c.HTTPClient, file, info.Size(), s.log.WithField("client", c.Num))
	upload.endpoint = s.uploadURL
	upload.sleep = s.sleep

	videoID, err := upload.run(ctx, video)
	if err != nil {
		// A session that died after its retry budget (or with a response we
		// can't interpret) may have left a partial upload behind. Find it by
		// its correlation tag and delete it, best effort.
		if isFatalUploadError(err) {
			s.deletePartialUpload(ctx, c, tag)
		}
		return "", err
	}
	return videoID, nil
}

func isFatalUploadError(err error) bool {
	return errors.Is(err, ErrRetriesExceeded) || errors.Is(err, ErrUnexpectedUploadResponse)
}

// DeleteVideo removes the video from the platform. Used directly by the
// overwrite flow and by orphan cleanup.
func (s *YouTubeService) DeleteVideo(ctx context.Context, videoID string) DeleteResult {
	_, err := forEachClient(ctx, s.pool, "delete", func(c *Client) (struct{}, error) {
		s.log.Infof("client %d trying to delete video %s...", c.Num, videoID)
		return struct{}{}, c.Service.Videos.Delete(videoID).Do()
	})
	if err == nil {
		s.log.Infof("successfully deleted video with id: %s", videoID)
		return DeleteResult{Deleted: true}
	}

	switch {
	case isVideoNotFound(err):
		s.log.Infof("couldn't delete video %s because it was not found", videoID)
		return DeleteResult{Reason: DeleteReasonNotFound}
	case isQuotaExceeded(err):
		s.log.Warnf("all clients failed, couldn't delete video %s: %v", videoID, err)
		return DeleteResult{Reason: DeleteReasonQuota}
	default:
		s.log.Errorf("all clients failed, couldn't delete video %s: %v", videoID, err)
		return DeleteResult{Reason: DeleteReasonOther}
	}
}

// SetVideoPublic flips a finished video to public visibility.
func (s *YouTubeService) SetVideoPublic(ctx context.Context, videoID string) error {
	update := &youtube.Video{
		Id: videoID,
		Status: &youtube.VideoStatus{
			PrivacyStatus:       "public",
			Embeddable:          true,
			PublicStatsViewable: true,
			ForceSendFields:     []string{"Embeddable", "PublicStatsViewable"},
		},
	}

	_, err := forEachClient(ctx, s.pool, "set video public", func(c *Client) (struct{}, error) {
		s.log.Infof("client %d trying to set video %s to public...", c.Num, videoID)
		_, err := c.Service.Videos.Update([]string{"status"}, update).Do()
		return struct{}{}, err
	})
	if err != nil {
		return err
	}
	s.log.Infof("successfully set video %s to public", videoID)
	return nil
}

// GetProcessingDetails queries upload and processing status for a video.
func (s *YouTubeService) GetProcessingDetails(ctx context.Context, videoID string) (*youtube.VideoListResponse, error) {
	return forEachClient(ctx, s.pool, "get processing details", func(c *Client) (*youtube.VideoListResponse, error) {
		return c.Service.Videos.List([]string{"processingDetails", "status"}).Id(videoID).Do()
	})
}

// deletePartialUpload searches the client's own videos for the correlation
// tag and deletes the match. Its failure never changes the upload outcome.
func (s *YouTubeService) deletePartialUpload(ctx context.Context, c *Client, tag string) {
	s.log.Infof("client %d trying to delete partially uploaded video %s", c.Num, tag)

	search, err := c.Service.Search.List([]string{"snippet"}).
		ForMine(true).
		Type("video").
		Q(tag).
		Do()
	if err != nil {
		s.log.WithError(err).Errorf("failed to search for partially uploaded video %s", tag)
		return
	}

	// PageInfo.TotalResults is an estimate; only the returned items decide
	// whether the orphan was found unambiguously.
	if len(search.Items) != 1 {
		s.log.Errorf("tried to delete partially uploaded video %s but the video was not found", tag)
		return
	}

	videoID := search.Items[0].Id.VideoId
	if err := c.Service.Videos.Delete(videoID).Do(); err != nil {
		s.log.WithError(err).Errorf("failed to delete partially uploaded video %s", videoID)
		return
	}
	s.log.Infof("deleted partially uploaded video %s", videoID)
}
