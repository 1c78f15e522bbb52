package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	youtube "google.golang.org/api/youtube/v3"
)

const (
	uploadEndpoint = "https://www.googleapis.com/upload/youtube/v3/videos"

	// Maximum number of times to retry a session before giving up.
	maxUploadRetries = 10

	// Chunk sizes must be a multiple of 256 KiB per the resumable protocol.
	defaultChunkSize = 8 * 1024 * 1024
)

// resumableUpload drives one resumable upload session. The protocol tracks
// acknowledged byte offsets, so a retried chunk resumes where the last
// acknowledged one left off rather than re-sending bytes. Retries stay on the
// same session and the same client identity; switching clients for quota
// failures is the rotation layer's job, not this one's.
type resumableUpload struct {
	client    *http.Client
	endpoint  string
	file      *os.File
	size      int64
	chunkSize int64
	log       *logrus.Entry

	// sleep is swapped out by tests so backoff does not slow them down.
	sleep func(time.Duration)
}

func newResumableUpload(client *http.Client, file *os.File, size int64, log *logrus.Entry) *resumableUpload {
	return &resumableUpload{
		client:    client,
		endpoint:  uploadEndpoint,
		file:      file,
		size:      size,
		chunkSize: defaultChunkSize,
		log:       log,
		sleep:     time.Sleep,
	}
}

// start opens the session: it sends the video metadata and receives the
// session URI all further chunks are sent to.
func (u *resumableUpload) start(ctx context.Context, video *youtube.Video) (string, error) {
	body, err := json.Marshal(video)
	if err != nil {
		return "", fmt.Errorf("failed to encode video metadata: %w", err)
	}

	url := u.endpoint + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(u.size, 10))
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to open upload session: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return "", err
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("%w: session response carried no session URI", ErrUnexpectedUploadResponse)
	}
	return sessionURL, nil
}

// run opens the session and uploads the file chunk by chunk until a terminal
// response, applying jittered exponential backoff to transient failures.
// Session-open failures draw on the same retry budget and classification as
// chunk failures, so a flaky 5xx during init is backed off here rather than
// surfaced as a client failure.
func (u *resumableUpload) run(ctx context.Context, metadata *youtube.Video) (string, error) {
	var sessionURL string
	var offset int64
	retry := 0

	for {
		var video *youtube.Video
		var newOffset int64
		var err error

		if sessionURL == "" {
			sessionURL, err = u.start(ctx, metadata)
		} else {
			video, newOffset, err = u.nextChunk(ctx, sessionURL, offset)
		}

		if err == nil {
			if video != nil {
				if video.Id == "" {
					u.log.Errorf("upload finished but response carried no video id")
					return "", ErrUnexpectedUploadResponse
				}
				u.log.Infof("video id '%s' was successfully uploaded", video.Id)
				return video.Id, nil
			}
			// Non-terminal continuation, keep going from the acknowledged
			// offset.
			offset = newOffset
			continue
		}

		if !isRetryableUploadError(err) {
			return "", err
		}

		u.log.WithError(err).Errorf("a retriable upload error occurred")
		retry++
		if retry > maxUploadRetries {
			u.log.Errorf("no longer attempting to retry after %d attempts", retry-1)
			return "", fmt.Errorf("%w: %v", ErrRetriesExceeded, err)
		}

		maxSleep := float64(int64(1) << retry)
		sleepSeconds := rand.Float64() * maxSleep
		u.log.Errorf("sleeping %f seconds and then retrying...", sleepSeconds)
		u.sleep(time.Duration(sleepSeconds * float64(time.Second)))

		// With no session yet there is nothing to probe; retry the init.
		if sessionURL == "" {
			continue
		}

		// Ask the session which offset was last acknowledged before
		// resending.
		acked, done, probed, probeErr := u.currentOffset(ctx, sessionURL)
		if probeErr != nil {
			continue
		}
		if done {
			if probed == nil || probed.Id == "" {
				return "", ErrUnexpectedUploadResponse
			}
			return probed.Id, nil
		}
		offset = acked
	}
}

// nextChunk sends the chunk starting at offset. It returns a video on a
// terminal success, or the next offset to send from on a 308 continuation.
func (u *resumableUpload) nextChunk(ctx context.Context, sessionURL string, offset int64) (*youtube.Video, int64, error) {
	n := u.chunkSize
	if offset+n > u.size {
		n = u.size - offset
	}
	reader := io.NewSectionReader(u.file, offset, n)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create chunk request: %w", err)
	}
	req.ContentLength = n
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", offset, offset+n-1, u.size))

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("chunk request failed: %w", err)
	}
	defer resp.Body.Close()

	return u.parseChunkResponse(resp, offset+n)
}

// currentOffset probes the session for the last acknowledged offset. The
// session may also turn out to be already complete.
func (u *resumableUpload) currentOffset(ctx context.Context, sessionURL string) (int64, bool, *youtube.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, nil)
	if err != nil {
		return 0, false, nil, err
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", u.size))

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, false, nil, err
	}
	defer resp.Body.Close()

	video, next, err := u.parseChunkResponse(resp, 0)
	if err != nil {
		return 0, false, nil, err
	}
	if video != nil {
		return 0, true, video, nil
	}
	return next, false, nil, nil
}

// parseChunkResponse maps a session response to one of the three outcomes:
// terminal success (video), continuation (next offset), or an error.
func (u *resumableUpload) parseChunkResponse(resp *http.Response, sentUpTo int64) (*youtube.Video, int64, error) {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var video youtube.Video
		if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnexpectedUploadResponse, err)
		}
		return &video, 0, nil

	case resp.StatusCode == 308:
		// Permanent redirect doubles as "resume incomplete" in this
		// protocol. The Range header holds the acknowledged bytes; absent
		// Range means nothing was acknowledged yet.
		if rangeHeader := resp.Header.Get("Range"); rangeHeader != "" {
			return nil, parseAckedOffset(rangeHeader, sentUpTo), nil
		}
		return nil, 0, nil

	default:
		if err := googleapi.CheckResponse(resp); err != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: status %d", ErrUnexpectedUploadResponse, resp.StatusCode)
	}
}

// parseAckedOffset turns a "bytes=0-12345" Range header into the next offset
// to send from.
func parseAckedOffset(rangeHeader string, fallback int64) int64 {
	value := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return fallback
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fallback
	}
	return end + 1
}
