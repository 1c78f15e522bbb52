package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

// staticPool hands out the same client on every attempt; pool size 1 keeps
// rotation out of the picture so the per-session behavior is observable.
type staticPool struct {
	client *Client
}

func (p *staticPool) Size() int { return 1 }

func (p *staticPool) Authenticate(ctx context.Context, clientNum int) (*Client, error) {
	return p.client, nil
}

// platformServer serves the resumable session plus the search and delete API
// endpoints, recording what orphan cleanup asked for. Requests arrive
// sequentially from a single upload, so plain fields suffice.
type platformServer struct {
	*httptest.Server

	chunkFailStatus int
	chunkFailBudget int
	chunkFailures   int

	searchResponse string
	searchCalls    int
	searchQuery    string
	deleteCalls    int
	deletedID      string

	uploadedTags []string
}

func newPlatformServer(t *testing.T) *platformServer {
	t.Helper()
	s := &platformServer{
		searchResponse: `{"pageInfo": {"totalResults": 1}, "items": [{"id": {"videoId": "orphan-1"}}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		var metadata youtube.Video
		require.NoError(t, json.NewDecoder(r.Body).Decode(&metadata))
		s.uploadedTags = metadata.Snippet.Tags
		w.Header().Set("Location", s.URL+"/session")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		// Offset probe after a failure: nothing acknowledged yet.
		if strings.HasPrefix(r.Header.Get("Content-Range"), "bytes */") {
			w.WriteHeader(308)
			return
		}
		if s.chunkFailures < s.chunkFailBudget {
			s.chunkFailures++
			w.WriteHeader(s.chunkFailStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "vid-final", "kind": "youtube#video"}`)
	})
	mux.HandleFunc("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		s.searchCalls++
		s.searchQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, s.searchResponse)
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		s.deleteCalls++
		s.deletedID = r.URL.Query().Get("id")
		w.WriteHeader(http.StatusNoContent)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestYouTubeService(t *testing.T, server *platformServer) *YouTubeService {
	t.Helper()
	apiService, err := youtube.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	log := logrus.New()
	return &YouTubeService{
		pool: &staticPool{client: &Client{
			Num:        1,
			Service:    apiService,
			HTTPClient: server.Client(),
		}},
		log:       log,
		uploadURL: server.URL + "/upload",
		sleep:     func(time.Duration) {},
	}
}

func TestUploadVideoCleansUpOrphanOnRetryExhaustion(t *testing.T) {
	server := newPlatformServer(t)
	server.chunkFailStatus = http.StatusInternalServerError
	server.chunkFailBudget = 1000
	svc := newTestYouTubeService(t, server)

	_, err := svc.UploadVideo(context.Background(), localVideo(t), "Test Project", "abstract", []string{"avr lab"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllClientsFailed)
	assert.ErrorIs(t, err, ErrRetriesExceeded)

	// Exactly one cleanup attempt, searching by the correlation tag that was
	// appended to the upload's keywords.
	require.Equal(t, 1, server.searchCalls)
	require.NotEmpty(t, server.uploadedTags)
	tag := server.uploadedTags[len(server.uploadedTags)-1]
	assert.NotEqual(t, "avr lab", tag)
	assert.Equal(t, tag, server.searchQuery)
	assert.Equal(t, 1, server.deleteCalls)
	assert.Equal(t, "orphan-1", server.deletedID)
}

func TestUploadVideoDoesNotCleanUpAfterTransientFailures(t *testing.T) {
	server := newPlatformServer(t)
	server.chunkFailStatus = http.StatusServiceUnavailable
	server.chunkFailBudget = 3
	svc := newTestYouTubeService(t, server)

	videoID, err := svc.UploadVideo(context.Background(), localVideo(t), "Test Project", "abstract", []string{"avr lab"})

	require.NoError(t, err)
	assert.Equal(t, "vid-final", videoID)
	assert.Equal(t, 0, server.searchCalls)
	assert.Equal(t, 0, server.deleteCalls)
}

func TestUploadVideoCleanupSkipsDeleteWithoutAMatch(t *testing.T) {
	server := newPlatformServer(t)
	server.chunkFailStatus = http.StatusInternalServerError
	server.chunkFailBudget = 1000
	// totalResults over-reports; only the returned items count.
	server.searchResponse = `{"pageInfo": {"totalResults": 1}, "items": []}`
	svc := newTestYouTubeService(t, server)

	_, err := svc.UploadVideo(context.Background(), localVideo(t), "Test Project", "abstract", []string{"avr lab"})

	require.Error(t, err)
	assert.Equal(t, 1, server.searchCalls)
	assert.Equal(t, 0, server.deleteCalls)
}
