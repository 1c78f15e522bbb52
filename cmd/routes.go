package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/avrlab/lab-projects-backend/internal/models"
	"github.com/avrlab/lab-projects-backend/service"
)

const statusStreamInterval = 3 * time.Second

var validate = validator.New()

// documentSubmission is the trigger the CRUD layer sends once the student's
// files are saved to disk. Form handling and storage happen upstream; this
// surface only needs the stored video path.
type documentSubmission struct {
	LocalVideoPath string `json:"localVideoPath" validate:"required"`
	Abstract       string `json:"abstract"`
}

func registerProjectRoutes(mux *http.ServeMux, db *gorm.DB, pipeline *service.VideoPipeline, log *logrus.Logger) {
	getProject := func(w http.ResponseWriter, r *http.Request) *models.Project {
		var project models.Project
		err := db.Where("id = ?", r.PathValue("id")).First(&project).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				http.Error(w, "Project not found", http.StatusNotFound)
			} else {
				log.WithError(err).Error("error fetching project")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return nil
		}
		return &project
	}

	mux.HandleFunc("POST /projects/{id}/document", func(w http.ResponseWriter, r *http.Request) {
		project := getProject(w, r)
		if project == nil {
			return
		}

		// One upload/poll task per project at a time. A submission that
		// arrives while one is running is the caller's error.
		if project.VideoInFlight() {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "uploadInProgress"})
			return
		}

		var submission documentSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": "invalid JSON body"})
			return
		}
		if err := validate.Struct(&submission); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
			return
		}

		updates := map[string]interface{}{
			"local_video_path":               submission.LocalVideoPath,
			"upload_status":                  models.UploadInProgress,
			"processing_status":              models.ProcessingNone,
			"processing_failure_reason":      "",
			"processing_estimated_time_left": "",
			"public_status":                  models.PublicNone,
			"document_approved":              false,
			"document_editable":              true,
		}
		if submission.Abstract != "" {
			updates["abstract"] = submission.Abstract
		}
		if err := db.Model(&models.Project{}).Where("id = ?", project.ID).Updates(updates).Error; err != nil {
			log.WithError(err).Error("error updating project for document submission")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Replacing an existing remote video deletes it first.
		if project.YoutubeVideoID != "" {
			pipeline.StartOverwrite(project.ID)
		} else {
			pipeline.StartUpload(project.ID)
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "success"})
	})

	mux.HandleFunc("GET /projects/{id}/upload-status", func(w http.ResponseWriter, r *http.Request) {
		project := getProject(w, r)
		if project == nil {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// Snapshot stream: one event every tick, no replay, for as long as
		// the client stays connected. The stream never waits on the
		// background task, it only reads its latest persisted state.
		ticker := time.NewTicker(statusStreamInterval)
		defer ticker.Stop()

		for {
			var current models.Project
			if err := db.Where("id = ?", project.ID).First(&current).Error; err != nil {
				log.WithError(err).Error("error refreshing project for status stream")
				return
			}

			payload, err := json.Marshal(current.VideoStatus())
			if err != nil {
				log.WithError(err).Error("error encoding status snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	})

	mux.HandleFunc("POST /projects/{id}/public-status", func(w http.ResponseWriter, r *http.Request) {
		project := getProject(w, r)
		if project == nil {
			return
		}

		afterChangeAttempt := r.FormValue("afterChangeAttempt") == "true"

		// A failed publish stays failed until the admin retries explicitly:
		// the probe that knows an attempt already ran gets the failure back
		// instead of kicking off another one.
		if project.PublicStatus == models.PublicFailed && afterChangeAttempt {
			writeJSON(w, http.StatusOK, map[string]string{"status": string(models.PublicFailed)})
			return
		}

		if project.PublicStatus != models.PublicChanging && project.PublicStatus != models.PublicSuccess {
			if err := db.Model(&models.Project{}).Where("id = ?", project.ID).
				Update("public_status", models.PublicChanging).Error; err != nil {
				log.WithError(err).Error("error marking project as changing visibility")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			pipeline.StartPublish(project.ID)
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": string(project.PublicStatus)})
	})
}

func registerAuthRoutes(mux *http.ServeMux, pool *service.ClientPool, frontendURL string, log *logrus.Logger) {
	mux.HandleFunc("GET /auth/youtube/{client}/authorize", func(w http.ResponseWriter, r *http.Request) {
		clientNum, err := strconv.Atoi(r.PathValue("client"))
		if err != nil {
			http.Error(w, "Invalid client number", http.StatusBadRequest)
			return
		}

		authURL, err := pool.AuthURL(clientNum)
		if err != nil {
			log.WithError(err).Error("error building auth URL")
			http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/youtube/callback", func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		if state == "" {
			http.Error(w, "State token not found", http.StatusBadRequest)
			return
		}

		clientNum, err := pool.ValidateState(state)
		if err != nil {
			log.WithError(err).Error("validating state failed")
			http.Error(w, "Invalid or expired session", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			return
		}

		if err := pool.ExchangeAndSaveToken(r.Context(), clientNum, code); err != nil {
			log.WithError(err).Error("handling callback failed")
			http.Error(w, "Failed to handle callback", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
