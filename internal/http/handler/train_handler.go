package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/price-horizon-learner/internal/learning"
)

// JobQueue is the part of learning.JobQueue the API uses.
type JobQueue interface {
	Submit(req learning.TrainRequest) (learning.Job, error)
	Get(id string) (learning.Job, bool)
	List() []learning.Job
	Depth() int
}

// TrainHandler は学習ジョブ関連のHTTPリクエストを処理します。
type TrainHandler struct {
	jobs   JobQueue
	events learning.EventStream
	logger *zap.Logger
}

// NewTrainHandler は新しいTrainHandlerを作成します。events may be nil, in
// which case the stream route is not registered.
func NewTrainHandler(jobs JobQueue, events learning.EventStream, logger *zap.Logger) *TrainHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainHandler{jobs: jobs, events: events, logger: logger}
}

// RegisterRoutes はchiルーターに学習ジョブ関連のルートを登録します。
func (h *TrainHandler) RegisterRoutes(r chi.Router) {
	r.Post("/train", h.StartTraining)
	r.Get("/jobs", h.ListJobs)
	if h.events != nil {
		r.Get("/jobs/stream", h.StreamJobs)
	}
	r.Get("/jobs/{id}", h.GetJob)
}

type trainResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// StartTraining validates the payload and queues a training job.
func (h *TrainHandler) StartTraining(w http.ResponseWriter, r *http.Request) {
	var req learning.TrainRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if err := validate.StructCtx(r.Context(), req); err != nil {
		details, msg := validationErrors(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "failed", Error: msg, Details: details})
		return
	}

	job, err := h.jobs.Submit(req)
	switch {
	case errors.Is(err, learning.ErrQueueFull), errors.Is(err, learning.ErrQueueClosed):
		h.logger.Warn("Training request rejected", zap.String("ticker", req.Ticker), zap.Error(err))
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to queue training job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue training job")
		return
	}

	h.logger.Info("Training job queued", zap.String("jobID", job.ID), zap.String("ticker", req.Ticker))
	writeJSON(w, http.StatusAccepted, trainResponse{
		Status:  "started",
		JobID:   job.ID,
		Message: fmt.Sprintf("Training started for %s", req.Ticker),
	})
}

// ListJobs returns every known job, newest first.
func (h *TrainHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.List())
}

// GetJob returns one job.
func (h *TrainHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
