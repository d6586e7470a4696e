package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/parser"
	"github.com/stratix/okrimport/internal/progress"
	"github.com/stratix/okrimport/internal/storage"
)

// Handler exposes the import pipeline as REST endpoints under /api/imports.
type Handler struct {
	service *Service
	stream  *progress.SSEHandler
}

// NewHTTPHandler wraps the service with its REST surface.
func NewHTTPHandler(service *Service, stream *progress.SSEHandler) http.Handler {
	return &Handler{service: service, stream: stream}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/notify"):
		h.handleNotify(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/process"):
		h.handleProcess(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/preview"):
		h.handlePreview(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/history"):
		h.handleHistory(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
		h.handleStatus(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
		h.handleEvents(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/items"):
		h.handleItems(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type notifyPayload struct {
	ObjectPath string `json:"objectPath"`
}

type notifyResponse struct {
	JobID     uuid.UUID              `json:"jobId"`
	Status    domain.ImportJobStatus `json:"status"`
	Duplicate bool                   `json:"duplicate"`
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var payload notifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.ObjectPath) == "" {
		http.Error(w, "objectPath is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.Notify(r.Context(), scope, payload.ObjectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "uploaded object not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to register import", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, notifyResponse{
		JobID:     result.Job.ID,
		Status:    result.Job.Status,
		Duplicate: result.Duplicate,
	})
}

type processPayload struct {
	JobID *uuid.UUID `json:"jobId,omitempty"`
}

type processResponse struct {
	JobID       uuid.UUID              `json:"jobId"`
	Status      domain.ImportJobStatus `json:"status"`
	ProgressURL *string                `json:"progressUrl,omitempty"`
	Progress    *StatusProgress        `json:"progress,omitempty"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	// An empty body means "process everything pending for my tenant".
	var payload processPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	if payload.JobID == nil {
		jobs, err := h.service.ProcessPending(r.Context(), scope, 10)
		if err != nil {
			http.Error(w, "failed to process pending imports", http.StatusInternalServerError)
			return
		}
		responses := make([]processResponse, 0, len(jobs))
		for _, job := range jobs {
			responses = append(responses, asyncResponse(job))
		}
		writeJSON(w, http.StatusOK, map[string]any{"triggered": responses})
		return
	}

	result, err := h.service.Trigger(r.Context(), scope, *payload.JobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to process import", http.StatusInternalServerError)
		return
	}

	if result.Inline || result.Job.Status.Terminal() {
		resp := asyncResponse(result.Job)
		resp.ProgressURL = nil
		resp.Progress = &StatusProgress{
			Percentage: result.Job.Percentage(),
			Total:      result.Job.TotalRows,
			Processed:  result.Job.ProcessedRows,
			Successful: result.Job.SuccessRows,
			Failed:     result.Job.ErrorRows,
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, asyncResponse(result.Job))
}

func asyncResponse(job domain.ImportJob) processResponse {
	url := fmt.Sprintf("/api/imports/%s/events", job.ID)
	return processResponse{JobID: job.ID, Status: job.Status, ProgressURL: &url}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/status")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	status, err := h.service.GetStatus(r.Context(), scope, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load import status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireScope(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/events")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	h.stream.ServeJob(w, r, jobID)
}

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	jobID, ok := jobIDFromPath(r.URL.Path, "/items")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	var status *domain.ImportItemStatus
	if raw := query.Get("status"); raw != "" {
		value := domain.ImportItemStatus(raw)
		status = &value
	}
	limit, _ := strconv.Atoi(query.Get("pageSize"))
	page, _ := strconv.Atoi(query.Get("page"))
	if limit <= 0 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}

	items, err := h.service.ListItems(r.Context(), scope, jobID, status, limit, (page-1)*limit)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "import job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to list import items", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	filter := domain.ImportHistoryFilter{}
	if raw := query.Get("status"); raw != "" {
		status := domain.ImportJobStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("area"); raw != "" {
		areaID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid area id", http.StatusBadRequest)
			return
		}
		filter.AreaID = &areaID
	}
	if raw := query.Get("from"); raw != "" {
		from, err := parser.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := parser.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		// Inclusive end of day.
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	filter.Page, _ = strconv.Atoi(query.Get("page"))
	filter.PageSize, _ = strconv.Atoi(query.Get("pageSize"))

	history, err := h.service.History(r.Context(), scope, filter)
	if err != nil {
		http.Error(w, "failed to load import history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.RequireScope(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var payload PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload.Rows) == 0 {
		http.Error(w, "rows are required", http.StatusBadRequest)
		return
	}

	preview, err := h.service.Preview(r.Context(), scope, payload)
	if err != nil {
		http.Error(w, "failed to validate rows", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// jobIDFromPath extracts the job id from /api/imports/{id}/<leaf>.
func jobIDFromPath(path, leaf string) (uuid.UUID, bool) {
	trimmed := strings.TrimSuffix(path, leaf)
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
