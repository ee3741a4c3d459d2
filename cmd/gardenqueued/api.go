package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/greengoods/gardenqueue"
	"github.com/greengoods/gardenqueue/config"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

// maxAttachmentBytes bounds a single uploaded media blob.
const maxAttachmentBytes = 16 << 20

func newRouter(q *gardenqueue.Queue, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	api := &apiHandler{queue: q}

	r.Get("/healthz", api.health)
	r.Get("/stats", api.stats)
	r.Get("/works", api.cachedWorks)
	r.Post("/flush", api.flush)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", api.listJobs)
		r.Post("/", api.addJob)
		r.Get("/{id}", api.getJob)
		r.Delete("/{id}", api.removeJob)
		r.Put("/{id}/attachments/{name}", api.attachMedia)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

type apiHandler struct {
	queue *gardenqueue.Queue
}

type addJobRequest struct {
	Kind    job.Kind        `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Meta    map[string]any  `json:"meta,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	ChainID int64           `json:"chain_id,omitempty"`
}

type addJobResponse struct {
	Job           job.Job `json:"job"`
	OfflineTxHash string  `json:"offline_tx_hash"`
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.queue.Monitor.Online(),
	})
}

func (h *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *apiHandler) cachedWorks(w http.ResponseWriter, r *http.Request) {
	works, err := h.queue.Engine.CachedWorks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, works)
}

func (h *apiHandler) flush(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Engine.Flush(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.queue.Engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *apiHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	f := job.Filter{
		Kind:   job.Kind(r.URL.Query().Get("kind")),
		Status: job.Status(r.URL.Query().Get("status")),
		Sender: r.URL.Query().Get("sender"),
	}
	if v := r.URL.Query().Get("synced"); v != "" {
		synced, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid synced value"})
			return
		}
		f.Synced = &synced
	}

	jobs, err := h.queue.Engine.Jobs(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *apiHandler) addJob(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	added, err := h.queue.Engine.AddJob(r.Context(), job.Job{
		Kind:    req.Kind,
		Payload: req.Payload,
		Meta:    req.Meta,
		Sender:  req.Sender,
		ChainID: req.ChainID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addJobResponse{
		Job:           added,
		OfflineTxHash: h.queue.Engine.OfflineTxHash(added.ID),
	})
}

func (h *apiHandler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.queue.Engine.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *apiHandler) removeJob(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Engine.RemoveJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) attachMedia(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAttachmentBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if len(data) > maxAttachmentBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "attachment too large"})
		return
	}

	err = h.queue.Engine.AttachMedia(r.Context(), job.Attachment{
		JobID:       chi.URLParam(r, "id"),
		Name:        chi.URLParam(r, "name"),
		ContentType: r.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrJobNotFound) || errors.Is(err, errors.ErrAttachmentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrUnknownKind) || errors.Is(err, errors.ErrEmptyKind):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.IsQuota(err):
		writeJSON(w, http.StatusInsufficientStorage, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
