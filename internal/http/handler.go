// Package httpapp exposes the orchestrator and the loaded catalog over HTTP.
package httpapp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/http/dto"
	"github.com/cesargomez89/flixetl/internal/logger"
	"github.com/cesargomez89/flixetl/internal/store"
)

// Orchestrator is the part of the pipeline runner the API drives.
type Orchestrator interface {
	Build(ctx context.Context, force bool) (*domain.PipelineRun, error)
	Start(ctx context.Context, force bool) (string, error)
	Status() map[string]domain.TaskStatus
	LastRun() *domain.PipelineRun
	Running() bool
}

type Handler struct {
	Runner       Orchestrator
	DB           *store.DB
	SettingsRepo *store.SettingsRepo
	Logger       *logger.Logger
}

func NewHandler(runner Orchestrator, db *store.DB, sr *store.SettingsRepo, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Runner:       runner,
		DB:           db,
		SettingsRepo: sr,
		Logger:       log.WithComponent("http"),
	}
}

// NewRouter mounts the API behind access logging and panic recovery.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/rebuild", h.Rebuild)
		r.Get("/status", h.Status)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)

		r.Get("/categories", h.GetCategories)
		r.Put("/categories", h.PutCategories)
		r.Delete("/categories", h.ResetCategories)

		r.Get("/catalog", h.CatalogCounts)
		r.Get("/movies", h.ListMovies)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// internalError logs err and hides it from the client.
func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.Logger.Error(msg, "error", err)
	h.writeError(w, http.StatusInternalServerError, msg)
}
