package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/http/dto"
	"github.com/cesargomez89/flixetl/internal/normalize"
	"github.com/cesargomez89/flixetl/internal/store"
)

const maxBodyBytes = 1 << 20

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		h.Logger.Error("Health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": h.Runner.Running()})
}

// Rebuild triggers a build. force defaults to true; wait=true blocks until
// the build ends and returns its report. A disconnecting client does not
// cancel the build.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	force, err := boolQuery(r, "force", true)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "force must be a boolean")
		return
	}
	wait, err := boolQuery(r, "wait", false)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "wait must be a boolean")
		return
	}

	if wait {
		run, err := h.Runner.Build(context.WithoutCancel(r.Context()), force)
		if errors.Is(err, domain.ErrBuildInProgress) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			h.internalError(w, "Failed to run build", err)
			return
		}
		h.writeJSON(w, http.StatusOK, dto.NewRunResponse(run))
		return
	}

	id, err := h.Runner.Start(r.Context(), force)
	if errors.Is(err, domain.ErrBuildInProgress) {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "Failed to start build", err)
		return
	}
	h.Logger.Info("Build triggered", "run_id", id, "force", force)
	h.writeJSON(w, http.StatusAccepted, dto.RebuildAccepted{RunID: id, Force: force, Status: string(domain.RunStatusRunning)})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, dto.NewStatusResponse(h.Runner.Running(), h.Runner.Status(), h.Runner.LastRun()))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", constants.MaxRunHistory)
	if err != nil || limit < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	runs, err := h.DB.ListRuns(r.Context(), limit)
	if err != nil {
		h.internalError(w, "Failed to list runs", err)
		return
	}
	resp := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, dto.NewRunResponse(run))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.DB.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "Failed to get run", err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewRunResponse(run))
}

type categoriesResponse struct {
	Source string                   `json:"source"`
	Rules  []normalize.CategoryRule `json:"rules"`
}

// GetCategories returns the vocabulary the next clean will use.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	raw, err := h.SettingsRepo.Get(r.Context(), store.SettingCategoryMap)
	if err != nil {
		h.internalError(w, "Failed to read category map", err)
		return
	}
	if raw == "" {
		h.writeJSON(w, http.StatusOK, categoriesResponse{Source: "default", Rules: normalize.DefaultVocabulary().Rules()})
		return
	}

	vocab, err := normalize.ParseVocabulary([]byte(raw))
	if err != nil {
		h.internalError(w, "Stored category map is invalid", err)
		return
	}
	h.writeJSON(w, http.StatusOK, categoriesResponse{Source: "custom", Rules: vocab.Rules()})
}

// PutCategories replaces the vocabulary. It takes effect on the next build
// that cleans titles, so a forced rebuild is usually wanted after it.
func (h *Handler) PutCategories(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req dto.CategoryRulesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "body must be a JSON array of category rules")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: dto.ToResponse(errs), Fields: dto.ToMap(errs)})
		return
	}

	data, err := json.Marshal(req)
	if err != nil {
		h.internalError(w, "Failed to encode category map", err)
		return
	}
	if err := h.SettingsRepo.Set(r.Context(), store.SettingCategoryMap, string(data)); err != nil {
		h.internalError(w, "Failed to save category map", err)
		return
	}
	h.Logger.Info("Category map updated", "rules", len(req))
	h.writeJSON(w, http.StatusOK, categoriesResponse{Source: "custom", Rules: []normalize.CategoryRule(req)})
}

func (h *Handler) ResetCategories(w http.ResponseWriter, r *http.Request) {
	if err := h.SettingsRepo.Delete(r.Context(), store.SettingCategoryMap); err != nil {
		h.internalError(w, "Failed to reset category map", err)
		return
	}
	h.writeJSON(w, http.StatusOK, categoriesResponse{Source: "default", Rules: normalize.DefaultVocabulary().Rules()})
}

func (h *Handler) CatalogCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.DB.CatalogCounts(r.Context())
	if err != nil {
		h.internalError(w, "Failed to count catalog", err)
		return
	}
	h.writeJSON(w, http.StatusOK, counts)
}

type moviesResponse struct {
	Movies     []*domain.Movie `json:"movies"`
	Pagination *dto.Pagination `json:"pagination,omitempty"`
}

// ListMovies pages through the catalog, or returns every movie with an exact
// title when title is set.
func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if title := r.URL.Query().Get("title"); title != "" {
		movies, err := h.DB.FindMovies(ctx, title)
		if err != nil {
			h.internalError(w, "Failed to find movies", err)
			return
		}
		h.writeJSON(w, http.StatusOK, moviesResponse{Movies: nonNil(movies)})
		return
	}

	page, err := intQuery(r, "page", 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	size, err := intQuery(r, "page_size", 50)
	if err != nil || size > 500 {
		h.writeError(w, http.StatusBadRequest, "page_size must be an integer up to 500")
		return
	}

	counts, err := h.DB.CatalogCounts(ctx)
	if err != nil {
		h.internalError(w, "Failed to count catalog", err)
		return
	}
	p := dto.NewPagination(page, size, int(counts.Movies))

	movies, err := h.DB.ListMovies(ctx, p.PageSize, p.Offset())
	if err != nil {
		h.internalError(w, "Failed to list movies", err)
		return
	}
	h.writeJSON(w, http.StatusOK, moviesResponse{Movies: nonNil(movies), Pagination: p})
}

func nonNil(movies []*domain.Movie) []*domain.Movie {
	if movies == nil {
		return []*domain.Movie{}
	}
	return movies
}

func boolQuery(r *http.Request, key string, fallback bool) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
