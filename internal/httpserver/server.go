package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/navarch/homing/internal/models"
	"github.com/navarch/homing/internal/store"
)

// Config holds the API surface options.
type Config struct {
	// JWTSecret enables bearer-token auth on mutating routes when set.
	JWTSecret string
	// DefaultTimeout (seconds) for plans that do not request one.
	DefaultTimeout int
	// DefaultRecommendMax for plans that do not request one.
	DefaultRecommendMax int
}

type Server struct {
	cfg   Config
	store store.Store
}

func New(cfg Config, st store.Store) *Server {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 600
	}
	if cfg.DefaultRecommendMax <= 0 {
		cfg.DefaultRecommendMax = 1
	}
	return &Server{cfg: cfg, store: st}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1/plans", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth)
			r.Post("/", s.handleCreatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
		r.Get("/{id}", s.handleGetPlan)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type createPlanRequest struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Timeout      int             `json:"timeout,omitempty"`
	RecommendMax int             `json:"limit,omitempty"`
	Template     json.RawMessage `json:"template"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Template) == 0 {
		respondError(w, http.StatusBadRequest, "template required")
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid plan id")
			return
		}
		id = parsed
	}
	if req.Timeout <= 0 {
		req.Timeout = s.cfg.DefaultTimeout
	}
	if req.RecommendMax <= 0 {
		req.RecommendMax = s.cfg.DefaultRecommendMax
	}

	plan, err := s.store.CreatePlan(r.Context(), store.PlanInput{
		ID:           id,
		Name:         req.Name,
		Timeout:      req.Timeout,
		RecommendMax: req.RecommendMax,
		Template:     req.Template,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	plan, err := s.store.GetPlan(r.Context(), id)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	plan, err := s.store.GetPlan(r.Context(), id)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !models.Terminal(plan.Status) {
		respondError(w, http.StatusConflict, "plan is still in flight")
		return
	}
	if err := s.store.DeletePlan(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
