package preferences

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferencesRepo abstracts preference persistence for testability.
type PreferencesRepo interface {
	Get(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// Service exposes user preferences over HTTP.
type Service struct {
	repo PreferencesRepo
}

// NewService creates a Service with a real PostgreSQL repository.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// LoadRoutes registers preference HTTP handlers on the given router.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/preferences").Subrouter()
	router.StrictSlash(false)

	router.HandleFunc("", s.HandleGet).Methods("GET")
	router.HandleFunc("", s.HandleSave).Methods("PUT")
}

// HandleGet returns the stored preferences (defaults when unset).
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.repo.Get(r.Context())
	if err != nil {
		slog.Error("Failed to get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// HandleSave validates and stores the preferences from the request body.
func (s *Service) HandleSave(w http.ResponseWriter, r *http.Request) {
	var p Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		writeError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
		return
	}
	if p.MaxTokens < 1 {
		writeError(w, http.StatusBadRequest, "maxTokens must be at least 1")
		return
	}
	if p.SamplingMode != "greedy" && p.SamplingMode != "random" {
		writeError(w, http.StatusBadRequest, "samplingMode must be greedy or random")
		return
	}

	if err := s.repo.Save(r.Context(), p); err != nil {
		slog.Error("Failed to save preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	saved, err := s.repo.Get(r.Context())
	if err != nil {
		slog.Error("Failed to reload preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
