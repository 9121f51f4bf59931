package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepo abstracts history persistence for testability.
type HistoryRepo interface {
	List(ctx context.Context, limit int) ([]ExecutionHistory, error)
	Get(ctx context.Context, id string) (*ExecutionHistory, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Service exposes execution history over HTTP.
type Service struct {
	repo HistoryRepo
}

// NewService creates a Service with a real PostgreSQL repository.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// LoadRoutes registers history HTTP handlers on the given router.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/history").Subrouter()
	router.StrictSlash(false)

	router.HandleFunc("", s.HandleList).Methods("GET")
	router.HandleFunc("", s.HandleClear).Methods("DELETE")
	router.HandleFunc("/{id}", s.HandleGet).Methods("GET")
	router.HandleFunc("/{id}", s.HandleDelete).Methods("DELETE")
}

// HandleList returns history records newest first. An optional "limit" query
// parameter caps the result.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.repo.List(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []ExecutionHistory{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// HandleGet returns a single history record.
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entry, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get history entry", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// HandleDelete removes a single history record.
func (s *Service) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.repo.Delete(r.Context(), id); err != nil {
		slog.Error("Failed to delete history entry", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear removes all history records.
func (s *Service) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Clear(r.Context()); err != nil {
		slog.Error("Failed to clear history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
