package workflow

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowforge/api/pkg/llm"
	"flowforge/api/pkg/notify"
	"flowforge/api/services/history"
	"flowforge/api/services/preferences"
)

// WorkflowRepo abstracts workflow persistence for testability.
type WorkflowRepo interface {
	Get(ctx context.Context, id string) (*Workflow, error)
	GetByName(ctx context.Context, name string) (*Workflow, error)
	List(ctx context.Context) ([]Workflow, error)
	Create(ctx context.Context, req SaveWorkflowRequest) (*Workflow, error)
	Update(ctx context.Context, id string, req SaveWorkflowRequest) (*Workflow, error)
	Delete(ctx context.Context, id string) (bool, error)
	SetFavorite(ctx context.Context, id string, favorite bool) (bool, error)
}

// Service wires together the repository and execution pipeline for the
// workflow domain.
type Service struct {
	repo         WorkflowRepo
	orchestrator *Orchestrator
}

// NewService creates a Service with a real PostgreSQL repository, the given
// model client, and the given progress sink. A non-positive stepTimeout
// keeps the engine default.
func NewService(pool *pgxpool.Pool, client llm.Client, sink notify.Sink, stepTimeout time.Duration) *Service {
	repo := NewRepository(pool)
	engine := NewEngine(client)
	engine.SetStepTimeout(stepTimeout)
	orchestrator := NewOrchestrator(engine, history.NewRepository(pool), preferences.NewRepository(pool), sink)
	return &Service{repo: repo, orchestrator: orchestrator}
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes registers workflow HTTP handlers on the given router. The
// literal routes are registered before the parameterized ones.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/workflows").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("", s.HandleListWorkflows).Methods("GET")
	router.HandleFunc("", s.HandleCreateWorkflow).Methods("POST")
	router.HandleFunc("/run", s.HandleRunByName).Methods("POST")
	router.HandleFunc("/cancel", s.HandleCancelExecution).Methods("POST")
	router.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	router.HandleFunc("/{id}", s.HandleUpdateWorkflow).Methods("PUT")
	router.HandleFunc("/{id}", s.HandleDeleteWorkflow).Methods("DELETE")
	router.HandleFunc("/{id}/favorite", s.HandleToggleFavorite).Methods("POST")
	router.HandleFunc("/{id}/execute", s.HandleExecuteWorkflow).Methods("POST")
}
