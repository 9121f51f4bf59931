package workflow

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// HandleListWorkflows returns all workflows with their steps.
func (s *Service) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.repo.List(r.Context())
	if err != nil {
		slog.Error("Failed to list workflows", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if workflows == nil {
		workflows = []Workflow{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(workflows)
}

// HandleCreateWorkflow creates a workflow from the request body.
func (s *Service) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	wf, err := s.repo.Create(r.Context(), req)
	if err != nil {
		slog.Error("Failed to create workflow", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wf)
}

// HandleGetWorkflow loads a workflow definition and returns it as JSON.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Getting workflow", "id", id)

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(wf)
}

// HandleUpdateWorkflow replaces a workflow's metadata and steps.
func (s *Service) HandleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SaveWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	wf, err := s.repo.Update(r.Context(), id, req)
	if err != nil {
		slog.Error("Failed to update workflow", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(wf)
}

// HandleDeleteWorkflow deletes a workflow; its steps cascade. History for
// past runs of the workflow is untouched.
func (s *Service) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleted, err := s.repo.Delete(r.Context(), id)
	if err != nil {
		slog.Error("Failed to delete workflow", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleFavorite sets the favorite flag from the request body.
func (s *Service) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.repo.SetFavorite(r.Context(), id, req.Favorite)
	if err != nil {
		slog.Error("Failed to set favorite", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExecuteWorkflow runs a workflow against the model and returns the
// execution result.
func (s *Service) HandleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Executing workflow", "id", id)

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow for execution", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	s.execute(w, r, wf, req.InputText, req.EnableNotifications)
}

// HandleRunByName is the automation entry point: resolve a workflow by name
// and execute it via the same pipeline as execute-by-id.
func (s *Service) HandleRunByName(w http.ResponseWriter, r *http.Request) {
	var req RunByNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	wf, err := s.repo.GetByName(r.Context(), req.Name)
	if err != nil {
		slog.Error("Failed to resolve workflow by name", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	s.execute(w, r, wf, req.InputText, req.EnableNotifications)
}

// HandleCancelExecution cancels the in-flight run. Fire-and-forget: the run
// itself reports cancellation through its own response.
func (s *Service) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.CancelExecution()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) execute(w http.ResponseWriter, r *http.Request, wf *Workflow, inputText string, enableNotifications *bool) {
	result, err := s.orchestrator.ExecuteWorkflow(r.Context(), wf, inputText, enableNotifications, nil)
	if err != nil {
		slog.Error("Workflow execution failed", "id", wf.ID, "error", err)
		writeExecutionError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// writeExecutionError maps the execution error taxonomy onto HTTP statuses,
// surfacing the error message verbatim.
func writeExecutionError(w http.ResponseWriter, err error) {
	var stepErr *StepError
	switch {
	case errors.Is(err, ErrNoSteps), errors.Is(err, ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stepErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
