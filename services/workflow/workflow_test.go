package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepo implements WorkflowRepo for testing without a database.
type stubRepo struct {
	workflow *Workflow
	err      error
}

func (r *stubRepo) Get(_ context.Context, _ string) (*Workflow, error) {
	return r.workflow, r.err
}

func (r *stubRepo) GetByName(_ context.Context, _ string) (*Workflow, error) {
	return r.workflow, r.err
}

func (r *stubRepo) List(_ context.Context) ([]Workflow, error) {
	if r.workflow == nil {
		return nil, r.err
	}
	return []Workflow{*r.workflow}, r.err
}

func (r *stubRepo) Create(_ context.Context, req SaveWorkflowRequest) (*Workflow, error) {
	return &Workflow{ID: "created", Name: req.Name, Steps: req.Steps}, r.err
}

func (r *stubRepo) Update(_ context.Context, _ string, req SaveWorkflowRequest) (*Workflow, error) {
	if r.workflow == nil {
		return nil, r.err
	}
	updated := *r.workflow
	updated.Name = req.Name
	return &updated, r.err
}

func (r *stubRepo) Delete(_ context.Context, _ string) (bool, error) {
	return r.workflow != nil, r.err
}

func (r *stubRepo) SetFavorite(_ context.Context, _ string, _ bool) (bool, error) {
	return r.workflow != nil, r.err
}

func newTestService(wf *Workflow, client *mockModelClient) (*Service, *memHistoryStore) {
	store := &memHistoryStore{}
	orch := NewOrchestrator(NewEngine(client), store, nil, nil)
	return &Service{repo: &stubRepo{workflow: wf}, orchestrator: orch}, store
}

func setupRouter(svc *Service) *mux.Router {
	router := mux.NewRouter()
	svc.LoadRoutes(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleExecuteWorkflow_Success(t *testing.T) {
	client := newMockClient("Short summary", "Resumen corto")
	svc, store := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/wf-1/execute", ExecuteRequest{InputText: "Long English text"})

	assert.Equal(t, http.StatusOK, w.Code)

	var result WorkflowExecutionResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "Resumen corto", result.FinalOutput)
	assert.Len(t, result.StepResults, 2)
	assert.Len(t, store.entries(), 1)
}

func TestHandleExecuteWorkflow_EmptyInput(t *testing.T) {
	client := newMockClient()
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/wf-1/execute", ExecuteRequest{InputText: "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, client.callCount())
}

func TestHandleExecuteWorkflow_NoSteps(t *testing.T) {
	client := newMockClient()
	svc, _ := newTestService(&Workflow{ID: "wf-empty", Name: "Empty"}, client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/wf-empty/execute", ExecuteRequest{InputText: "input"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleExecuteWorkflow_NotFound(t *testing.T) {
	client := newMockClient()
	svc, _ := newTestService(nil, client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/missing/execute", ExecuteRequest{InputText: "input"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleExecuteWorkflow_ModelUnavailable(t *testing.T) {
	client := newMockClient()
	client.unavailable = true
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/wf-1/execute", ExecuteRequest{InputText: "input"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleExecuteWorkflow_StepFailure(t *testing.T) {
	client := newMockClient("out one")
	client.errs[1] = assert.AnError
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/wf-1/execute", ExecuteRequest{InputText: "input"})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body["message"], "step 1")
}

func TestHandleRunByName(t *testing.T) {
	client := newMockClient("Short summary", "Resumen corto")
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/run", RunByNameRequest{Name: "Summarize & Translate", InputText: "Long English text"})

	assert.Equal(t, http.StatusOK, w.Code)

	var result WorkflowExecutionResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "Resumen corto", result.FinalOutput)
}

func TestHandleRunByName_MissingName(t *testing.T) {
	client := newMockClient()
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/run", RunByNameRequest{InputText: "input"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCancelExecution(t *testing.T) {
	client := newMockClient()
	svc, _ := newTestService(twoStepWorkflow(), client)
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows/cancel", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleGetWorkflow_Success(t *testing.T) {
	svc, _ := newTestService(twoStepWorkflow(), newMockClient())
	router := setupRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/workflows/wf-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result Workflow
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "wf-1", result.ID)
	assert.Len(t, result.Steps, 2)
}

func TestHandleGetWorkflow_NotFound(t *testing.T) {
	svc, _ := newTestService(nil, newMockClient())
	router := setupRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/workflows/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	assert.Equal(t, "workflow not found", body["message"])
}

func TestHandleCreateWorkflow_Validation(t *testing.T) {
	svc, _ := newTestService(nil, newMockClient())
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows", SaveWorkflowRequest{Name: "  "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateWorkflow_Success(t *testing.T) {
	svc, _ := newTestService(nil, newMockClient())
	router := setupRouter(svc)

	w := postJSON(t, router, "/api/v1/workflows", SaveWorkflowRequest{
		Name:  "New workflow",
		Steps: []WorkflowStep{{Type: StepSummarize, Prompt: "p"}},
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result Workflow
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "New workflow", result.Name)
}

func TestHandleListWorkflows_Empty(t *testing.T) {
	svc, _ := newTestService(nil, newMockClient())
	router := setupRouter(svc)

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
