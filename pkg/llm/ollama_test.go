package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Execute(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(generateResponse{Response: "Short summary", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")
	out, err := client.Execute(context.Background(), "Summarize this", &Options{Temperature: 0.5, MaxTokens: 100})

	require.NoError(t, err)
	assert.Equal(t, "Short summary", out)
	assert.Equal(t, "llama3.2", gotReq.Model)
	assert.Equal(t, "Summarize this", gotReq.Prompt)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, 0.5, gotReq.Options["temperature"])
	assert.Equal(t, float64(100), gotReq.Options["num_predict"])
}

func TestOllamaClient_Execute_GreedyOptions(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")
	_, err := client.Execute(context.Background(), "p", &Options{Temperature: 0.9, Greedy: true})

	require.NoError(t, err)
	assert.Equal(t, 0.0, gotReq.Options["temperature"])
	assert.Equal(t, float64(1), gotReq.Options["top_k"])
}

func TestOllamaClient_ExecuteStreaming_AccumulatesSnapshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		enc := json.NewEncoder(w)
		enc.Encode(generateResponse{Response: "Short "})
		enc.Encode(generateResponse{Response: "sum"})
		enc.Encode(generateResponse{Response: "mary", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")

	var snapshots []string
	err := client.ExecuteStreaming(context.Background(), "Summarize this", nil, func(snapshot string) error {
		snapshots = append(snapshots, snapshot)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Short ", "Short sum", "Short summary"}, snapshots)
}

func TestOllamaClient_ExecuteStreaming_ErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(generateResponse{Response: "partial "})
		enc.Encode(generateResponse{Error: "model crashed"})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")

	var snapshots []string
	err := client.ExecuteStreaming(context.Background(), "p", nil, func(snapshot string) error {
		snapshots = append(snapshots, snapshot)
		return nil
	})

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "model crashed")
	assert.Equal(t, []string{"partial "}, snapshots)
}

func TestOllamaClient_ExecuteStreaming_CallbackAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		for i := 0; i < 10; i++ {
			enc.Encode(generateResponse{Response: fmt.Sprintf("chunk%d ", i)})
		}
		enc.Encode(generateResponse{Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")

	abort := errors.New("stop now")
	calls := 0
	err := client.ExecuteStreaming(context.Background(), "p", nil, func(string) error {
		calls++
		if calls == 2 {
			return abort
		}
		return nil
	})

	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 2, calls)
}

func TestOllamaClient_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")
	_, err := client.Execute(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaClient_BadRequestIsExecutionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown model"))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")
	_, err := client.Execute(context.Background(), "p", nil)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "unknown model")
}

func TestOllamaClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := NewOllamaClient(server.URL, "llama3.2")
	_, err := client.Execute(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaClient_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.2")
	assert.True(t, client.IsAvailable(context.Background()))

	server.Close()
	assert.False(t, client.IsAvailable(context.Background()))
}
