package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to an Ollama-compatible model server over HTTP.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient returns a client for the given server URL and model name.
// The HTTP timeout is generous; callers bound individual calls via context.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the relevant subset of an Ollama generate chunk.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func generateOptions(opts *Options) map[string]any {
	if opts == nil {
		return nil
	}
	m := map[string]any{
		"temperature": opts.Temperature,
		"num_predict": opts.MaxTokens,
	}
	if opts.Greedy {
		m["temperature"] = 0.0
		m["top_k"] = 1
	}
	return m
}

// IsAvailable probes the server's tag listing endpoint.
func (c *OllamaClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Execute performs a non-streaming generation and returns the completed text.
func (c *OllamaClient) Execute(ctx context.Context, prompt string, opts *Options) (string, error) {
	body, err := c.post(ctx, generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions(opts),
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var result generateResponse
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if result.Error != "" {
		return "", &ExecutionError{Message: result.Error}
	}
	return result.Response, nil
}

// ExecuteStreaming performs a streaming generation, invoking fn with the
// accumulated full-so-far text after each chunk.
func (c *OllamaClient) ExecuteStreaming(ctx context.Context, prompt string, opts *Options, fn StreamFunc) error {
	body, err := c.post(ctx, generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  true,
		Options: generateOptions(opts),
	})
	if err != nil {
		return err
	}
	defer body.Close()

	var accumulated strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if chunk.Error != "" {
			return &ExecutionError{Message: chunk.Error}
		}

		if chunk.Response != "" {
			accumulated.WriteString(chunk.Response)
			if err := fn(accumulated.String()); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &ExecutionError{Message: err.Error()}
	}
	return nil
}

// post sends a generate request and returns the response body, translating
// transport and status failures into the client error kinds.
func (c *OllamaClient) post(ctx context.Context, payload generateRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, &ExecutionError{Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}
	return resp.Body, nil
}
