// Package ollama provides a minimal client for the local Ollama daemon.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Client wraps the official Ollama API client with a fixed base URL and
// per-request timeout. Every operation returns an explicit error; callers
// decide whether a failure is fatal for them.
type Client struct {
	api *api.Client
}

// Message is a single chat turn. Role is one of system, user, assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries the sampling parameters forwarded to the daemon.
// A zero NumPredict leaves the daemon's own limit in place.
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	NumPredict  int
}

// DefaultOptions returns the sampling defaults used when a caller does not
// override them.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, TopP: 0.9, TopK: 40}
}

func (o Options) toMap() map[string]any {
	m := map[string]any{
		"temperature": o.Temperature,
		"top_p":       o.TopP,
		"top_k":       o.TopK,
	}
	if o.NumPredict > 0 {
		m["num_predict"] = o.NumPredict
	}
	return m
}

// BackendError wraps a failed daemon operation with the operation name and
// the model it targeted.
type BackendError struct {
	Op    string
	Model string
	Err   error
}

func (e *BackendError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("ollama %s (model %s): %v", e.Op, e.Model, e.Err)
	}
	return fmt.Sprintf("ollama %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// New returns a client bound to baseURL. If httpClient is nil, a default
// with the given timeout is used.
func New(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{api: api.NewClient(u, httpClient)}, nil
}

// ListModels returns the names of the models the daemon has available, in
// daemon order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, &BackendError{Op: "list", Err: err}
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// GenerateText runs a non-streaming completion and returns the response
// text, or empty string if the daemon produced none.
func (c *Client) GenerateText(ctx context.Context, model, prompt string, opts Options) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: opts.toMap(),
	}

	var text strings.Builder
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", &BackendError{Op: "generate", Model: model, Err: err}
	}
	return text.String(), nil
}

// ChatCompletion runs a non-streaming chat turn and returns the assistant
// message content, or empty string if the daemon produced none.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	stream := false
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}
	req := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options:  opts.toMap(),
	}

	var content strings.Builder
	err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
		content.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", &BackendError{Op: "chat", Model: model, Err: err}
	}
	return content.String(), nil
}

// GenerateEmbedding returns the embedding vector for text, or an empty
// slice if the daemon returned none.
func (c *Client) GenerateEmbedding(ctx context.Context, model, text string) ([]float64, error) {
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: model, Input: text})
	if err != nil {
		return nil, &BackendError{Op: "embed", Model: model, Err: err}
	}
	if len(resp.Embeddings) == 0 {
		return []float64{}, nil
	}
	vec := make([]float64, len(resp.Embeddings[0]))
	for i, v := range resp.Embeddings[0] {
		vec[i] = float64(v)
	}
	return vec, nil
}

// PullModel downloads a model into the daemon, discarding progress updates.
func (c *Client) PullModel(ctx context.Context, model string) error {
	err := c.api.Pull(ctx, &api.PullRequest{Model: model}, func(api.ProgressResponse) error {
		return nil
	})
	if err != nil {
		return &BackendError{Op: "pull", Model: model, Err: err}
	}
	return nil
}
