package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon is an httptest stand-in for the Ollama HTTP API. It records
// the last decoded request body per endpoint.
type fakeDaemon struct {
	*httptest.Server
	lastGenerate map[string]any
	lastChat     map[string]any
	lastEmbed    map[string]any
	lastPull     map[string]any
	failAll      bool
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	d := &fakeDaemon{}
	mux := http.NewServeMux()

	fail := func(w http.ResponseWriter) bool {
		if d.failAll {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "daemon on fire"})
			return true
		}
		return false
	}
	decode := func(r *http.Request) map[string]any {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		return m
	}

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		if fail(w) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3.2:latest"},
				{"name": "nomic-embed-text:latest"},
			},
		})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		d.lastGenerate = decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": d.lastGenerate["model"], "response": "generated text", "done": true,
		})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		d.lastChat = decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   d.lastChat["model"],
			"message": map[string]any{"role": "assistant", "content": "chat reply"},
			"done":    true,
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		d.lastEmbed = decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      d.lastEmbed["model"],
			"embeddings": [][]float64{{0.25, -0.5, 0.125}},
		})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		if fail(w) {
			return
		}
		d.lastPull = decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})
	})

	d.Server = httptest.NewServer(mux)
	t.Cleanup(d.Server.Close)
	return d
}

func newTestClient(t *testing.T, d *fakeDaemon) *Client {
	t.Helper()
	c, err := New(d.URL, 5*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("http://local host:11434", time.Second, nil)
	require.Error(t, err)
}

func TestListModels(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	names, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "nomic-embed-text:latest"}, names)
}

func TestGenerateText(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	opts := DefaultOptions()
	opts.NumPredict = 128
	text, err := c.GenerateText(context.Background(), "llama3.2", "say hi", opts)
	require.NoError(t, err)
	assert.Equal(t, "generated text", text)

	require.NotNil(t, d.lastGenerate)
	assert.Equal(t, "llama3.2", d.lastGenerate["model"])
	assert.Equal(t, "say hi", d.lastGenerate["prompt"])
	assert.Equal(t, false, d.lastGenerate["stream"])

	sent, ok := d.lastGenerate["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.7, sent["temperature"], 1e-9)
	assert.InDelta(t, 0.9, sent["top_p"], 1e-9)
	assert.InDelta(t, 40, sent["top_k"], 1e-9)
	assert.InDelta(t, 128, sent["num_predict"], 1e-9)
}

func TestGenerateTextOmitsZeroNumPredict(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	_, err := c.GenerateText(context.Background(), "llama3.2", "hi", DefaultOptions())
	require.NoError(t, err)

	sent, ok := d.lastGenerate["options"].(map[string]any)
	require.True(t, ok)
	_, present := sent["num_predict"]
	assert.False(t, present)
}

func TestChatCompletion(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	reply, err := c.ChatCompletion(context.Background(), "llama3.2", []Message{
		{Role: "user", Content: "hello"},
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "chat reply", reply)

	msgs, ok := d.lastChat["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	first, _ := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])
	assert.Equal(t, false, d.lastChat["stream"])
}

func TestGenerateEmbedding(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	vec, err := c.GenerateEmbedding(context.Background(), "nomic-embed-text", "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5, 0.125}, vec)
	assert.Equal(t, "some text", d.lastEmbed["input"])
}

func TestPullModel(t *testing.T) {
	d := newFakeDaemon(t)
	c := newTestClient(t, d)

	err := c.PullModel(context.Background(), "llama3.2:1b")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:1b", d.lastPull["model"])
}

func TestOperationsWrapFailuresInBackendError(t *testing.T) {
	d := newFakeDaemon(t)
	d.failAll = true
	c := newTestClient(t, d)
	ctx := context.Background()

	_, err := c.ListModels(ctx)
	assertBackendError(t, err, "list")

	_, err = c.GenerateText(ctx, "m", "p", DefaultOptions())
	assertBackendError(t, err, "generate")

	_, err = c.ChatCompletion(ctx, "m", []Message{{Role: "user", Content: "hi"}}, DefaultOptions())
	assertBackendError(t, err, "chat")

	_, err = c.GenerateEmbedding(ctx, "m", "t")
	assertBackendError(t, err, "embed")

	err = c.PullModel(ctx, "m")
	assertBackendError(t, err, "pull")
}

func assertBackendError(t *testing.T, err error, op string) {
	t.Helper()
	require.Error(t, err)
	var be *BackendError
	require.True(t, errors.As(err, &be), "expected BackendError, got %T", err)
	assert.Equal(t, op, be.Op)
	assert.Contains(t, err.Error(), "ollama "+op)
}

func TestBackendErrorMessageIncludesModel(t *testing.T) {
	err := &BackendError{Op: "pull", Model: "llama3.2:1b", Err: errors.New("nope")}
	assert.Contains(t, err.Error(), "llama3.2:1b")
	assert.Equal(t, "nope", errors.Unwrap(err).Error())
}

func TestKnownModels(t *testing.T) {
	models := KnownModels()
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.Capabilities)
		assert.NotEmpty(t, m.Description)
	}

	// callers must not be able to mutate the catalog
	models[0].Name = "mutated"
	assert.NotEqual(t, "mutated", KnownModels()[0].Name)
}
