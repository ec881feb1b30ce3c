package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
)

func newServer(t *testing.T, path string, handle func(body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		status, resp := handle(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	t.Parallel()

	var gotModel any
	srv := newServer(t, "/embeddings", func(body map[string]any) (int, string) {
		gotModel = body["model"]
		return http.StatusOK, `{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"m","usage":{"prompt_tokens":2,"total_tokens":2}}`
	})

	e := NewEmbedder(Config{APIKey: "test-key", BaseURL: srv.URL}, "", 0)
	got, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != 2 || got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("vectors = %v", got)
	}
	if gotModel != DefaultEmbeddingModel {
		t.Errorf("model = %v, want %s", gotModel, DefaultEmbeddingModel)
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := newServer(t, "/embeddings", func(map[string]any) (int, string) {
		return http.StatusOK, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0.125]}]}`
	})

	got, err := NewEmbedder(Config{APIKey: "test-key", BaseURL: srv.URL}, "m", 3).Embed(context.Background(), "forfait")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 || got[2] != 0.125 {
		t.Errorf("vector = %v", got)
	}
}

func TestEmbed_Errors(t *testing.T) {
	t.Parallel()

	short := newServer(t, "/embeddings", func(map[string]any) (int, string) {
		return http.StatusOK, `{"object":"list","data":[]}`
	})
	failing := newServer(t, "/embeddings", func(map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`
	})

	for name, url := range map[string]string{"short": short.URL, "failing": failing.URL} {
		e := NewEmbedder(Config{APIKey: "test-key", BaseURL: url}, "m", 0)
		if _, err := e.Embed(context.Background(), "x"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := NewEmbedder(Config{APIKey: "test-key"}, "m", 0).EmbedBatch(context.Background(), nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestToChatRequest(t *testing.T) {
	t.Parallel()

	req := toChatRequest("gpt-test", &assistant.CompletionRequest{
		System: "sys", Prompt: "user", MaxTokens: 200, Temperature: 0.5,
	})
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != openai.ChatMessageRoleSystem || req.Messages[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("roles = %s, %s", req.Messages[0].Role, req.Messages[1].Role)
	}
	if req.MaxTokens != 200 || req.Temperature != 0.5 {
		t.Errorf("MaxTokens/Temperature = %d/%v", req.MaxTokens, req.Temperature)
	}

	got := toChatRequest("m", &assistant.CompletionRequest{Prompt: "p"})
	if len(got.Messages) != 1 {
		t.Errorf("messages without system = %d, want 1", len(got.Messages))
	}
	if got.Temperature == 0 || got.Temperature > 1e-6 {
		t.Errorf("zero temperature sent as %v, want a non-omitted near-zero value", got.Temperature)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	srv := newServer(t, "/chat/completions", func(body map[string]any) (int, string) {
		if body["model"] != "gpt-test" {
			return http.StatusBadRequest, `{"error":{"message":"wrong model"}}`
		}
		return http.StatusOK, `{"id":"c1","object":"chat.completion","model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Consultez votre espace client."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":30,"completion_tokens":6,"total_tokens":36}}`
	})

	c := NewCompleter(Config{APIKey: "test-key", BaseURL: srv.URL}, "gpt-test")
	got, err := c.Complete(context.Background(), &assistant.CompletionRequest{Prompt: "facture", MaxTokens: 20})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "Consultez votre espace client." || got.StopReason != "stop" {
		t.Errorf("completion = %+v", got)
	}
	if got.InputTokens != 30 || got.OutputTokens != 6 {
		t.Errorf("usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	t.Parallel()

	srv := newServer(t, "/chat/completions", func(map[string]any) (int, string) {
		return http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`
	})
	c := NewCompleter(Config{APIKey: "test-key", BaseURL: srv.URL}, "")
	if _, err := c.Complete(context.Background(), &assistant.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
