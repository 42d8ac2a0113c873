package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cortexai/text2sql/internal/llm"
)

func TestOpenAI_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"SELECT 1"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	text, err := client.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "SELECT 1" {
		t.Errorf("text = %q", text)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestOpenAI_CompleteEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"})
	if _, err := client.Complete(context.Background(), "", "user"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAI_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		// out of order on purpose
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", EmbeddingModel: "text-embedding-3-small", Dimensions: 2})
	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Errorf("vectors not in input order: %v", vecs)
	}

	if _, err := client.Embed(context.Background(), []string{"only one"}); !errors.Is(err, llm.ErrEmbeddingMismatch) {
		t.Errorf("expected ErrEmbeddingMismatch, got %v", err)
	}
}

func TestOpenAI_EmbedBadIndexes(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"duplicate index", `[{"index":0,"embedding":[0.1,0.2]},{"index":0,"embedding":[0.3,0.4]}]`},
		{"index out of range", `[{"index":0,"embedding":[0.1,0.2]},{"index":5,"embedding":[0.3,0.4]}]`},
		{"negative index", `[{"index":-1,"embedding":[0.1,0.2]},{"index":1,"embedding":[0.3,0.4]}]`},
		{"null embedding", `[{"index":0,"embedding":[0.1,0.2]},{"index":1,"embedding":null}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"object":"list","data":` + tt.data + `}`))
			}))
			defer srv.Close()

			client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
			vecs, err := client.Embed(context.Background(), []string{"film", "actor"})
			if !errors.Is(err, llm.ErrEmbeddingMismatch) {
				t.Errorf("expected ErrEmbeddingMismatch, got %v (vectors %v)", err, vecs)
			}
		})
	}
}

func TestOpenAI_EmbedDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	client := llm.NewOpenAI(llm.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Dimensions: 1536})
	if _, err := llm.EmbedOne(context.Background(), client, "x"); !errors.Is(err, llm.ErrEmbeddingDimension) {
		t.Errorf("expected ErrEmbeddingDimension, got %v", err)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-6",
			"content":[{"type":"text","text":"{\"chart_type\":"},{"type":"text","text":"\"bar\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`))
	}))
	defer srv.Close()

	client := llm.NewAnthropic("k", "", srv.URL, 256, 0)
	text, err := client.Complete(context.Background(), "be terse", "classify")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"chart_type":"bar"}` {
		t.Errorf("text = %q", text)
	}
	if got["model"] != "claude-sonnet-4-6" {
		t.Errorf("model = %v", got["model"])
	}
	if _, ok := got["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestAnthropic_CompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	client := llm.NewAnthropic("k", "m", srv.URL, 0, 0)
	if _, err := client.Complete(context.Background(), "", "x"); err == nil {
		t.Error("expected error")
	}
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	c := llm.WithTimeout(blockingCompleter{}, 10*time.Millisecond)
	_, err := c.Complete(context.Background(), "", "SELECT 1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	var plain llm.Completer = blockingCompleter{}
	if llm.WithTimeout(plain, 0) != plain {
		t.Error("zero timeout should return the completer unchanged")
	}
}
