package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/remworker/llm"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("stream must be false")
		}
		if req.Model != "qwen2.5" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("request = %+v", req)
		}
		if req.Options == nil || req.Options.NumPredict != 150 || req.Options.Temperature != 0.3 {
			t.Errorf("options = %+v", req.Options)
		}
		_, _ = io.WriteString(w, `{"model":"qwen2.5","message":{"role":"assistant","content":"Summary."},"done":true,"prompt_eval_count":10,"eval_count":3}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{BaseURL: srv.URL, ChatModel: "qwen2.5"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Summarize.",
		Messages:     []llm.Message{llm.UserMessage("text")},
		Temperature:  0.3,
		MaxTokens:    150,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Summary." || resp.Usage.TotalTokens != 13 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Input != "hello" {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"model":"nomic-embed-text","embeddings":[[0.5,0.25]]}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{BaseURL: srv.URL})
	resp, err := p.Embed(context.Background(), llm.EmbeddingRequest{Input: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Embedding) != 2 || resp.Embedding[1] != 0.25 {
		t.Errorf("embedding = %v", resp.Embedding)
	}
}

func TestEmbed_NoVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"embeddings":[]}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), llm.EmbeddingRequest{Input: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"models":[]}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{BaseURL: srv.URL})
	if !p.IsAvailable(context.Background()) {
		t.Error("expected available")
	}
}
