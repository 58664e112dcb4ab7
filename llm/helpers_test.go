package llm

import (
	"context"
	"errors"
	"testing"
)

type stubBackend struct {
	content   string
	embedding []float64
	err       error
	lastReq   CompletionRequest
}

func (s *stubBackend) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &CompletionResponse{Content: s.content}, nil
}

func (s *stubBackend) Embed(_ context.Context, _ EmbeddingRequest) (*EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &EmbeddingResponse{Embedding: s.embedding}, nil
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		want    string
		wantErr error
	}{
		{"trims", &stubBackend{content: "  A short summary.\n"}, "A short summary.", nil},
		{"empty", &stubBackend{content: "   "}, "", ErrEmptyResponse},
		{"backend error", &stubBackend{err: errors.New("boom")}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Complete(context.Background(), tt.backend, CompletionRequest{Messages: []Message{UserMessage("x")}})
			if tt.backend.err != nil {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Errorf("got %q, %v", got, err)
			}
		})
	}
}

func TestEmbedText(t *testing.T) {
	if _, err := EmbedText(context.Background(), &stubBackend{}, "x"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
	vec, err := EmbedText(context.Background(), &stubBackend{embedding: []float64{1, 2}}, "x")
	if err != nil || len(vec) != 2 {
		t.Errorf("got %v, %v", vec, err)
	}
}

func TestAllMessages(t *testing.T) {
	req := CompletionRequest{SystemPrompt: "sys", Messages: []Message{UserMessage("hi")}}
	msgs := req.AllMessages()
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Content != "hi" {
		t.Errorf("messages = %+v", msgs)
	}
	if len(req.Messages) != 1 {
		t.Error("AllMessages must not modify the request")
	}
	if got := (CompletionRequest{Messages: []Message{UserMessage("hi")}}).AllMessages(); len(got) != 1 {
		t.Errorf("messages = %+v", got)
	}
}
