package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/remworker/resilience"
)

func fastRetry(attempts int) *resilience.RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestClient_Do_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"status":"ok"}` {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestPost_JSONRoundTrip(t *testing.T) {
	type in struct {
		Text string `json:"text"`
	}
	type out struct {
		Words int `json:"words"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("X-Client"); got != "remworker" {
			t.Errorf("default header missing: %q", got)
		}
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		var body in
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(out{Words: len(body.Text)})
	}))
	defer srv.Close()

	c, _ := New(Config{
		BaseURL: srv.URL,
		Auth:    BearerAuth("tok"),
		Headers: map[string]string{"X-Client": "remworker"},
	})
	got, err := Post[out](c, context.Background(), "/count", in{Text: "abcd"}, WithQueryParam("lang", "en"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Words != 4 {
		t.Errorf("words = %d", got.Words)
	}
}

func TestClient_Do_APIKeyOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("client auth should be replaced by request auth")
		}
		if r.Header.Get("X-Token") != "k" {
			t.Errorf("X-Token = %q", r.Header.Get("X-Token"))
		}
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Auth: BearerAuth("tok")})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/", Auth: APIKeyAuth("k", "X-Token")})
	if err != nil {
		t.Fatal(err)
	}
}

func TestClient_Do_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{http.StatusBadRequest, KindRejected, false},
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusTooManyRequests, KindRateLimit, true},
		{http.StatusServiceUnavailable, KindServer, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"detail":"nope"}`)
			}))
			defer srv.Close()

			c, _ := New(Config{BaseURL: srv.URL})
			resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Kind != tt.kind || e.Retryable() != tt.retryable {
				t.Errorf("got %s retryable=%v", e.Kind, e.Retryable())
			}
			if e.Detail != "nope" {
				t.Errorf("detail = %q", e.Detail)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Error("response body should be returned with the error")
			}
		})
	}
}

func TestClient_Do_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTimeout {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Retry: fastRetry(3)})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_Do_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Retry: fastRetry(5)})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_Do_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := DefaultCircuitBreakerConfig("test")
	cb.MaxFailures = 2
	cb.Timeout = time.Hour
	c, _ := New(Config{BaseURL: srv.URL, CircuitBreaker: cb})

	for i := 0; i < 2; i++ {
		_, _ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	}
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_Do_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cb := DefaultCircuitBreakerConfig("test")
	cb.MaxFailures = 1
	c, _ := New(Config{BaseURL: srv.URL, CircuitBreaker: cb})
	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
		if KindOf(err) != KindNotFound {
			t.Fatalf("call %d: expected not found, got %v", i, err)
		}
	}
}

func TestMultipart_FileFromPathResentOnRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o600); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "RIFFdata" || hdr.Filename != "clip.wav" {
			t.Errorf("file = %q name=%q", data, hdr.Filename)
		}
		if hdr.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("part content type = %q", hdr.Header.Get("Content-Type"))
		}
		if r.FormValue("model") != "base" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Retry: fastRetry(2)})
	body := &MultipartBody{
		Fields: map[string]string{"model": "base"},
		Files:  []FileField{FileFromPath("audio", path, "audio/wav")},
	}
	got, err := Post[map[string]bool](c, context.Background(), "/transcribe", body)
	if err != nil {
		t.Fatal(err)
	}
	if !got["ok"] || calls.Load() != 2 {
		t.Errorf("got %v after %d calls", got, calls.Load())
	}
}

func TestPost_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	_, err := Post[map[string]any](c, context.Background(), "/", nil)
	if KindOf(err) != KindDecode {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "whisper:8000"}); err == nil {
		t.Error("expected error for base url without scheme")
	}
	if _, err := New(Config{BaseURL: "http://whisper:8000"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBearerAuth_EmptyTokenSendsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Auth: BearerAuth("")})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err != nil {
		t.Fatal(err)
	}
}

func TestMultipart_MissingFileFailsBeforeSending(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Retry: fastRetry(3)})
	body := &MultipartBody{Files: []FileField{FileFromPath("audio", filepath.Join(t.TempDir(), "gone.wav"), "audio/wav")}}
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/transcribe", Body: body})
	if KindOf(err) != KindRequest || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected request error wrapping ErrNotExist, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times", calls.Load())
	}
}
