package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllama_Complete(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"suspected_system":"Cooling"}`},
			Done:    true,
		})
	}))
	defer server.Close()

	c, err := NewOllama(server.URL+"/", "llama3", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	text, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"suspected_system":"Cooling"}` {
		t.Errorf("text = %q", text)
	}
	if got.Model != "llama3" || got.Stream || got.Format != "json" {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestOllama_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'nope' not found"})
	}))
	defer server.Close()

	c, _ := NewOllama(server.URL, "nope", WithHTTPClient(server.Client()))
	_, err := c.Complete(context.Background(), "sys", "user")
	if !IsStatus(err) {
		t.Fatalf("expected status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Errorf("error lost server message: %v", err)
	}
}

func TestOllama_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	c, _ := NewOllama(server.URL, "llama3", WithHTTPClient(server.Client()))
	if _, err := c.Complete(context.Background(), "sys", "user"); !IsFormat(err) {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestOllama_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c, _ := NewOllama(url, "llama3")
	if _, err := c.Complete(context.Background(), "sys", "user"); !IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestNewOllama_Validation(t *testing.T) {
	if _, err := NewOllama("", "m"); err == nil {
		t.Error("expected error for empty baseURL")
	}
	if _, err := NewOllama("http://x", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := NewOllama("http://x", "m", WithTimeout(-1)); err == nil {
		t.Error("expected error for negative timeout")
	}
	if _, err := NewOllama("http://x", "m", WithRateLimit(-1, 1)); err == nil {
		t.Error("expected error for negative rate")
	}
}
