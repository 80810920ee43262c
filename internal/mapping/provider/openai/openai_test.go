package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docpipe/internal/mapping/provider"
)

func newTestProvider(url string) *Provider {
	return &Provider{apiKey: "sk-test", baseURL: url, client: http.DefaultClient}
}

func TestComplete_RequestShapeAndContent(t *testing.T) {
	t.Parallel()

	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"tables\":[]}"}}]}`))
	}))
	defer srv.Close()

	text, err := newTestProvider(srv.URL).Complete(context.Background(), provider.Request{
		System:      "map fields",
		User:        "profile",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete()=%v", err)
	}
	if text != `{"tables":[]}` {
		t.Fatalf("content=%q", text)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("Authorization=%q", auth)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 1024 {
		t.Fatalf("request=%+v, want model and default max_tokens", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages=%+v, want system then user", got.Messages)
	}
}

func TestComplete_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := newTestProvider(srv.URL).Complete(context.Background(), provider.Request{Model: "m"})
			if err == nil {
				t.Fatal("Complete() succeeded, want error")
			}
			if provider.IsTransient(err) != tt.transient {
				t.Fatalf("IsTransient(%v)=%v, want %v", err, !tt.transient, tt.transient)
			}
		})
	}
}

func TestComplete_EmptyChoicesIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Complete(context.Background(), provider.Request{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "empty content") {
		t.Fatalf("Complete() err=%v, want empty content", err)
	}
	if provider.IsTransient(err) {
		t.Fatal("empty content classified transient")
	}
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(""); err == nil {
		t.Fatal("New() succeeded without an API key, want error")
	}
}
