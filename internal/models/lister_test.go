package models

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestNewLister(t *testing.T) {
	lister := NewLister("test-api-key", "https://example.test/v1")

	if lister == nil {
		t.Fatal("NewLister returned nil")
	}

	if lister.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", lister.apiKey)
	}

	if lister.baseURL != "https://example.test/v1" {
		t.Errorf("Expected base URL to be kept, got '%s'", lister.baseURL)
	}

	if lister.client == nil {
		t.Error("OpenAI client not initialized")
	}
}

func TestListAvailableModels_NoAPIKey(t *testing.T) {
	lister := NewLister("", "")

	err := lister.ListAvailableModels(context.Background(), &bytes.Buffer{})
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}

	if !strings.Contains(err.Error(), "API key not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCategorize(t *testing.T) {
	got := Categorize([]string{
		"whisper-large-v3",
		"llama-3.3-70b-versatile",
		"gemma2-9b-it",
		"llama-guard-3-8b",
		"distil-foo",
		"llama-3.1-8b-instant",
	})

	want := Categories{
		Chat:   []string{"gemma2-9b-it", "llama-3.1-8b-instant", "llama-3.3-70b-versatile"},
		Speech: []string{"whisper-large-v3"},
		Other:  []string{"distil-foo", "llama-guard-3-8b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categorize() = %+v, want %+v", got, want)
	}
}

func TestListAvailableModels_Server(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"id":"llama-3.3-70b-versatile","object":"model"},
			{"id":"whisper-large-v3","object":"model"}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	lister := NewLister("key", srv.URL+"/v1")
	if err := lister.ListAvailableModels(context.Background(), &out); err != nil {
		t.Fatalf("ListAvailableModels failed: %v", err)
	}

	for _, want := range []string{"Chat models", "llama-3.3-70b-versatile", "Speech models", "whisper-large-v3"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "Other models") {
		t.Error("Did not expect an other models section")
	}
}

func TestListAvailableModels_Integration(t *testing.T) {
	// Skip if no API key
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: GROQ_API_KEY not set")
	}

	lister := NewLister(apiKey, "https://api.groq.com/openai/v1")
	if err := lister.ListAvailableModels(context.Background(), os.Stdout); err != nil {
		t.Errorf("ListAvailableModels failed: %v", err)
	}
}
