// ABOUTME: Tests for the completion client against a fake OpenAI-compatible server
// ABOUTME: Verifies message layout, explicit zero temperature and error handling
package llm

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

	"github.com/harper/forum-rag/internal/models"
)

func chatServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfig))
}

func TestComplete_Success(t *testing.T) {
	var body map[string]any
	server := chatServer(t, "Use a Greatsword.", &body)
	defer server.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{APIKey: "sk-test", ChatModel: "gpt-4", BaseURL: server.URL})
	require.NoError(t, err)

	got, err := client.Complete(context.Background(), models.CompletionRequest{
		System:      "be helpful",
		Prompt:      "Question: q",
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Use a Greatsword.", got)

	assert.Equal(t, "gpt-4", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "Question: q", messages[1].(map[string]any)["content"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-6)
}

func TestComplete_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	server := chatServer(t, "7", &body)
	defer server.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), models.CompletionRequest{Prompt: "score this"})
	require.NoError(t, err)

	temp, present := body["temperature"]
	require.True(t, present, "temperature must be on the wire")
	assert.InDelta(t, 0.0, temp, 1e-6)
	assert.Len(t, body["messages"], 1, "no system message when System is empty")
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), models.CompletionRequest{Prompt: "q"})
	assert.Error(t, err)
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), models.CompletionRequest{Prompt: "q"})
	assert.True(t, errors.Is(err, ErrEmptyCompletion))
}

func TestComplete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewOpenAIClientWithConfig(&ClientConfig{APIKey: "sk-test", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Complete(context.Background(), models.CompletionRequest{Prompt: "q"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWireTemperature(t *testing.T) {
	tests := []struct {
		in   float64
		want float32
	}{
		{0.7, 0.7},
		{1, 1},
	}
	for _, tt := range tests {
		if got := wireTemperature(tt.in); got != tt.want {
			t.Errorf("wireTemperature(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := wireTemperature(0); got <= 0 || got > 1e-30 {
		t.Errorf("wireTemperature(0) = %v, want a tiny positive value", got)
	}
}
