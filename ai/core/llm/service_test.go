package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewService_MissingModel(t *testing.T) {
	_, err := NewService(&Config{Provider: "deepseek", APIKey: "test-key"})
	if err == nil {
		t.Error("NewService() without model should return error")
	}
}

func TestNewService_MissingAPIKey(t *testing.T) {
	_, err := NewService(&Config{Provider: "openai", Model: "gpt-4o"})
	if err == nil {
		t.Error("NewService() without API key should return error")
	}

	// local providers run without a key
	svc, err := NewService(&Config{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewService(ollama) error = %v", err)
	}
	if svc == nil {
		t.Fatal("NewService(ollama) returned nil service")
	}
}

func TestNewService_UnknownProviderFallsBack(t *testing.T) {
	svc, err := NewService(&Config{
		Provider: "my-gateway",
		Model:    "m",
		APIKey:   "k",
		BaseURL:  "https://gateway.example.com/v1",
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc == nil {
		t.Fatal("NewService() returned nil service")
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	svc, err := NewService(&Config{
		Provider:    "deepseek",
		Model:       "deepseek-chat",
		APIKey:      "test-key",
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	s, ok := svc.(*service)
	if !ok {
		t.Fatal("NewService() did not return *service type")
	}

	if s.maxTokens != 2048 {
		t.Errorf("maxTokens = %v, want 2048", s.maxTokens)
	}
	if s.temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", s.temperature)
	}
	if s.timeout != 120 {
		t.Errorf("timeout = %v, want 120", s.timeout)
	}
}

func newCompletionServer(t *testing.T, content string, got *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		*got = body.Messages

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestService_Chat(t *testing.T) {
	var got []map[string]any
	srv := newCompletionServer(t, "# Summary", &got)

	svc, err := NewService(&Config{Provider: "openai", Model: "test-model", APIKey: "k", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	content, stats, err := svc.Chat(context.Background(), []Message{
		SystemPrompt("be brief"),
		UserMessage("[t]「A」: hi"),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if content != "# Summary" {
		t.Errorf("content = %q, want %q", content, "# Summary")
	}
	if stats == nil || stats.TotalTokens != 17 || stats.PromptTokens != 12 {
		t.Errorf("stats = %+v, want total 17 prompt 12", stats)
	}
	if len(got) != 2 || got[0]["role"] != "system" || got[1]["role"] != "user" {
		t.Errorf("request messages = %v, want system then user", got)
	}
}

func TestService_Chat_EmptyContent(t *testing.T) {
	var got []map[string]any
	srv := newCompletionServer(t, "   ", &got)

	svc, err := NewService(&Config{Provider: "openai", Model: "test-model", APIKey: "k", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, _, err = svc.Chat(context.Background(), []Message{UserMessage("x")})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Chat() error = %v, want ErrEmptyResponse", err)
	}
}

func TestService_Chat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "openai", Model: "m", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if _, _, err := svc.Chat(context.Background(), []Message{UserMessage("x")}); err == nil {
		t.Error("Chat() against failing server should return error")
	}
}

func TestConvertMessages(t *testing.T) {
	out := convertMessages([]Message{
		{Role: "system", Content: "s"},
		{Role: "assistant", Content: "a"},
		{Role: "weird", Content: "w"},
	})

	want := []string{"system", "assistant", "user"}
	for i, m := range out {
		if m.Role != want[i] {
			t.Errorf("message %d role = %v, want %v", i, m.Role, want[i])
		}
	}
}

func TestService_Warmup_NoPanic(t *testing.T) {
	svc, err := NewService(&Config{Provider: "deepseek", Model: "deepseek-chat", APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	// Warmup should not panic (will fail with network error but that's OK)
	svc.Warmup(context.Background())
}
