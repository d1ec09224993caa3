package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProviderWithConfig(OpenAIConfig{
		APIKey:     "sk-test-key",
		BaseURL:    srv.URL + "/v1/",
		MaxRetries: 0,
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Parallel()
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test-key" {
			t.Errorf("Unexpected auth header %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo-0125",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  Keep going!  "}}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 5, "total_tokens": 35}
		}`)
	})

	out, err := p.Complete(context.Background(), &CompletionRequest{
		System:      "sys",
		User:        "hello",
		MaxTokens:   80,
		Temperature: 0.7,
		JSON:        true,
		Operation:   "encouragement",
		EndUser:     "ana@example.com",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Text != "Keep going!" || out.TokensUsed != 35 || out.Model != "gpt-3.5-turbo-0125" {
		t.Errorf("Unexpected completion %+v", out)
	}

	if got["model"] != DefaultOpenAIModel {
		t.Errorf("model = %v, want %s", got["model"], DefaultOpenAIModel)
	}
	if got["max_tokens"] != float64(80) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	if got["temperature"] != 0.7 {
		t.Errorf("temperature = %v", got["temperature"])
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", got["response_format"])
	}
	if got["user"] != HashUserID("ana@example.com") {
		t.Errorf("user = %v, want the hashed caller", got["user"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %v", got["messages"])
	}
	if m := msgs[0].(map[string]any); m["role"] != "system" || m["content"] != "sys" {
		t.Errorf("Unexpected system message %v", m)
	}
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	t.Parallel()
	p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	})
	_, err := p.Complete(context.Background(), &CompletionRequest{User: "hi"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIProvider_QuotaError(t *testing.T) {
	t.Parallel()
	p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	})

	_, err := p.Complete(context.Background(), &CompletionRequest{User: "hi"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !IsQuotaError(err) {
		t.Errorf("Expected quota error, got %v", err)
	}
	if IsRateLimitError(err) {
		t.Error("Quota errors are not transient rate limits")
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Expected errors.Is ErrQuotaExceeded for %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "You exceeded your current quota" {
		t.Errorf("Unexpected API error %+v", apiErr)
	}
}

func TestOpenAIProvider_RateLimitRetryAfter(t *testing.T) {
	t.Parallel()
	p := newTestOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})

	_, err := p.Complete(context.Background(), &CompletionRequest{User: "hi"})
	if !IsRateLimitError(err) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter == nil || apiErr.RetryAfter.Seconds() != 7 {
		t.Errorf("Expected Retry-After of 7s, got %+v", apiErr)
	}
}

func TestRegisterOpenAI(t *testing.T) {
	t.Parallel()
	registry := NewProviderRegistry()
	RegisterOpenAI(registry, nil, false)

	if _, err := registry.GetProvider("openai", map[string]string{}); err == nil {
		t.Error("Expected error without api_key")
	}
	if _, err := registry.GetProvider("openai", map[string]string{"api_key": "k", "max_retries": "x"}); err == nil {
		t.Error("Expected error for invalid max_retries")
	}
	p, err := registry.GetProvider("openai", map[string]string{"api_key": "k", "model": "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if p.Model() != "gpt-4o-mini" {
		t.Errorf("Model = %q", p.Model())
	}

	var notFound *ErrProviderNotFound
	if _, err := registry.GetProvider("anthropic", nil); !errors.As(err, &notFound) {
		t.Errorf("Expected ErrProviderNotFound, got %v", err)
	}
}
