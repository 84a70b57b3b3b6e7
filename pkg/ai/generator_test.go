package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAICompatGeneratorSendsImagePartsAsDataURLs(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Fatalf("unexpected auth header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": " looks sharp "}}},
		})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL+"/v1", "sk-test", "gpt-test")
	reply, err := g.Chat(context.Background(), "be a stylist", []Message{
		UserText("hello"),
		{Role: "assistant", Parts: []Part{{Text: "hi"}}},
		{Role: "user", Parts: []Part{{Text: "rate this"}, {ImageBase64: "QUJD", MediaType: "image/png"}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "looks sharp" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	messages := got["messages"].([]any)
	if len(messages) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(messages))
	}
	if first := messages[0].(map[string]any); first["role"] != "system" || first["content"] != "be a stylist" {
		t.Fatalf("unexpected system message: %v", first)
	}
	last := messages[3].(map[string]any)
	parts, ok := last["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected content part array, got %v", last["content"])
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	if image["url"] != "data:image/png;base64,QUJD" {
		t.Fatalf("unexpected image url: %v", image["url"])
	}
}

func TestOpenAICompatGeneratorReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "slow down"}})
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "m")
	_, err := g.Chat(context.Background(), "", []Message{UserText("hi")})
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestOllamaGeneratorPassesImages(t *testing.T) {
	var req ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "nice"}})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(NewOllamaClient(srv.URL), "llava")
	reply, err := g.Chat(context.Background(), "sys", []Message{
		{Role: "user", Parts: []Part{{Text: "what do you think"}, {ImageBase64: "QUJD"}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "nice" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if len(req.Messages[1].Images) != 1 || req.Messages[1].Images[0] != "QUJD" {
		t.Fatalf("expected image forwarded, got %+v", req.Messages[1])
	}
}

func TestOllamaGeneratorEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "  "}})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(NewOllamaClient(srv.URL), "llava")
	if _, err := g.Chat(context.Background(), "", []Message{UserText("hi")}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiGeneratorMapsRolesAndInlineData(t *testing.T) {
	var req generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "k-1" {
			t.Fatalf("missing api key query")
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{"content": map[string]any{"parts": []map[string]string{{"text": "ok"}}}}},
		})
	}))
	defer srv.Close()

	client, err := NewGeminiClient("k-1", srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	g := NewGeminiGenerator(client, "models/gemini-test")
	reply, err := g.Chat(context.Background(), "sys", []Message{
		UserText("hi"),
		{Role: "assistant", Parts: []Part{{Text: "hello"}}},
		{Role: "user", Parts: []Part{{ImageBase64: "QUJD", MediaType: "image/png"}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("missing system instruction")
	}
	if req.Contents[1].Role != "model" {
		t.Fatalf("assistant role should map to model, got %q", req.Contents[1].Role)
	}
	inline := req.Contents[2].Parts[0].InlineData
	if inline == nil || inline.MimeType != "image/png" || inline.Data != "QUJD" {
		t.Fatalf("unexpected inline data: %+v", inline)
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(" ", ""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestClientTimeoutsStayWithinRequestTimeout(t *testing.T) {
	gemini, err := NewGeminiClient("key", "")
	if err != nil {
		t.Fatalf("gemini client: %v", err)
	}
	timeouts := map[string]time.Duration{
		"gemini":        gemini.httpClient.Timeout,
		"ollama":        NewOllamaClient("").httpClient.Timeout,
		"openai-compat": NewOpenAICompatGenerator("", "", "m").httpClient.Timeout,
	}
	for name, timeout := range timeouts {
		if timeout <= 0 || timeout > RequestTimeout {
			t.Fatalf("%s timeout %s outside (0, %s]", name, timeout, RequestTimeout)
		}
	}
}
