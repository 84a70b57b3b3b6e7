package ai

import (
	"context"
	"fmt"
	"strings"
)

// OllamaGenerator wraps OllamaClient with a fixed model for chat generation
// using the Ollama /api/chat endpoint.
type OllamaGenerator struct {
	client *OllamaClient
	model  string
}

// NewOllamaGenerator builds an Ollama-based ChatGenerator.
func NewOllamaGenerator(client *OllamaClient, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

// Chat implements ChatGenerator using Ollama /api/chat.
// Images are passed through the per-message images field.
func (g *OllamaGenerator) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	model := strings.TrimSpace(g.model)
	if model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}

	wire := make([]ollamaChatMessage, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		wire = append(wire, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range messages {
		out := ollamaChatMessage{Role: msg.Role}
		var texts []string
		for _, p := range msg.Parts {
			if p.IsImage() {
				out.Images = append(out.Images, p.ImageBase64)
				continue
			}
			texts = append(texts, p.Text)
		}
		out.Content = strings.Join(texts, "\n")
		wire = append(wire, out)
	}

	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: wire,
		Stream:   false,
	}

	var resp ollamaChatResponse
	if _, err := g.client.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Message.Content, nil
}

// Ollama /api/chat request/response types.

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}
