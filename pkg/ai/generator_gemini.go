package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiGenerator builds a Gemini-based ChatGenerator.
func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// Chat implements ChatGenerator using Gemini.
func (g *GeminiGenerator) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	return g.client.GenerateContent(ctx, g.model, systemPrompt, messages)
}
