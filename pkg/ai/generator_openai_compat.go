package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAICompatGenerator calls any OpenAI-compatible /v1/chat/completions endpoint.
// Works with OpenAI, vLLM, LiteLLM, LocalAI, OpenRouter, self-hosted models, etc.
type OpenAICompatGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatGenerator builds an OpenAI-compatible ChatGenerator.
// baseURL should include the /v1 prefix, e.g. "http://localhost:8000/v1".
// apiKey can be empty for local models that do not require authentication.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) *OpenAICompatGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAICompatGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
	}
}

// Chat implements ChatGenerator using the OpenAI chat completions API.
// Messages with images are sent as content part arrays with data URLs.
func (g *OpenAICompatGenerator) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("openai-compat generation model required")
	}
	wire := make([]oaiMessage, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		wire = append(wire, oaiMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range messages {
		wire = append(wire, toOAIMessage(msg))
	}

	reqBody := oaiChatRequest{
		Model:    g.model,
		Messages: wire,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai-compat api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai-compat api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toOAIMessage(msg Message) oaiMessage {
	hasImage := false
	for _, p := range msg.Parts {
		if p.IsImage() {
			hasImage = true
			break
		}
	}
	if !hasImage {
		texts := make([]string, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			texts = append(texts, p.Text)
		}
		return oaiMessage{Role: msg.Role, Content: strings.Join(texts, "\n")}
	}
	parts := make([]oaiContentPart, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		if p.IsImage() {
			parts = append(parts, oaiContentPart{
				Type:     "image_url",
				ImageURL: &oaiImageURL{URL: "data:" + imageMediaType(p) + ";base64," + p.ImageBase64},
			})
			continue
		}
		parts = append(parts, oaiContentPart{Type: "text", Text: p.Text})
	}
	return oaiMessage{Role: msg.Role, Content: parts}
}

// OpenAI-compatible request/response types.

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

// oaiMessage carries either a plain string or a []oaiContentPart as content.
type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaiChatRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiResponseMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
