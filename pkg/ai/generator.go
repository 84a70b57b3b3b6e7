package ai

import (
	"context"
	"errors"
	"time"
)

// RequestTimeout bounds a single provider call. Servers that wait on a
// reply must allow at least this long to write their response.
const RequestTimeout = 120 * time.Second

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Part is one piece of a chat message: text, or a base64-encoded image.
type Part struct {
	Text        string
	ImageBase64 string
	MediaType   string
}

// IsImage reports whether the part carries image data.
func (p Part) IsImage() bool {
	return p.ImageBase64 != ""
}

// Message is a single chat turn sent to a provider. Role is "user" or "assistant".
type Message struct {
	Role  string
	Parts []Part
}

// UserText builds a single-part user message.
func UserText(text string) Message {
	return Message{Role: "user", Parts: []Part{{Text: text}}}
}

// ChatGenerator generates an assistant reply from a system prompt and prior turns.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

func imageMediaType(p Part) string {
	if p.MediaType != "" {
		return p.MediaType
	}
	return "image/jpeg"
}
