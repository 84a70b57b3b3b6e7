package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gauge/internal/util"
	"gauge/pkg/ai"
	"gauge/pkg/domain"
)

// ChatReply is the result of one chat exchange. On model failure Message
// holds the apology and Session is unchanged.
type ChatReply struct {
	Session domain.ChatSession `json:"session"`
	Message domain.ChatMessage `json:"message"`
}

// CurrentSession returns the session in progress when its last message is
// within the active window; otherwise a new session is started and the
// stale one is left in history as it was.
func (a *App) CurrentSession(ctx context.Context, installationID string) (domain.ChatSession, error) {
	session, err := a.records.LoadChatSession(ctx, installationID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("load chat session failed", "installation_id", installationID, "err", err)
		return domain.ChatSession{}, err
	}
	if session != nil && a.sessionActive(*session) {
		session.Active = true
		return *session, nil
	}
	return a.startSession(ctx, installationID)
}

// NewSession files the current session in history, if it has messages, and
// starts an empty one.
func (a *App) NewSession(ctx context.Context, installationID string) (domain.ChatSession, error) {
	session, err := a.records.LoadChatSession(ctx, installationID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	if session != nil && len(session.Messages) > 0 {
		if _, err := a.saveSessionToHistory(ctx, installationID, *session); err != nil {
			return domain.ChatSession{}, err
		}
	}
	return a.startSession(ctx, installationID)
}

// SaveSession stores the current session in history and returns the entry.
func (a *App) SaveSession(ctx context.Context, installationID string) (domain.HistoryEntry, error) {
	session, err := a.records.LoadChatSession(ctx, installationID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if session == nil || len(session.Messages) == 0 {
		return domain.HistoryEntry{}, invalid("session", "no messages to save")
	}
	return a.saveSessionToHistory(ctx, installationID, *session)
}

// SendMessage sends a user message with optional photos to the stylist and
// records the exchange.
func (a *App) SendMessage(ctx context.Context, installationID, text string, images []Image) (ChatReply, error) {
	logger := util.LoggerFromContext(ctx).With("installation_id", installationID)
	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return ChatReply{}, ErrEmptyMessage
	}
	parts := make([]domain.ContentPart, 0, len(images)+1)
	if text != "" {
		parts = append(parts, domain.ContentPart{Type: domain.PartText, Text: text})
	}
	for _, img := range images {
		data, mediaType, err := a.decodeImage(img)
		if err != nil {
			return ChatReply{}, err
		}
		parts = append(parts, domain.ContentPart{
			Type:        domain.PartImage,
			ImageBase64: base64Encode(data),
			MediaType:   mediaType,
		})
	}

	var (
		profile *domain.UserProfile
		closet  []domain.ClosetItem
		status  domain.PremiumStatus
		session *domain.ChatSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = a.records.LoadProfile(gctx, installationID)
		return err
	})
	g.Go(func() error {
		var err error
		closet, err = a.records.LoadCloset(gctx, installationID)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = a.PremiumStatus(gctx, installationID)
		return err
	})
	g.Go(func() error {
		var err error
		session, err = a.records.LoadChatSession(gctx, installationID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Warn("load chat context failed", "err", err)
		return ChatReply{}, fmt.Errorf("load chat context: %w", err)
	}

	status, err := a.spendChatMessage(status)
	if err != nil {
		return ChatReply{}, err
	}

	now := a.clock()
	if session == nil || !a.sessionActive(*session) {
		fresh := a.newSession(now)
		session = &fresh
	}
	userMessage := domain.ChatMessage{
		ID:        util.NewID(),
		Role:      domain.RoleUser,
		Content:   parts,
		CreatedAt: now,
	}
	conversation := append(append([]domain.ChatMessage(nil), session.Messages...), userMessage)

	prompt := BuildSystemPrompt(profile, closet)
	start := time.Now()
	raw, err := a.generator.Chat(ctx, prompt, toModelMessages(conversation))
	a.metrics.ObserveLLM("chat", err, time.Since(start))
	if err != nil {
		logger.Error("chat generation failed", "err", err)
		session.Active = true
		return ChatReply{
			Session: *session,
			Message: domain.ChatMessage{
				ID:        util.NewID(),
				Role:      domain.RoleAssistant,
				Content:   []domain.ContentPart{{Type: domain.PartText, Text: ApologyMessage}},
				CreatedAt: now,
			},
		}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}

	reply, err := ParseReply(raw, closet)
	if err != nil {
		var replyErr *ReplyError
		if errors.As(err, &replyErr) {
			a.metrics.AddUnresolvedItemRefs(len(replyErr.Unresolved))
		}
		logger.Warn("assistant reply needed repair", "err", err)
	}
	assistantMessage := domain.ChatMessage{
		ID:            util.NewID(),
		Role:          domain.RoleAssistant,
		Content:       []domain.ContentPart{{Type: domain.PartText, Text: reply.Text}},
		WardrobeItems: reply.Items,
		CreatedAt:     a.clock(),
	}
	session.Messages = append(conversation, assistantMessage)
	session.LastMessageAt = assistantMessage.CreatedAt

	// The trial is spent only once the exchange is stored.
	if err := a.records.SaveChatSession(ctx, installationID, *session); err != nil {
		logger.Error("save chat session failed", "err", err)
		return ChatReply{}, fmt.Errorf("save chat session: %w", err)
	}
	if _, err := a.saveSessionToHistory(ctx, installationID, *session); err != nil {
		logger.Error("save chat history failed", "err", err)
		return ChatReply{}, err
	}
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return ChatReply{}, err
	}
	session.Active = true
	return ChatReply{Session: *session, Message: assistantMessage}, nil
}

func (a *App) startSession(ctx context.Context, installationID string) (domain.ChatSession, error) {
	session := a.newSession(a.clock())
	if err := a.records.SaveChatSession(ctx, installationID, session); err != nil {
		return domain.ChatSession{}, fmt.Errorf("save chat session: %w", err)
	}
	session.Active = true
	return session, nil
}

func (a *App) newSession(now time.Time) domain.ChatSession {
	return domain.ChatSession{
		ID:        util.NewID(),
		Messages:  []domain.ChatMessage{},
		CreatedAt: now,
	}
}

// sessionActive reports whether the last activity of session is within the
// active window. A session without messages dates from its creation.
func (a *App) sessionActive(session domain.ChatSession) bool {
	last := session.LastMessageAt
	if last.IsZero() {
		last = session.CreatedAt
	}
	return a.clock().Sub(last) < a.activeWindow
}

// toModelMessages converts the newest turns of a conversation for the model.
func toModelMessages(messages []domain.ChatMessage) []ai.Message {
	if len(messages) > maxContextMessages {
		messages = messages[len(messages)-maxContextMessages:]
	}
	out := make([]ai.Message, 0, len(messages))
	for _, msg := range messages {
		parts := make([]ai.Part, 0, len(msg.Content))
		for _, part := range msg.Content {
			switch part.Type {
			case domain.PartImage:
				parts = append(parts, ai.Part{ImageBase64: part.ImageBase64, MediaType: part.MediaType})
			default:
				if part.Text != "" {
					parts = append(parts, ai.Part{Text: part.Text})
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, ai.Message{Role: string(msg.Role), Parts: parts})
	}
	return out
}
