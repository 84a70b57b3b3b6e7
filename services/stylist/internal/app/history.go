package app

import (
	"context"
	"fmt"

	"gauge/internal/util"
	"gauge/pkg/domain"
)

// ListHistory returns history newest first.
func (a *App) ListHistory(ctx context.Context, installationID string) ([]domain.HistoryEntry, error) {
	entries, err := a.records.LoadHistory(ctx, installationID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("load history failed", "installation_id", installationID, "err", err)
		return nil, err
	}
	for i := range entries {
		a.markChatActive(&entries[i])
	}
	return entries, nil
}

func (a *App) GetHistory(ctx context.Context, installationID, entryID string) (domain.HistoryEntry, error) {
	entries, err := a.records.LoadHistory(ctx, installationID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	for _, entry := range entries {
		if entry.ID == entryID {
			a.markChatActive(&entry)
			return entry, nil
		}
	}
	return domain.HistoryEntry{}, ErrHistoryNotFound
}

// markChatActive derives Active for a chat entry from its last activity.
func (a *App) markChatActive(entry *domain.HistoryEntry) {
	if entry.Kind == domain.KindChat && entry.Chat != nil {
		entry.Chat.Active = a.sessionActive(*entry.Chat)
	}
}

func (a *App) DeleteHistory(ctx context.Context, installationID, entryID string) error {
	entries, err := a.records.LoadHistory(ctx, installationID)
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if entry.ID == entryID {
			entries = append(entries[:i], entries[i+1:]...)
			return a.records.SaveHistory(ctx, installationID, entries)
		}
	}
	return ErrHistoryNotFound
}

func (a *App) ClearHistory(ctx context.Context, installationID string) error {
	return a.records.SaveHistory(ctx, installationID, nil)
}

// appendHistory inserts entry as the newest one and evicts the oldest
// entries beyond the limit.
func (a *App) appendHistory(ctx context.Context, installationID string, entry domain.HistoryEntry) error {
	entries, err := a.records.LoadHistory(ctx, installationID)
	if err != nil {
		return err
	}
	entries = append([]domain.HistoryEntry{entry}, entries...)
	if err := a.records.SaveHistory(ctx, installationID, a.capHistory(entries)); err != nil {
		util.LoggerFromContext(ctx).Error("save history failed", "installation_id", installationID, "err", err)
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// saveSessionToHistory upserts the chat entry for session, so saving the
// same session again replaces its earlier copy in place.
func (a *App) saveSessionToHistory(ctx context.Context, installationID string, session domain.ChatSession) (domain.HistoryEntry, error) {
	session.Active = false
	entries, err := a.records.LoadHistory(ctx, installationID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	for i, entry := range entries {
		if entry.Kind == domain.KindChat && entry.Chat != nil && entry.Chat.ID == session.ID {
			entries[i].Chat = &session
			if err := a.records.SaveHistory(ctx, installationID, entries); err != nil {
				return domain.HistoryEntry{}, fmt.Errorf("update chat history: %w", err)
			}
			return entries[i], nil
		}
	}
	entry := domain.HistoryEntry{
		ID:        util.NewID(),
		Kind:      domain.KindChat,
		CreatedAt: session.CreatedAt,
		Chat:      &session,
	}
	entries = append([]domain.HistoryEntry{entry}, entries...)
	if err := a.records.SaveHistory(ctx, installationID, a.capHistory(entries)); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("save chat history: %w", err)
	}
	return entry, nil
}

func (a *App) capHistory(entries []domain.HistoryEntry) []domain.HistoryEntry {
	if len(entries) > a.historyLimit {
		return entries[:a.historyLimit]
	}
	return entries
}
