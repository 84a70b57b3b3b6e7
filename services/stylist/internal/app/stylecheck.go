package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gauge/internal/util"
	"gauge/pkg/ai"
	"gauge/pkg/domain"
)

const styleCheckPrompt = `You are GAUGE, a personal stylist reviewing a photo of an outfit.
Rate it from 1 to 10 for the occasion and explain briefly.
Reply with a single JSON object and nothing else:
{"score":7,"summary":"...","strengths":["..."],"suggestions":["..."]}`

const outfitInstructions = `## Task
Put together one outfit for the occasion named by the client, using only items from the wardrobe list.
Reply with a single JSON object and nothing else:
{"description":"...","itemIds":["..."],"tips":["..."]}`

type outfitReply struct {
	Description string   `json:"description"`
	ItemIDs     []string `json:"itemIds"`
	Tips        []string `json:"tips"`
}

// StyleCheck rates an outfit photo. It spends one free check, which is
// given back when the model cannot produce a result.
func (a *App) StyleCheck(ctx context.Context, installationID string, image Image, occasion string) (domain.HistoryEntry, error) {
	logger := util.LoggerFromContext(ctx).With("installation_id", installationID)
	occasion = strings.TrimSpace(occasion)
	data, mediaType, err := a.decodeImage(image)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if _, err := a.ConsumeCheck(ctx, installationID); err != nil {
		return domain.HistoryEntry{}, err
	}
	profile, err := a.records.LoadProfile(ctx, installationID)
	if err != nil {
		a.refundCheck(ctx, installationID)
		return domain.HistoryEntry{}, err
	}

	request := "Please review this outfit."
	if occasion != "" {
		request = fmt.Sprintf("Please review this outfit for: %s.", occasion)
	}
	if profile != nil && len(profile.StylePreferences) > 0 {
		request += " My style: " + strings.Join(profile.StylePreferences, ", ") + "."
	}
	messages := []ai.Message{{Role: string(domain.RoleUser), Parts: []ai.Part{
		{Text: request},
		{ImageBase64: base64Encode(data), MediaType: mediaType},
	}}}

	start := time.Now()
	raw, err := a.generator.Chat(ctx, styleCheckPrompt, messages)
	a.metrics.ObserveLLM("style_check", err, time.Since(start))
	if err != nil {
		logger.Error("style check generation failed", "err", err)
		a.refundCheck(ctx, installationID)
		return domain.HistoryEntry{}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	var result domain.StyleCheckResult
	if err := decodeJSONReply(raw, &result); err != nil {
		logger.Warn("style check reply unreadable", "err", err)
		a.refundCheck(ctx, installationID)
		return domain.HistoryEntry{}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	result.Score = min(max(result.Score, 1), 10)
	result.Occasion = occasion
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}

	entry := domain.HistoryEntry{
		ID:         util.NewID(),
		Kind:       domain.KindStyleCheck,
		CreatedAt:  a.clock(),
		StyleCheck: &result,
	}
	if err := a.appendHistory(ctx, installationID, entry); err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// RecommendOutfit builds an outfit for occasion from the closet. It costs a
// free check like a style check.
func (a *App) RecommendOutfit(ctx context.Context, installationID, occasion string) (domain.HistoryEntry, error) {
	logger := util.LoggerFromContext(ctx).With("installation_id", installationID)
	occasion = strings.TrimSpace(occasion)
	if occasion == "" {
		return domain.HistoryEntry{}, invalid("occasion", "required")
	}
	closet, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if len(closet) == 0 {
		return domain.HistoryEntry{}, invalid("closet", "add some items before asking for an outfit")
	}
	profile, err := a.records.LoadProfile(ctx, installationID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if _, err := a.ConsumeCheck(ctx, installationID); err != nil {
		return domain.HistoryEntry{}, err
	}

	prompt := BuildSystemPrompt(profile, closet) + "\n" + outfitInstructions + "\n"
	start := time.Now()
	raw, err := a.generator.Chat(ctx, prompt, []ai.Message{ai.UserText("Occasion: " + occasion)})
	a.metrics.ObserveLLM("outfit", err, time.Since(start))
	if err != nil {
		logger.Error("outfit generation failed", "err", err)
		a.refundCheck(ctx, installationID)
		return domain.HistoryEntry{}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	var decoded outfitReply
	if err := decodeJSONReply(raw, &decoded); err != nil {
		logger.Warn("outfit reply unreadable", "err", err)
		a.refundCheck(ctx, installationID)
		return domain.HistoryEntry{}, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	description, inline := stripItemTags(decoded.Description)
	items, unresolved := resolveItems(append(decoded.ItemIDs, inline...), closet)
	if len(unresolved) > 0 {
		a.metrics.AddUnresolvedItemRefs(len(unresolved))
		logger.Warn("outfit referenced unknown items", "err", &ReplyError{Unresolved: unresolved})
	}
	if items == nil {
		items = []domain.ClosetItem{}
	}

	entry := domain.HistoryEntry{
		ID:        util.NewID(),
		Kind:      domain.KindOutfit,
		CreatedAt: a.clock(),
		Outfit: &domain.OutfitResult{
			Occasion:    occasion,
			Description: description,
			Items:       items,
			Tips:        cleanList(decoded.Tips),
		},
	}
	if err := a.appendHistory(ctx, installationID, entry); err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// decodeJSONReply decodes the JSON object of a model reply into out.
func decodeJSONReply(raw string, out any) error {
	body, ok := extractJSON(raw)
	if !ok {
		return &ReplyError{Malformed: errors.New("no JSON object in reply")}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &ReplyError{Malformed: err}
	}
	return nil
}
