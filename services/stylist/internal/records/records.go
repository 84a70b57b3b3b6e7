// Package records is the typed accessor over the key-value store. Every
// record type of an installation lives under one fixed key and is always
// written whole; callers read, modify and write back.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gauge/internal/util"
	"gauge/pkg/domain"
	"gauge/pkg/store"
)

const keyPrefix = "gauge"

// Record names, one fixed key per record type.
const (
	Profile     = "profile"
	Closet      = "closet"
	History     = "history"
	Premium     = "premium"
	Onboarding  = "onboarding"
	ChatSession = "chat_session"
)

var allRecords = []string{Profile, Closet, History, Premium, Onboarding, ChatSession}

// ErrInstallationRequired is returned when an empty installation id is used.
var ErrInstallationRequired = errors.New("installation id required")

// Records reads and writes JSON records for installations.
type Records struct {
	store store.Store
}

// New wraps a store.
func New(s store.Store) *Records {
	return &Records{store: s}
}

// Key returns the storage key of a record for an installation.
func Key(installationID, record string) string {
	return keyPrefix + ":" + installationID + ":" + record
}

// LoadProfile returns nil when no profile was saved yet.
func (r *Records) LoadProfile(ctx context.Context, installationID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	ok, err := r.load(ctx, installationID, Profile, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

func (r *Records) SaveProfile(ctx context.Context, installationID string, profile domain.UserProfile) error {
	return r.save(ctx, installationID, Profile, profile)
}

// LoadCloset returns an empty, non-nil list when nothing is stored.
func (r *Records) LoadCloset(ctx context.Context, installationID string) ([]domain.ClosetItem, error) {
	var items []domain.ClosetItem
	ok, err := r.load(ctx, installationID, Closet, &items)
	if err != nil || !ok {
		return []domain.ClosetItem{}, err
	}
	if items == nil {
		items = []domain.ClosetItem{}
	}
	return items, nil
}

func (r *Records) SaveCloset(ctx context.Context, installationID string, items []domain.ClosetItem) error {
	if items == nil {
		items = []domain.ClosetItem{}
	}
	return r.save(ctx, installationID, Closet, items)
}

// LoadHistory returns entries newest first; empty when nothing is stored.
func (r *Records) LoadHistory(ctx context.Context, installationID string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	ok, err := r.load(ctx, installationID, History, &entries)
	if err != nil || !ok {
		return []domain.HistoryEntry{}, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (r *Records) SaveHistory(ctx context.Context, installationID string, entries []domain.HistoryEntry) error {
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return r.save(ctx, installationID, History, entries)
}

// LoadPremium reports ok=false when no status was stored, so callers can
// apply their own free-tier defaults.
func (r *Records) LoadPremium(ctx context.Context, installationID string) (domain.PremiumStatus, bool, error) {
	var status domain.PremiumStatus
	ok, err := r.load(ctx, installationID, Premium, &status)
	if err != nil || !ok {
		return domain.PremiumStatus{}, false, err
	}
	return status, true, nil
}

func (r *Records) SavePremium(ctx context.Context, installationID string, status domain.PremiumStatus) error {
	return r.save(ctx, installationID, Premium, status)
}

func (r *Records) LoadOnboarding(ctx context.Context, installationID string) (domain.OnboardingState, error) {
	var state domain.OnboardingState
	ok, err := r.load(ctx, installationID, Onboarding, &state)
	if err != nil || !ok {
		return domain.OnboardingState{CompletedSteps: []string{}, SkippedSteps: []string{}}, err
	}
	if state.CompletedSteps == nil {
		state.CompletedSteps = []string{}
	}
	if state.SkippedSteps == nil {
		state.SkippedSteps = []string{}
	}
	return state, nil
}

func (r *Records) SaveOnboarding(ctx context.Context, installationID string, state domain.OnboardingState) error {
	return r.save(ctx, installationID, Onboarding, state)
}

// LoadChatSession returns the in-progress chat session, nil when none.
func (r *Records) LoadChatSession(ctx context.Context, installationID string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	ok, err := r.load(ctx, installationID, ChatSession, &session)
	if err != nil || !ok {
		return nil, err
	}
	return &session, nil
}

func (r *Records) SaveChatSession(ctx context.Context, installationID string, session domain.ChatSession) error {
	session.Active = false
	return r.save(ctx, installationID, ChatSession, session)
}

// ClearAll removes every record of an installation.
func (r *Records) ClearAll(ctx context.Context, installationID string) error {
	if strings.TrimSpace(installationID) == "" {
		return ErrInstallationRequired
	}
	keys := make([]string, 0, len(allRecords))
	for _, name := range allRecords {
		keys = append(keys, Key(installationID, name))
	}
	if err := r.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// load decodes the record into out. Undecodable data is logged and treated
// as absent so a corrupt blob degrades to the record's default.
func (r *Records) load(ctx context.Context, installationID, record string, out any) (bool, error) {
	if strings.TrimSpace(installationID) == "" {
		return false, ErrInstallationRequired
	}
	key := Key(installationID, record)
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", record, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		util.LoggerFromContext(ctx).Warn("discarding undecodable record", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

func (r *Records) save(ctx context.Context, installationID, record string, value any) error {
	if strings.TrimSpace(installationID) == "" {
		return ErrInstallationRequired
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", record, err)
	}
	if err := r.store.Set(ctx, Key(installationID, record), raw); err != nil {
		return fmt.Errorf("save %s: %w", record, err)
	}
	return nil
}
