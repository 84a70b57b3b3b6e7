package app

import (
	"context"
	"fmt"
	"strings"

	"gauge/internal/util"
	"gauge/pkg/domain"
)

// Profile returns the saved profile, or nil when the user has not set one up.
func (a *App) Profile(ctx context.Context, installationID string) (*domain.UserProfile, error) {
	profile, err := a.records.LoadProfile(ctx, installationID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("load profile failed", "installation_id", installationID, "err", err)
		return nil, err
	}
	return profile, nil
}

// SaveProfile validates and replaces the whole profile.
func (a *App) SaveProfile(ctx context.Context, installationID string, profile domain.UserProfile) (domain.UserProfile, error) {
	profile.FirstName = strings.TrimSpace(profile.FirstName)
	profile.LastName = strings.TrimSpace(profile.LastName)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.Gender = strings.TrimSpace(profile.Gender)
	profile.ShoeSize = strings.TrimSpace(profile.ShoeSize)
	if profile.FirstName == "" {
		return domain.UserProfile{}, invalid("firstName", "required")
	}
	if profile.Email != "" && !strings.Contains(profile.Email, "@") {
		return domain.UserProfile{}, invalid("email", "not an email address")
	}
	if profile.Age < 0 || profile.Age > 120 {
		return domain.UserProfile{}, invalid("age", "out of range")
	}
	if profile.HeightInches < 0 || profile.WeightPounds < 0 {
		return domain.UserProfile{}, invalid("height", "must not be negative")
	}
	if m := profile.Measurements; m != nil {
		if err := validateMeasurements(m); err != nil {
			return domain.UserProfile{}, err
		}
		if measurementsEmpty(*m) {
			profile.Measurements = nil
		}
	}
	profile.StylePreferences = cleanList(profile.StylePreferences)
	profile.FavoriteOccasions = cleanList(profile.FavoriteOccasions)
	profile.UpdatedAt = a.clock()
	if err := a.records.SaveProfile(ctx, installationID, profile); err != nil {
		util.LoggerFromContext(ctx).Error("save profile failed", "installation_id", installationID, "err", err)
		return domain.UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

func validateMeasurements(m *domain.Measurements) error {
	m.Unit = strings.ToLower(strings.TrimSpace(m.Unit))
	switch m.Unit {
	case "":
		m.Unit = "in"
	case "in":
	default:
		return invalid("measurements.unit", "only inches are supported")
	}
	for _, f := range measurementFields(*m) {
		if f.value != nil && *f.value <= 0 {
			return invalid("measurements."+f.name, "must be positive")
		}
	}
	return nil
}

func measurementsEmpty(m domain.Measurements) bool {
	for _, f := range measurementFields(m) {
		if f.value != nil {
			return false
		}
	}
	return true
}

// cleanList trims entries and drops blanks and duplicates.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
