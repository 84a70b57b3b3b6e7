package app

import (
	"context"
	"errors"
	"testing"

	"gauge/pkg/domain"
)

func TestSaveProfileNormalizes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if p, err := env.app.Profile(ctx, testInstallation); err != nil || p != nil {
		t.Fatalf("expected no profile, got %v err=%v", p, err)
	}
	saved, err := env.app.SaveProfile(ctx, testInstallation, domain.UserProfile{
		FirstName:        "  Alex ",
		StylePreferences: []string{"classic", " ", "Classic", "bold"},
		Measurements:     &domain.Measurements{Chest: ptrFloat(40)},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.FirstName != "Alex" {
		t.Fatalf("first name not trimmed: %q", saved.FirstName)
	}
	if len(saved.StylePreferences) != 2 || saved.StylePreferences[1] != "bold" {
		t.Fatalf("unexpected preferences %v", saved.StylePreferences)
	}
	if saved.FavoriteOccasions == nil {
		t.Fatalf("expected non-nil occasions")
	}
	if saved.Measurements.Unit != "in" {
		t.Fatalf("expected default unit, got %q", saved.Measurements.Unit)
	}
	if !saved.UpdatedAt.Equal(env.clock.Now()) {
		t.Fatalf("updatedAt = %v", saved.UpdatedAt)
	}
	loaded, err := env.app.Profile(ctx, testInstallation)
	if err != nil || loaded == nil || loaded.FirstName != "Alex" {
		t.Fatalf("load after save: %v err=%v", loaded, err)
	}
}

func TestSaveProfileValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]domain.UserProfile{
		"firstName":          {},
		"email":              {FirstName: "A", Email: "nope"},
		"age":                {FirstName: "A", Age: 300},
		"measurements.chest": {FirstName: "A", Measurements: &domain.Measurements{Chest: ptrFloat(-1)}},
		"measurements.unit":  {FirstName: "A", Measurements: &domain.Measurements{Unit: "cm"}},
	}
	for field, profile := range cases {
		_, err := env.app.SaveProfile(context.Background(), testInstallation, profile)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != field {
			t.Fatalf("%s: expected validation error on field, got %v", field, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation", field)
		}
	}
}

func TestSaveProfileDropsEmptyMeasurements(t *testing.T) {
	env := newTestEnv(t)
	saved, err := env.app.SaveProfile(context.Background(), testInstallation, domain.UserProfile{
		FirstName:    "A",
		Measurements: &domain.Measurements{},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Measurements != nil {
		t.Fatalf("expected empty measurements to be dropped")
	}
}
