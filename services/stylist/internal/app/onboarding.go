package app

import (
	"context"
	"slices"

	"gauge/pkg/domain"
)

// Onboarding steps in the order the app presents them.
const (
	StepWelcome      = "welcome"
	StepProfile      = "profile"
	StepMeasurements = "measurements"
	StepStyle        = "style"
	StepCloset       = "closet"
)

var OnboardingSteps = []string{StepWelcome, StepProfile, StepMeasurements, StepStyle, StepCloset}

func (a *App) OnboardingState(ctx context.Context, installationID string) (domain.OnboardingState, error) {
	return a.records.LoadOnboarding(ctx, installationID)
}

// CompleteStep marks step done, moving it out of the skipped set if needed.
func (a *App) CompleteStep(ctx context.Context, installationID, step string) (domain.OnboardingState, error) {
	if !slices.Contains(OnboardingSteps, step) {
		return domain.OnboardingState{}, ErrUnknownStep
	}
	return a.updateOnboarding(ctx, installationID, func(state *domain.OnboardingState) {
		state.SkippedSteps = remove(state.SkippedSteps, step)
		if !slices.Contains(state.CompletedSteps, step) {
			state.CompletedSteps = append(state.CompletedSteps, step)
		}
	})
}

// SkipStep marks step skipped. A step that was already completed stays completed.
func (a *App) SkipStep(ctx context.Context, installationID, step string) (domain.OnboardingState, error) {
	if !slices.Contains(OnboardingSteps, step) {
		return domain.OnboardingState{}, ErrUnknownStep
	}
	return a.updateOnboarding(ctx, installationID, func(state *domain.OnboardingState) {
		if slices.Contains(state.CompletedSteps, step) || slices.Contains(state.SkippedSteps, step) {
			return
		}
		state.SkippedSteps = append(state.SkippedSteps, step)
	})
}

// FinishOnboarding closes onboarding; steps never visited count as skipped.
func (a *App) FinishOnboarding(ctx context.Context, installationID string) (domain.OnboardingState, error) {
	return a.updateOnboarding(ctx, installationID, func(state *domain.OnboardingState) {
		for _, step := range OnboardingSteps {
			if !slices.Contains(state.CompletedSteps, step) && !slices.Contains(state.SkippedSteps, step) {
				state.SkippedSteps = append(state.SkippedSteps, step)
			}
		}
		state.Finished = true
	})
}

func (a *App) ResetOnboarding(ctx context.Context, installationID string) (domain.OnboardingState, error) {
	return a.updateOnboarding(ctx, installationID, func(state *domain.OnboardingState) {
		*state = domain.OnboardingState{CompletedSteps: []string{}, SkippedSteps: []string{}}
	})
}

// IsOnboardingComplete reports whether onboarding was finished or every
// step was either completed or skipped.
func IsOnboardingComplete(state domain.OnboardingState) bool {
	if state.Finished {
		return true
	}
	for _, step := range OnboardingSteps {
		if !slices.Contains(state.CompletedSteps, step) && !slices.Contains(state.SkippedSteps, step) {
			return false
		}
	}
	return true
}

func (a *App) updateOnboarding(ctx context.Context, installationID string, mutate func(*domain.OnboardingState)) (domain.OnboardingState, error) {
	state, err := a.records.LoadOnboarding(ctx, installationID)
	if err != nil {
		return domain.OnboardingState{}, err
	}
	mutate(&state)
	state.UpdatedAt = a.clock()
	if err := a.records.SaveOnboarding(ctx, installationID, state); err != nil {
		return domain.OnboardingState{}, err
	}
	return state, nil
}

func remove(values []string, v string) []string {
	return slices.DeleteFunc(values, func(s string) bool { return s == v })
}
