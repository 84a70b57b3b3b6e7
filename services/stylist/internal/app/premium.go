package app

import (
	"context"
	"fmt"

	"gauge/internal/util"
	"gauge/pkg/domain"
)

// PremiumStatus returns the stored status, or the free-tier defaults for a
// new installation.
func (a *App) PremiumStatus(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, ok, err := a.records.LoadPremium(ctx, installationID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("load premium status failed", "installation_id", installationID, "err", err)
		return domain.PremiumStatus{}, err
	}
	if !ok {
		status = a.defaultPremium()
	}
	return status, nil
}

func (a *App) defaultPremium() domain.PremiumStatus {
	return domain.PremiumStatus{
		FreeChecksRemaining: a.freeChecks,
		ChatTrialRemaining:  a.freeChatMessages,
	}
}

// ConsumeCheck spends one free check. Premium installations are never charged.
func (a *App) ConsumeCheck(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil {
		return domain.PremiumStatus{}, err
	}
	if status.IsPremium {
		return status, nil
	}
	if status.FreeChecksRemaining <= 0 {
		a.metrics.IncQuotaDenied("check")
		return status, ErrNoChecksRemaining
	}
	status.FreeChecksRemaining--
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return domain.PremiumStatus{}, err
	}
	return status, nil
}

// refundCheck gives back a check consumed by an operation that then failed.
func (a *App) refundCheck(ctx context.Context, installationID string) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil || status.IsPremium {
		return
	}
	status.FreeChecksRemaining++
	if err := a.savePremium(ctx, installationID, status); err != nil {
		util.LoggerFromContext(ctx).Error("refund check failed", "installation_id", installationID, "err", err)
	}
}

// ConsumeChatMessage counts one chat message. Without premium it spends a
// trial message; once the trial reaches zero chat stays closed until
// premium is activated.
func (a *App) ConsumeChatMessage(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil {
		return domain.PremiumStatus{}, err
	}
	status, err = a.spendChatMessage(status)
	if err != nil {
		return status, err
	}
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return domain.PremiumStatus{}, err
	}
	return status, nil
}

func (a *App) spendChatMessage(status domain.PremiumStatus) (domain.PremiumStatus, error) {
	if !status.IsPremium {
		if status.ChatTrialRemaining <= 0 {
			a.metrics.IncQuotaDenied("chat")
			return status, ErrTrialExhausted
		}
		status.ChatTrialRemaining--
	}
	status.ChatMessagesSent++
	return status, nil
}

func (a *App) ActivatePremium(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil {
		return domain.PremiumStatus{}, err
	}
	if !status.IsPremium {
		now := a.clock()
		status.IsPremium = true
		status.ActivatedAt = &now
	}
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return domain.PremiumStatus{}, err
	}
	util.LoggerFromContext(ctx).Info("premium activated", "installation_id", installationID)
	return status, nil
}

// DeactivatePremium drops premium; remaining free counters are left as they were.
func (a *App) DeactivatePremium(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil {
		return domain.PremiumStatus{}, err
	}
	status.IsPremium = false
	status.ActivatedAt = nil
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return domain.PremiumStatus{}, err
	}
	return status, nil
}

// RestoreFreeChecks resets the free check allowance. There is no automatic
// schedule; an operator or a purchase flow calls it.
func (a *App) RestoreFreeChecks(ctx context.Context, installationID string) (domain.PremiumStatus, error) {
	status, err := a.PremiumStatus(ctx, installationID)
	if err != nil {
		return domain.PremiumStatus{}, err
	}
	status.FreeChecksRemaining = a.freeChecks
	if err := a.savePremium(ctx, installationID, status); err != nil {
		return domain.PremiumStatus{}, err
	}
	return status, nil
}

func (a *App) savePremium(ctx context.Context, installationID string, status domain.PremiumStatus) error {
	if err := a.records.SavePremium(ctx, installationID, status); err != nil {
		util.LoggerFromContext(ctx).Error("save premium status failed", "installation_id", installationID, "err", err)
		return fmt.Errorf("save premium status: %w", err)
	}
	return nil
}
