package server

import (
	"errors"
	"net/http"
	"strings"

	"gauge/pkg/domain"
	"gauge/services/stylist/internal/app"
)

type chatMessageRequest struct {
	Text   string      `json:"text"`
	Images []app.Image `json:"images"`
}

type styleCheckRequest struct {
	Image    app.Image `json:"image"`
	Occasion string    `json:"occasion"`
}

type outfitRequest struct {
	Occasion string `json:"occasion"`
}

type onboardingResponse struct {
	domain.OnboardingState
	Complete bool `json:"complete"`
}

type chatReplyResponse struct {
	Session domain.ChatSession `json:"session"`
	Message domain.ChatMessage `json:"message"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, installationID string) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.Profile(r.Context(), installationID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if profile == nil {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		var req domain.UserProfile
		if !decodeJSON(w, r, smallBodyBytes, &req) {
			return
		}
		profile, err := s.app.SaveProfile(r.Context(), installationID, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCloset(w http.ResponseWriter, r *http.Request, installationID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListItems(r.Context(), installationID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if r.URL.Query().Get("grouped") == "true" {
			writeJSON(w, http.StatusOK, map[string]any{"groups": app.GroupByType(items)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req app.ItemInput
		if !decodeJSON(w, r, s.imageBodyBytes, &req) {
			return
		}
		item, err := s.app.AddItem(r.Context(), installationID, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleClosetItem(w http.ResponseWriter, r *http.Request, installationID string) {
	id := strings.TrimPrefix(r.URL.Path, "/api/closet/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := s.app.GetItem(r.Context(), installationID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var req app.ItemInput
		if !decodeJSON(w, r, s.imageBodyBytes, &req) {
			return
		}
		item, err := s.app.UpdateItem(r.Context(), installationID, id, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := s.app.DeleteItem(r.Context(), installationID, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, installationID string) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.app.ListHistory(r.Context(), installationID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case http.MethodDelete:
		if err := s.app.ClearHistory(r.Context(), installationID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request, installationID string) {
	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		entry, err := s.app.GetHistory(r.Context(), installationID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.app.DeleteHistory(r.Context(), installationID, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePremium(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	status, err := s.app.PremiumStatus(r.Context(), installationID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePremiumAction(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var (
		status domain.PremiumStatus
		err    error
	)
	action := strings.TrimPrefix(r.URL.Path, "/api/premium/")
	switch action {
	case "activate":
		status, err = s.app.ActivatePremium(r.Context(), installationID)
	case "deactivate":
		status, err = s.app.DeactivatePremium(r.Context(), installationID)
	case "restore-checks":
		status, err = s.app.RestoreFreeChecks(r.Context(), installationID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "stylist.premium."+action, "success", "installation_id", installationID)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request, installationID string) {
	var (
		state domain.OnboardingState
		err   error
	)
	switch r.Method {
	case http.MethodGet:
		state, err = s.app.OnboardingState(r.Context(), installationID)
	case http.MethodDelete:
		state, err = s.app.ResetOnboarding(r.Context(), installationID)
	default:
		methodNotAllowed(w)
		return
	}
	writeOnboarding(w, state, err)
}

func (s *Server) handleOnboardingStep(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/onboarding/steps/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	var (
		state domain.OnboardingState
		err   error
	)
	switch parts[1] {
	case "complete":
		state, err = s.app.CompleteStep(r.Context(), installationID, parts[0])
	case "skip":
		state, err = s.app.SkipStep(r.Context(), installationID, parts[0])
	default:
		http.NotFound(w, r)
		return
	}
	writeOnboarding(w, state, err)
}

func (s *Server) handleOnboardingFinish(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	state, err := s.app.FinishOnboarding(r.Context(), installationID)
	writeOnboarding(w, state, err)
}

func writeOnboarding(w http.ResponseWriter, state domain.OnboardingState, err error) {
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{OnboardingState: state, Complete: app.IsOnboardingComplete(state)})
}

func (s *Server) handleChatSession(w http.ResponseWriter, r *http.Request, installationID string) {
	var (
		session domain.ChatSession
		err     error
		status  = http.StatusOK
	)
	switch r.Method {
	case http.MethodGet:
		session, err = s.app.CurrentSession(r.Context(), installationID)
	case http.MethodPost:
		session, err = s.app.NewSession(r.Context(), installationID)
		status = http.StatusCreated
	default:
		methodNotAllowed(w)
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, status, session)
}

func (s *Server) handleChatSessionSave(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	entry, err := s.app.SaveSession(r.Context(), installationID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limiter, installationID, "too many messages") {
		return
	}
	var req chatMessageRequest
	if !decodeJSON(w, r, s.imageBodyBytes, &req) {
		return
	}
	if len(req.Images) > maxImagesPerChat {
		writeError(w, http.StatusBadRequest, "too many images")
		return
	}
	reply, err := s.app.SendMessage(r.Context(), installationID, req.Text, req.Images)
	if errors.Is(err, app.ErrAssistantUnavailable) {
		writeJSON(w, http.StatusBadGateway, chatReplyResponse{
			Session: reply.Session,
			Message: reply.Message,
			Error:   app.ErrAssistantUnavailable.Error(),
		})
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatReplyResponse{Session: reply.Session, Message: reply.Message})
}

func (s *Server) handleStyleChecks(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limiter, installationID, "too many style checks") {
		return
	}
	var req styleCheckRequest
	if !decodeJSON(w, r, s.imageBodyBytes, &req) {
		return
	}
	entry, err := s.app.StyleCheck(r.Context(), installationID, req.Image, req.Occasion)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleOutfits(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.limiter, installationID, "too many outfit requests") {
		return
	}
	var req outfitRequest
	if !decodeJSON(w, r, smallBodyBytes, &req) {
		return
	}
	entry, err := s.app.RecommendOutfit(r.Context(), installationID, req.Occasion)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
