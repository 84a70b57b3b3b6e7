package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"gauge/internal/installtoken"
	"gauge/internal/metrics"
	"gauge/internal/ratelimit"
	"gauge/internal/util"
	"gauge/services/stylist/internal/app"
)

const (
	smallBodyBytes   = 1 << 20
	maxImagesPerChat = 4
	serviceName      = "stylist"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Tokens *installtoken.Issuer
	// Limiter throttles model-backed routes per installation.
	Limiter ratelimit.Limiter
	// InstallLimiter throttles installation creation per client IP.
	InstallLimiter ratelimit.Limiter
	Metrics        metrics.Recorder
	TrustedProxies *util.TrustedProxies
	MaxImageBytes  int
}

// Server exposes the stylist HTTP API.
type Server struct {
	app            *app.App
	tokens         *installtoken.Issuer
	limiter        ratelimit.Limiter
	installLimiter ratelimit.Limiter
	metrics        metrics.Recorder
	trusted        *util.TrustedProxies
	mux            *http.ServeMux
	imageBodyBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer required")
	}
	if cfg.Limiter == nil || cfg.InstallLimiter == nil {
		return nil, errors.New("rate limiters required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	maxImageBytes := cfg.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = app.DefaultMaxImageBytes
	}
	// base64 inflates by 4/3; leave room for the rest of the JSON body.
	imageBodyBytes := int64(maxImageBytes/3+1)*4*maxImagesPerChat + smallBodyBytes
	s := &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		limiter:        cfg.Limiter,
		installLimiter: cfg.InstallLimiter,
		metrics:        recorder,
		trusted:        cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		imageBodyBytes: imageBodyBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	handler := util.WithSecurityHeaders(util.WithCORS(s.mux))
	return util.WithRequestID(util.WithRequestLog(serviceName, s.observe, handler))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.HandleFunc("/api/installations", s.handleCreateInstallation)
	s.mux.Handle("/api/installation", s.authenticated(s.handleInstallation))

	s.mux.Handle("/api/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/api/closet", s.authenticated(s.handleCloset))
	s.mux.Handle("/api/closet/", s.authenticated(s.handleClosetItem))
	s.mux.Handle("/api/history", s.authenticated(s.handleHistory))
	s.mux.Handle("/api/history/", s.authenticated(s.handleHistoryEntry))

	s.mux.Handle("/api/premium", s.authenticated(s.handlePremium))
	s.mux.Handle("/api/premium/", s.authenticated(s.handlePremiumAction))

	s.mux.Handle("/api/onboarding", s.authenticated(s.handleOnboarding))
	s.mux.Handle("/api/onboarding/steps/", s.authenticated(s.handleOnboardingStep))
	s.mux.Handle("/api/onboarding/finish", s.authenticated(s.handleOnboardingFinish))

	s.mux.Handle("/api/chat/session", s.authenticated(s.handleChatSession))
	s.mux.Handle("/api/chat/session/save", s.authenticated(s.handleChatSessionSave))
	s.mux.Handle("/api/chat/messages", s.authenticated(s.handleChatMessages))
	s.mux.Handle("/api/style-checks", s.authenticated(s.handleStyleChecks))
	s.mux.Handle("/api/outfits", s.authenticated(s.handleOutfits))
}

// observe feeds request metrics, labelled by route pattern to keep ids out
// of label values.
func (s *Server) observe(r *http.Request, status int, elapsed time.Duration) {
	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		pattern = "unmatched"
	}
	s.metrics.ObserveHTTP(pattern, status, elapsed)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ping(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrapper
type installationHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next installationHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "stylist.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		installationID, err := s.tokens.Verify(token)
		if err != nil {
			s.audit(r, "stylist.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		logger := util.LoggerFromContext(r.Context()).With("installation_id", installationID)
		r = r.WithContext(util.ContextWithLogger(r.Context(), logger))
		next(w, r, installationID)
	})
}

func (s *Server) handleCreateInstallation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.installLimiter, util.ClientIP(r, s.trusted), "too many installation attempts") {
		s.audit(r, "stylist.installation.create", "rate_limited")
		return
	}
	installationID := util.NewID()
	token, err := s.tokens.Issue(installationID)
	if err != nil {
		s.audit(r, "stylist.installation.create", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.audit(r, "stylist.installation.create", "success", "installation_id", installationID)
	writeJSON(w, http.StatusCreated, installationResponse{InstallationID: installationID, Token: token})
}

func (s *Server) handleInstallation(w http.ResponseWriter, r *http.Request, installationID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.ResetInstallation(r.Context(), installationID); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "stylist.installation.reset", "success", "installation_id", installationID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, subject, msg string) bool {
	key := r.URL.Path + "|" + subject
	if limiter.Allow(key) {
		return true
	}
	s.metrics.IncQuotaDenied("rate_limit")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// decodeJSON reads a JSON body of at most limit bytes into v. On failure it
// writes 413 for oversized bodies and 400 otherwise, and reports false.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps domain errors to HTTP responses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, app.ErrEmptyMessage),
		errors.Is(err, app.ErrInvalidImage),
		errors.Is(err, app.ErrUnknownStep):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrItemNotFound), errors.Is(err, app.ErrHistoryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNoChecksRemaining), errors.Is(err, app.ErrTrialExhausted):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrAssistantUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   app.ErrAssistantUnavailable.Error(),
			"message": app.ApologyMessage,
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type installationResponse struct {
	InstallationID string `json:"installationId"`
	Token          string `json:"token"`
}
