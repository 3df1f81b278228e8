package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/irgordon/threadvault/api/internal/api/middleware"
	"github.com/irgordon/threadvault/api/internal/core/domain"
)

// Use a single instance of Validate, it caches struct info
var validate = validator.New()

// ==============================================================================
// 1. Request Payloads (Input Validation)
// ==============================================================================

type UnlockRequest struct {
	Password string `json:"password" validate:"required"`
}

// UnlockResponse is the unlock status plus the session that grants access to the views.
type UnlockResponse struct {
	domain.UnlockStatus
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type UnlockHandler struct {
	Service  domain.UnlockService
	Sessions domain.SessionManager
	Defaults domain.Sources
	Logger   *slog.Logger
}

func NewUnlockHandler(service domain.UnlockService, sessions domain.SessionManager, defaults domain.Sources, logger *slog.Logger) *UnlockHandler {
	return &UnlockHandler{
		Service:  service,
		Sessions: sessions,
		Defaults: defaults,
		Logger:   logger,
	}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// Unlock handles POST /api/v1/unlock
// The annotated, threads and config query parameters override the artifact locations,
// within the artifact base. Once the data is unlocked, later callers get a session only
// by presenting the same password.
func (h *UnlockHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid JSON payload"})
		return
	}

	if err := validate.Struct(req); err != nil {
		HandleError(w, r, domain.ErrEmptyPassword)
		return
	}

	sources := domain.ResolveSources(r.URL.Query(), h.Defaults)
	_, err := h.Service.Unlock(r.Context(), req.Password, sources)
	if errors.Is(err, domain.ErrAlreadyUnlocked) {
		err = h.Service.Verify(r.Context(), req.Password)
	}
	if err != nil {
		HandleError(w, r, err)
		return
	}

	token, expiresAt, err := h.Sessions.Issue()
	if err != nil {
		h.Logger.Error("failed to issue session", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, UnlockResponse{
		UnlockStatus: h.Service.Status(),
		Token:        token,
		ExpiresAt:    expiresAt,
	})
}

// Status handles GET /api/v1/status
func (h *UnlockHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Status())
}
