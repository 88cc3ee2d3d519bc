package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/infectwatch/apiserver/internal/services"
	"github.com/infectwatch/apiserver/types"
)

// ProfileHandler serves the authenticated caller's profile and login history.
type ProfileHandler struct {
	userService    *services.UserService
	sessionService *services.SessionService
	logger         *slog.Logger
}

func NewProfileHandler(userService *services.UserService, sessionService *services.SessionService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		userService:    userService,
		sessionService: sessionService,
		logger:         logger,
	}
}

// ProfileRouter registers the profile routes behind authMiddleware.
func ProfileRouter(
	r chi.Router,
	userService *services.UserService,
	sessionService *services.SessionService,
	logger *slog.Logger,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProfileHandler(userService, sessionService, logger)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/profile", handler.Profile)
		r.Get("/login-history", handler.LoginHistory)
	})
}

func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	email, err := emailFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetProfile(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

func (h *ProfileHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	email, err := emailFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, total, err := h.sessionService.LoginHistory(r.Context(), email, offset, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginHistoryResponse{
		Success:      true,
		LoginHistory: sessions,
		Total:        total,
	})
}

// LoginHistoryResponse lists sessions newest first.
type LoginHistoryResponse struct {
	Success      bool                 `json:"success"`
	LoginHistory []types.LoginSession `json:"loginHistory"`
	Total        int                  `json:"total"`
}
