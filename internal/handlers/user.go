package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/services"
)

func (h *Handler) writeFlags(w http.ResponseWriter, flags models.UserFlags, err error) {
	if err != nil {
		h.Logger.Error("failed to store user flags", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    flags,
	})
}

// GetUser answers GET /api/user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	h.writeFlags(w, h.Flags.Get(r.Context(), identity(r)), nil)
}

type loginRequest struct {
	Email string `json:"email"`
}

// PostLogin answers POST /api/user/login {email}. No credential is checked.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	flags, err := h.Flags.Login(r.Context(), identity(r), body.Email)
	if errors.Is(err, services.ErrInvalidEmail) {
		writeError(w, http.StatusBadRequest, "Enter a valid email")
		return
	}
	h.writeFlags(w, flags, err)
}

// PostLogout answers POST /api/user/logout.
func (h *Handler) PostLogout(w http.ResponseWriter, r *http.Request) {
	flags, err := h.Flags.Logout(r.Context(), identity(r))
	h.writeFlags(w, flags, err)
}

// PostPremium answers POST /api/user/premium.
func (h *Handler) PostPremium(w http.ResponseWriter, r *http.Request) {
	flags, err := h.Flags.UpgradeToPremium(r.Context(), identity(r))
	h.writeFlags(w, flags, err)
}
