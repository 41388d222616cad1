package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/pkg/apperrors"
	"github.com/statlerhq/accounts/pkg/response"
	"github.com/statlerhq/accounts/pkg/validation"
)

// ResetHandler serves the unauthenticated password-reset endpoints.
type ResetHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewResetHandler(svc *application.Service, logger *logrus.Logger) *ResetHandler {
	return &ResetHandler{Svc: svc, Logger: logger}
}

type resetInitRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
	Confirm     string `json:"confirm" binding:"required"`
}

// Init requests a reset email. The response is identical whether or not the
// address has an account, so the endpoint cannot be used for enumeration.
func (h *ResetHandler) Init(c *gin.Context) {
	var req resetInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if _, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			writeErr(c, h.Logger, err)
			return
		}
		if h.Logger != nil {
			h.Logger.WithField("email", req.Email).Debug("reset requested for unknown address")
		}
	}
	response.Success[any](c, http.StatusOK, map[string]any{"sent": true},
		"If an account exists for that address, a reset email is on its way.", nil)
}

// Confirm consumes a reset token and sets the new password. A token whose
// embedded email no longer matches an account answers with the same invalid
// token error as a forged one.
func (h *ResetHandler) Confirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, req.Confirm)
	if err != nil {
		writeErr(c, h.Logger, notFoundToBadRequest(err))
		return
	}
	response.Success(c, http.StatusOK, u.Public(), "password has been reset", nil)
}
