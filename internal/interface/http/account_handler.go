// Package handlers exposes the account service over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/interface/middleware"
	"github.com/statlerhq/accounts/pkg/apperrors"
	"github.com/statlerhq/accounts/pkg/helpers"
	"github.com/statlerhq/accounts/pkg/response"
	"github.com/statlerhq/accounts/pkg/validation"
)

type AccountHandler struct {
	Svc      *application.Service
	Sessions *application.SessionManager
	Logger   *logrus.Logger
	Cookies  *helpers.CookieManager
}

func NewAccountHandler(svc *application.Service, sessions *application.SessionManager, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AccountHandler {
	return &AccountHandler{
		Svc:      svc,
		Sessions: sessions,
		Logger:   logger,
		Cookies:  helpers.NewCookie(cookieDomain, cookieSecure),
	}
}

// writeErr maps an application error onto the response envelope. Internal
// errors are logged with the request id and never leak their cause.
func writeErr(c *gin.Context, logger *logrus.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
	}
	response.Error(c, status, apperrors.MessageOf(err), nil)
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required,alphanum,min=3,max=32"`
	FirstName string `json:"first_name" binding:"max=64"`
	LastName  string `json:"last_name" binding:"max=64"`
	Password  string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Username  string `json:"username" binding:"omitempty,alphanum,min=3,max=32"`
	FirstName string `json:"first_name" binding:"max=64"`
	LastName  string `json:"last_name" binding:"max=64"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" binding:"required"`
	Confirm     string `json:"confirm" binding:"required"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, u.Public(), "account created", nil)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Check(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	pair, err := h.Sessions.Issue(c.Request.Context(), u)
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessExpiry, pair.RefreshToken, pair.RefreshExpiry)
	response.Success(c, http.StatusOK, u.Public(), "login successful", map[string]any{
		"access_expires_at":  pair.AccessExpiry,
		"refresh_expires_at": pair.RefreshExpiry,
	})
}

func (h *AccountHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Sessions.Refresh(c.Request.Context(), refresh)
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessExpiry, pair.RefreshToken, pair.RefreshExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{
		"access_expires_at":  pair.AccessExpiry,
		"refresh_expires_at": pair.RefreshExpiry,
	})
}

func (h *AccountHandler) Logout(c *gin.Context) {
	if uid := c.GetInt64(middleware.CtxUserIDKey); uid != 0 {
		if err := h.Sessions.Revoke(c.Request.Context(), uid); err != nil && h.Logger != nil {
			h.Logger.WithError(err).Warn("session revoke failed")
		}
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

func (h *AccountHandler) GetProfile(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.GetInt64(middleware.CtxUserIDKey))
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, u.Public(), "profile", nil)
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetInt64(middleware.CtxUserIDKey), application.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, u.Public(), "profile updated", nil)
}

// ChangePassword is the self-service credential change; the old password is
// mandatory here regardless of role.
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetInt64(middleware.CtxUserIDKey)
	err := h.Svc.ChangePassword(c.Request.Context(), application.ChangePasswordInput{
		UserID:      uid,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		Confirm:     req.Confirm,
	}, application.Self(uid))
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password updated", nil)
}

// notFoundToBadRequest hides account existence from unauthenticated reset
// callers.
func notFoundToBadRequest(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.BadRequest("Invalid token")
	}
	return err
}
