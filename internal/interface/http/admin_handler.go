package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/internal/domain/repository"
	"github.com/statlerhq/accounts/internal/interface/middleware"
	"github.com/statlerhq/accounts/pkg/response"
	"github.com/statlerhq/accounts/pkg/validation"
)

// AdminHandler serves the owner-only account management endpoints.
type AdminHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAdminHandler(svc *application.Service, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Logger: logger}
}

type adminPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
	Confirm     string `json:"confirm" binding:"required"`
}

// List returns accounts by status class. ?status= accepts active, invited,
// or all and defaults to active.
func (h *AdminHandler) List(c *gin.Context) {
	filter := repository.StatusFilter(c.DefaultQuery("status", string(repository.FilterActive)))
	users, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	out := make([]entity.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	response.Success(c, http.StatusOK, out, "users", map[string]any{"count": len(out)})
}

// Search runs a full-text query against the user index.
func (h *AdminHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error(c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// SetPassword lets the owner replace any account's password without the old
// credential.
func (h *AdminHandler) SetPassword(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var req adminPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err = h.Svc.ChangePassword(c.Request.Context(), application.ChangePasswordInput{
		UserID:      id,
		NewPassword: req.NewPassword,
		Confirm:     req.Confirm,
	}, middleware.CallerFrom(c))
	if err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password updated", nil)
}

func (h *AdminHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id, middleware.CallerFrom(c)); err != nil {
		writeErr(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "user deleted", nil)
}
