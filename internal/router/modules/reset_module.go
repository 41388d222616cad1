package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statlerhq/accounts/internal/container"
	handlers "github.com/statlerhq/accounts/internal/interface/http"
	"github.com/statlerhq/accounts/internal/interface/middleware"
)

// ResetModule wires the unauthenticated password-reset routes. Init gets a
// tight per-IP cap since each call can send an email.
type ResetModule struct {
	Handler *handlers.ResetHandler
}

func NewResetModule(h *handlers.ResetHandler) *ResetModule {
	return &ResetModule{Handler: h}
}

func (m *ResetModule) Register(rg *gin.RouterGroup) {
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.Init)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Handler.Confirm)
}
