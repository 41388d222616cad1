package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/container"
	handlers "github.com/statlerhq/accounts/internal/interface/http"
	"github.com/statlerhq/accounts/internal/interface/middleware"
)

// AccountModule wires the registration, session, and profile routes.
// Public: POST /api/register, /api/login, /api/refresh
// Protected: POST /api/logout, GET/PUT /api/profile, PUT /api/password
type AccountModule struct {
	Handler  *handlers.AccountHandler
	Sessions *application.SessionManager
}

func NewAccountModule(h *handlers.AccountHandler, sessions *application.SessionManager) *AccountModule {
	return &AccountModule{Handler: h, Sessions: sessions}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Sessions))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.PUT("/password", m.Handler.ChangePassword)
	}
}
