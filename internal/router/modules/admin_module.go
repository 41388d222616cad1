package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/container"
	handlers "github.com/statlerhq/accounts/internal/interface/http"
	"github.com/statlerhq/accounts/internal/interface/middleware"
)

// AdminModule wires the owner-only management routes under /api/users.
type AdminModule struct {
	Handler  *handlers.AdminHandler
	Sessions *application.SessionManager
}

func NewAdminModule(h *handlers.AdminHandler, sessions *application.SessionManager) *AdminModule {
	return &AdminModule{Handler: h, Sessions: sessions}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/users")
	admin.Use(
		middleware.Auth(m.Sessions),
		middleware.RequireOwner(),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), middleware.AllowPrivateIP()),
	)
	{
		admin.GET("", m.Handler.List)
		admin.GET("/search", m.Handler.Search)
		admin.PUT("/:id/password", m.Handler.SetPassword)
		admin.DELETE("/:id", m.Handler.Delete)
	}
}
