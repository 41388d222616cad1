package router

import "github.com/gin-gonic/gin"

// Module is a feature area (accounts, reset, admin) that mounts its own
// routes and route-level middleware on the shared group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
