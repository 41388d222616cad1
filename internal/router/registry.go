// Package router collects the feature modules and mounts them under the
// shared /api group.
package router

import "github.com/gin-gonic/gin"

// Registry accumulates modules and group-level middleware, then mounts
// everything in one pass so route registration order stays deterministic.
type Registry struct {
	Engine *gin.Engine
	API    *gin.RouterGroup

	groupMW []gin.HandlerFunc
	modules []Module
}

func NewRegistry(engine *gin.Engine) *Registry {
	return &Registry{Engine: engine, API: engine.Group("/api")}
}

// Use adds middleware applied to the whole /api group.
func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.groupMW = append(r.groupMW, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mod)
}

// RegisterAll mounts the group middleware and every added module.
func (r *Registry) RegisterAll() {
	if len(r.groupMW) > 0 {
		r.API.Use(r.groupMW...)
	}
	for _, m := range r.modules {
		m.Register(r.API)
	}
}
