// Package router implements the Request Router of spec/4.7: token gate,
// per-IP sliding-window rate limit, path normalization, and dispatch to
// the search/match/bangumi/comment handlers. Gin supplies the HTTP
// engine and CORS middleware the way the teacher's internal/api/routes.go
// does; because the token prefix is variable and sits in front of the
// fixed /api/v2 tree, the actual path matching is done by hand in
// dispatch.go rather than via gin's route tree (documented in
// DESIGN.md).
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/match"
	"danmakuproxy/internal/orchestrator"
)

// Deps bundles everything the dispatcher needs to serve a request.
type Deps struct {
	Registry *config.Registry
	Catalog  *catalog.Catalog
	Orch     *orchestrator.Orchestrator
	Match    *match.Engine
	Stats    *Stats
}

// New assembles the gin.Engine: CORS middleware (matching the teacher's
// routes.go), the out-of-scope admin/static stub routes that bypass the
// token gate, and the catch-all dispatcher that implements spec/4.7.
func New(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	registerStaticRoutes(engine)

	engine.NoRoute(func(c *gin.Context) {
		dispatch(c, deps)
	})

	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// registerStaticRoutes wires the admin/console/static paths spec/1 and
// spec/4.7 step 1 place out of scope for this component: they exist only
// so the token gate and path normalizer know to exempt them, not to
// implement the admin console itself.
func registerStaticRoutes(engine *gin.Engine) {
	stub := func(c *gin.Context) { c.Status(http.StatusNotFound) }
	engine.GET("/", stub)
	engine.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	engine.GET("/robots.txt", func(c *gin.Context) { c.String(http.StatusOK, "User-agent: *\nDisallow:\n") })
	engine.POST("/api/login", stub)
	engine.POST("/api/logout", stub)
	engine.Any("/api/config/*rest", stub)
	engine.GET("/api/logs", stub)
}
