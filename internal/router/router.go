package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/handler"
	"github.com/istrom/site-inventory/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login flow and the session endpoints.
// Login is rate limited per ip+route to slow down code guessing; the
// limiter degrades to a pass-through when Redis is unavailable.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, middleware.NewTokenBucket(rlCfg, rdb))
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/session", a.Session)
}
