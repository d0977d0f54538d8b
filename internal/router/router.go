// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-tracker/internal/config"
	"github.com/iliyamo/movie-tracker/internal/handler"
	"github.com/iliyamo/movie-tracker/internal/middleware"
)

// RegisterRoutes registers the unauthenticated endpoints.
func RegisterRoutes(e *echo.Echo, m *handler.MovieHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/genres", m.Genres)
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// keeps the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh token or a bearer, so it is not behind JWTAuth
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterMovies registers the movie list endpoints.  Stats are cached per
// user; the list is not, since every list request stores the caller's view
// options and reloads.  Writes are rate limited per user.
func RegisterMovies(e *echo.Echo, m *handler.MovieHandler, jwtSecret string, rdb *redis.Client,
	cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	cached := middleware.NewRedisCache(cacheCfg, rdb)
	limited := middleware.NewTokenBucket(rlCfg, rdb)

	g.GET("/movies", m.List)
	g.GET("/movies/stats", m.Stats, cached)

	g.POST("/movies", m.Save, limited)
	g.POST("/movies/:id/select", m.Select, limited)
	g.DELETE("/movies/:id", m.Delete, limited)
	g.DELETE("/selection", m.Clear, limited)
}
