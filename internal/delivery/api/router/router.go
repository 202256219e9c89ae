// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"skymm/internal/delivery/api/middleware"
	"skymm/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoints
	e.GET("/health", handler.HealthCheck)
	e.GET("/api/health", handler.HealthCheck)

	// Discord OAuth routes
	oauthGroup := e.Group("/api/oauth")
	{
		oauthGroup.GET("/login", r.authHandler.Login)
		oauthGroup.GET("/callback", r.authHandler.Callback)
		oauthGroup.GET("/logout", r.authHandler.Logout)
	}

	// Routes that require a login token
	authGroup := e.Group("/api/auth")
	authGroup.Use(r.authMiddleware.Authenticate)
	{
		authGroup.GET("/me", r.authHandler.Me)
	}
}
