// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"cambio/config"
	"cambio/internal/delivery/http/middleware"
	"cambio/internal/delivery/http/router/handler"
	"cambio/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	OAuthHandler   *handler.OAuthHandler
	UserHandler    *handler.UserHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *metrics.AuthMetrics
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	oauthHandler   *handler.OAuthHandler
	userHandler    *handler.UserHandler
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.AuthMetrics
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		oauthHandler:   params.OAuthHandler,
		userHandler:    params.UserHandler,
		authMiddleware: params.AuthMiddleware,
		metrics:        params.Metrics,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	if h := r.metrics.Handler(); h != nil {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(h))
	}

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/verify-credentials", r.authHandler.VerifyCredentials)
		authGroup.POST("/reset-password", r.authHandler.RequestPasswordReset)
		authGroup.POST("/reset-password/confirm", r.authHandler.ConfirmPasswordReset)

		authGroup.POST("/logout", r.authHandler.Logout, r.authMiddleware.Authenticate)
		authGroup.POST("/change-password", r.authHandler.ChangePassword, r.authMiddleware.Authenticate)
	}

	oauthGroup := e.Group("/integraciones/oauth")
	{
		oauthGroup.GET("/:provider", r.oauthHandler.Authorize)
		oauthGroup.GET("/:provider/callback", r.oauthHandler.Callback)
	}

	userGroup := e.Group("/users")
	userGroup.Use(r.authMiddleware.Authenticate)
	{
		userGroup.GET("/me", r.userHandler.GetProfile)
		userGroup.DELETE("/me", r.userHandler.DeleteProfile)
	}
}
