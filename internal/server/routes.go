package server

import (
	"app/internal/handler"
	appmw "app/internal/middleware"
	"app/internal/token"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, authH *handler.AuthHandler, issuer *token.Issuer) {
	e.GET("/healthz", handler.Health)

	e.POST("/auth/register", authH.Register)
	e.POST("/auth/login", authH.Login)
	e.POST("/auth/refresh", authH.Refresh)

	//要認証
	authed := e.Group("/auth", appmw.AuthJWT(issuer))
	authed.POST("/logout", authH.Logout)
	authed.GET("/me", authH.Me)
}
