package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/memflow/lowcode-backend/internal/gateway"
	"github.com/memflow/lowcode-backend/internal/handler"
	"github.com/memflow/lowcode-backend/internal/middleware"
	"github.com/memflow/lowcode-backend/internal/model"
	"github.com/memflow/lowcode-backend/internal/token"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, which
// load balancers or monitoring systems use to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Everything under
// /v1/auth runs without the JWT middleware: login and register obviously
// cannot require a token, refresh and logout authenticate via the refresh
// cookie instead, and the GitHub pair is driven by browser redirects.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/register", a.Register)
	// One-time bootstrap of the super admin; locked after first success.
	g.POST("/init", a.Init)
	g.POST("/forget", a.Forget)
	g.POST("/email-code", a.EmailCode)
	g.GET("/logout", a.Logout)
	g.GET("/refresh", a.Refresh)
	g.GET("/github", a.GitHubLogin)
	g.GET("/github/callback", a.GitHubCallback)
}

// RegisterAPI registers the protected application endpoints.  Every route
// here requires a valid access token; the admin-only ones additionally
// require admin tier or above.
func RegisterAPI(e *echo.Echo, tokens *token.Service, lc *handler.LowcodeHandler, u *handler.UserHandler, r *handler.RoleHandler) {
	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(tokens))

	adminOnly := middleware.RequireRank(model.RoleAdmin)

	low := api.Group("/lowcode")
	low.POST("/save", lc.Save)
	low.GET("/all", lc.All)
	low.POST("/pendings", lc.Pendings, adminOnly)
	low.POST("/request-approval", lc.RequestApproval)
	low.POST("/approve-request", lc.ApproveRequest, adminOnly)
	low.POST("/reject-request", lc.RejectRequest, adminOnly)
	low.GET("/:key", lc.Get)
	low.PATCH("/:key", lc.Update)
	low.DELETE("/:key", lc.Delete)

	usr := api.Group("/user")
	usr.GET("/info", u.Info)
	usr.GET("/all", u.All, adminOnly)
	usr.GET("/admins", u.Admins)
	usr.GET("/notifications", u.ListNotifications)
	usr.PATCH("/:username", u.Update, adminOnly)
	usr.DELETE("/:username", u.Delete, adminOnly)

	api.GET("/role/all", r.List)
}

// RegisterGateway exposes the WebSocket endpoint.  The gateway handler does
// its own token check during the handshake, so the JWT middleware is not
// applied here: browsers cannot set an Authorization header on a WebSocket
// upgrade, hence the token query parameter.
func RegisterGateway(e *echo.Echo, g *gateway.Handler) {
	e.GET("/ws", g.Serve)
}
