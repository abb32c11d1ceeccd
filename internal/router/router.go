package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's stock middleware (recover, CORS, body limit)

	"github.com/iliyamo/portfolio-backend/internal/handler"
	"github.com/iliyamo/portfolio-backend/internal/middleware"
	"github.com/iliyamo/portfolio-backend/internal/validate"
)

// Deps is everything the HTTP layer is built from.  Cache and the two
// rate limiters may be nil.
type Deps struct {
	Logger      *slog.Logger
	Development bool
	CORSOrigins []string

	Auth     middleware.Auth
	Cache    *middleware.ResponseCache
	AuthRate echo.MiddlewareFunc
	PostRate echo.MiddlewareFunc

	AuthHandler    *handler.AuthHandler
	ProjectHandler *handler.ProjectHandler
	ContactHandler *handler.ContactHandler
	HealthHandler  *handler.HealthHandler
}

// New builds the echo instance: validator, error handler, global
// middleware and every /api route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()
	e.HTTPErrorHandler = handler.NewErrorHandler(d.Logger, d.Development)

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{DisablePrintStack: !d.Development}))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit("1M"))
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
		}))
	}

	RegisterRoutes(e, d)
	return e
}

// RegisterRoutes maps every endpoint under /api.
func RegisterRoutes(e *echo.Echo, d Deps) {
	api := e.Group("/api")
	api.GET("/health", d.HealthHandler.Health)

	registerAuth(api, d)
	registerProjects(api, d)
	registerContacts(api, d)
}

func orNop(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}

// registerAuth: register/login/refresh are public, the rest need a valid
// access token.  The whole group is rate limited.
func registerAuth(api *echo.Group, d Deps) {
	a := d.AuthHandler
	g := api.Group("/auth", orNop(d.AuthRate))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	authed := d.Auth.Authenticate()
	g.POST("/logout", a.Logout, authed)
	g.GET("/me", a.Me, authed)
	g.PUT("/profile", a.UpdateProfile, authed)
	g.PUT("/change-password", a.ChangePassword, authed)
}

func registerProjects(api *echo.Group, d Deps) {
	p := d.ProjectHandler
	g := api.Group("/projects")

	cached := orNop(nil)
	if d.Cache != nil {
		cached = d.Cache.Middleware()
	}
	optional := d.Auth.OptionalAuth()
	g.GET("", p.List, cached, optional)
	g.GET("/featured", p.Featured, cached)
	g.GET("/:id", p.Get, cached, optional)

	admin := []echo.MiddlewareFunc{d.Auth.Authenticate(), middleware.RequireAdmin()}
	g.GET("/admin/all", p.AdminList, admin...)
	g.POST("", p.Create, admin...)
	g.PUT("/:id", p.Update, admin...)
	g.DELETE("/:id", p.Delete, admin...)
	g.PATCH("/:id/toggle-featured", p.ToggleFeatured, admin...)
}

func registerContacts(api *echo.Group, d Deps) {
	h := d.ContactHandler
	g := api.Group("/contacts")
	g.POST("", h.Create, orNop(d.PostRate))

	admin := []echo.MiddlewareFunc{d.Auth.Authenticate(), middleware.RequireAdmin()}
	g.GET("", h.List, admin...)
	g.GET("/stats/summary", h.Stats, admin...)
	g.POST("/bulk-update", h.BulkUpdate, admin...)
	g.GET("/:id", h.Get, admin...)
	g.PUT("/:id", h.Update, admin...)
	g.DELETE("/:id", h.Delete, admin...)
	g.PATCH("/:id/status", h.UpdateStatus, admin...)
}
