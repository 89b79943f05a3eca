package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Events       *handler.EventHandler
	Tickets      *handler.TicketHandler
	Vouchers     *handler.VoucherHandler
	Loyalty      *handler.LoyaltyHandler
	Transactions *handler.TransactionHandler
	Attendees    *handler.AttendeeHandler
	Dashboard    *handler.DashboardHandler
}

// Options carries the settings the router needs besides handlers.
type Options struct {
	JWTSecret  string
	RateLimit  config.RateLimitConfig
	Cache      config.CacheConfig
	Redis      *redis.Client // nil disables rate limiting and the Redis cache
	UploadsDir string        // served under /uploads when non-empty
	BodyLimit  string
}

// New builds the Echo instance with global middleware and all routes.
func New(h Handlers, opt Options, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics())
	if opt.BodyLimit != "" {
		e.Use(echomw.BodyLimit(opt.BodyLimit))
	}

	e.GET("/healthz", h.Health.Live)
	e.GET("/readyz", h.Health.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if opt.UploadsDir != "" {
		e.Static("/uploads", opt.UploadsDir)
	}

	api := e.Group("/api/v1")
	if opt.Redis != nil {
		api.Use(middleware.NewTokenBucket(opt.RateLimit, opt.Redis, logger))
	}
	if store := middleware.NewCacheStore(opt.Cache, opt.Redis); store != nil {
		api.Use(middleware.NewResponseCache(opt.Cache, store, logger))
	}

	registerAuth(api, h.Auth, opt, logger)
	registerEvents(api, h)
	registerCustomer(api, h, opt.JWTSecret)
	registerOrganizer(api, h, opt.JWTSecret)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
	})
	return e
}

// registerAuth wires /auth.  The auth group gets a tighter bucket.
func registerAuth(api *echo.Group, a *handler.AuthHandler, opt Options, logger *slog.Logger) {
	g := api.Group("/auth")
	if opt.Redis != nil {
		g.Use(middleware.NewTokenBucket(opt.RateLimit.WithCapacity(opt.RateLimit.AuthCapacity, opt.RateLimit.Prefix+":auth"), opt.Redis, logger))
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(opt.JWTSecret))

	g.GET("/me", a.Me, middleware.JWTAuth(opt.JWTSecret))
	g.PUT("/me", a.UpdateMe, middleware.JWTAuth(opt.JWTSecret))
}

// registerEvents wires the public catalogue.
func registerEvents(api *echo.Group, h Handlers) {
	api.GET("/events", h.Events.List)
	api.GET("/events/:id", h.Events.Get)
	api.GET("/events/:id/tickets", h.Tickets.ListByEvent)
}

func registerCustomer(api *echo.Group, h Handlers, secret string) {
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(secret), middleware.RequireRole(model.RoleCustomer)}
	api.GET("/vouchers/validate", h.Vouchers.Validate, mw...)
	api.GET("/coupons", h.Loyalty.Coupons, mw...)
	api.GET("/points", h.Loyalty.Points, mw...)
	api.GET("/points/balance", h.Loyalty.Balance, mw...)
	api.POST("/transactions", h.Transactions.Create, mw...)
	api.GET("/transactions", h.Transactions.ListMine, mw...)
	api.POST("/transactions/:id/payment-proof", h.Transactions.SubmitProof, mw...)
	api.POST("/transactions/:id/cancel", h.Transactions.Cancel, mw...)
	api.GET("/attendees/mine", h.Attendees.Mine, mw...)

	// Both the buyer and the organizer read single transactions.
	api.GET("/transactions/:id", h.Transactions.Get, middleware.JWTAuth(secret),
		middleware.RequireRole(model.RoleCustomer, model.RoleOrganizer))
}

func registerOrganizer(api *echo.Group, h Handlers, secret string) {
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(secret), middleware.RequireRole(model.RoleOrganizer)}
	api.GET("/events/mine", h.Events.Mine, mw...)
	api.POST("/events", h.Events.Create, mw...)
	api.PUT("/events/:id", h.Events.Update, mw...)
	api.DELETE("/events/:id", h.Events.Delete, mw...)
	api.POST("/events/:id/image", h.Events.UploadImage, mw...)

	api.POST("/events/:id/tickets", h.Tickets.Create, mw...)
	api.PUT("/tickets/:id", h.Tickets.Update, mw...)
	api.DELETE("/tickets/:id", h.Tickets.Delete, mw...)

	api.POST("/events/:id/vouchers", h.Vouchers.Create, mw...)
	api.GET("/events/:id/vouchers", h.Vouchers.ListByEvent, mw...)
	api.DELETE("/vouchers/:id", h.Vouchers.Delete, mw...)

	api.PATCH("/transactions/:id/status", h.Transactions.UpdateStatus, mw...)
	api.GET("/events/:id/transactions", h.Transactions.ListForEvent, mw...)

	api.GET("/events/:id/attendees", h.Attendees.ListByEvent, mw...)
	api.POST("/attendees/:id/check-in", h.Attendees.CheckIn, mw...)

	api.GET("/dashboard/summary", h.Dashboard.Summary, mw...)
	api.GET("/dashboard/revenue", h.Dashboard.Revenue, mw...)
}
