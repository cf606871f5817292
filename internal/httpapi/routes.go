package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/taskradar/taskradar/internal/auth"
	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/store"
)

// Register wires all routes onto the echo instance.
func Register(e *echo.Echo, h *Handler, authH *auth.Handler, st store.Store, secret []byte) {
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and readiness
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "taskradar"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := st.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public routes; auth is rate limited to protect signup/login from abuse.
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", authH.Signup)
	authGroup.POST("/login", authH.Login)

	e.GET("/categories/:id/price-guidance", h.PriceGuidance)

	// Protected routes
	api := e.Group("")
	api.Use(auth.Middleware(secret))

	api.GET("/auth/me", authH.Me)
	api.GET("/ws", h.Connect)

	api.PUT("/providers/me", h.UpsertProvider, auth.RequireRole(domain.RoleProvider))

	api.POST("/jobs/quickbook", h.CreateQuickBookJob, auth.RequireRole(domain.RoleCustomer))
	api.POST("/jobs/postquote", h.CreatePostQuoteJob, auth.RequireRole(domain.RoleCustomer))
	api.GET("/jobs/me", h.ListMyJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.POST("/jobs/:id/accept", h.AcceptQuickBookJob, auth.RequireRole(domain.RoleProvider))
	api.POST("/jobs/:id/bids", h.SubmitBid, auth.RequireRole(domain.RoleProvider))
	api.GET("/jobs/:id/bids", h.ListBids)
	api.POST("/jobs/:id/cancel", h.CancelJob)
	api.POST("/jobs/:id/complete", h.CompleteJob, auth.RequireRole(domain.RoleCustomer))
	api.GET("/jobs/:id/escrow", h.GetJobEscrow)

	api.POST("/bids/:id/accept", h.AcceptBid, auth.RequireRole(domain.RoleCustomer))
	api.POST("/escrows/:id/release", h.ReleaseEscrow, auth.RequireRole(domain.RoleCustomer))
}
