package http

import (
	"time"

	"github.com/devmalhar/ticketdesk/internal/auth"
	"github.com/devmalhar/ticketdesk/internal/cache"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/http/handlers"
	"github.com/devmalhar/ticketdesk/internal/http/middlewares"
	"github.com/devmalhar/ticketdesk/internal/observability"
	"github.com/devmalhar/ticketdesk/internal/ratelimit"
	"github.com/devmalhar/ticketdesk/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Deps carries everything the route tree needs; main builds it once.
type Deps struct {
	Cfg          config.Config
	JWT          *auth.Manager
	Users        *postgres.UsersRepo
	Tickets      *postgres.TicketsRepo
	Jobs         *postgres.JobsRepo
	Reset        handlers.ResetService
	ResetLimiter *ratelimit.ResetLimiter
	Prom         *observability.Prom
	PromRegistry *prometheus.Registry
	DBPing       handlers.PingFunc
	RedisPing    handlers.PingFunc
	CORSOrigins  []string
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("ticketdesk-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health + metrics

	health := handlers.NewHealthHandler(deps.DBPing, deps.RedisPing)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.PromRegistry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{})))
	}

	// handlers

	authHandler := handlers.NewAuthHandler(
		deps.Users,
		deps.Users,
		deps.JWT,
		deps.Reset,
		resetLimiterOrNil(deps.ResetLimiter),
		deps.Jobs,
		deps.Cfg,
	)

	searchCache := cache.New(30 * time.Second)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Tickets, searchCache)
	ticketsHandler := handlers.NewTicketsHandler(deps.Tickets, deps.Jobs)
	adminJobsHandler := handlers.NewAdminJobsHandler(deps.Jobs)

	authMW := middlewares.NewAuthMiddleware(deps.JWT)

	// unauthenticated auth endpoints get a coarse per-IP throttle on top of
	// the Redis limiter inside the reset flow
	publicLimiter := middlewares.NewRateLimiter(30, time.Minute)
	throttled := publicLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", throttled, authHandler.SignUp)
		authGroup.POST("/login", throttled, authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)

		authGroup.POST("/forgot-password", throttled, authHandler.ForgotPassword)
		authGroup.POST("/verify-otp", throttled, authHandler.VerifyOtp)
		authGroup.POST("/reset-password", throttled, authHandler.ResetPassword)

		protected := authGroup.Group("")
		protected.Use(authMW.RequireAuth())
		{
			protected.GET("/me", usersHandler.Me)
			protected.GET("/profile", usersHandler.GetProfile)
			protected.PUT("/profile", usersHandler.UpdateProfile)
			protected.GET("/users", usersHandler.GetUsers)
			protected.GET("/user/:query", usersHandler.SearchUsers)
			protected.PUT("/update-user", usersHandler.UpdateUser)
		}
	}

	tickets := r.Group("/tickets")
	tickets.Use(authMW.RequireAuth())
	{
		tickets.POST("", ticketsHandler.Create)
		tickets.GET("", ticketsHandler.List)
		tickets.GET("/:id", ticketsHandler.Get)
		tickets.DELETE("/:id", ticketsHandler.Delete)
	}

	adminJobs := r.Group("/admin/jobs")
	adminJobs.Use(authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		adminJobs.GET("", adminJobsHandler.List)
		adminJobs.GET("/:id", adminJobsHandler.GetByID)
		adminJobs.POST("/:id/retry", adminJobsHandler.Retry)
		adminJobs.POST("/reprocess-dead", adminJobsHandler.ReprocessDead)
	}

	return r
}

// resetLimiterOrNil keeps the handler's nil check meaningful when the
// concrete limiter pointer is nil.
func resetLimiterOrNil(l *ratelimit.ResetLimiter) handlers.ResetLimiter {
	if l == nil {
		return nil
	}
	return l
}
