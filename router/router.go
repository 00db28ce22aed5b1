package router

import (
	"github.com/gin-gonic/gin"
	"github.com/iRail/occupancy-api/config"
	"github.com/iRail/occupancy-api/handlers"
	"github.com/iRail/occupancy-api/middleware"
	"github.com/iRail/occupancy-api/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config           *config.Config
	OccupancyHandler *handlers.OccupancyHandler
	HealthHandler    *handlers.HealthHandler
	// RateLimiter may be nil, which disables submission rate limiting.
	RateLimiter services.RateLimiterInterface
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	// Global Middleware
	r.Use(middleware.RecoveryHandler())
	if deps.Config.IsDevelopment() {
		r.Use(gin.Logger())
	}
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware(deps.Config))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())

	// Health and Metrics Routes
	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Every method is routed to the handler: non-POST requests are answered
	// with 405 and audited there.
	feedback := r.Group("/feedback")
	feedback.Use(
		middleware.CORSMiddleware(&deps.Config.Server),
		middleware.FeedbackRateLimiter(
			deps.RateLimiter,
			deps.Config.RateLimit.FeedbackRequestsPerWindow,
			deps.Config.RateLimit.Window(),
		),
	)
	{
		feedback.Any("/occupancy", deps.OccupancyHandler.SubmitFeedbackHandler)
		feedback.Any("/occupancy.php", deps.OccupancyHandler.SubmitFeedbackHandler)
	}

	return r
}
