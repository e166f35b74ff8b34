package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/clinicore/clinic-api/internal/authz"
	"github.com/clinicore/clinic-api/internal/config"
	appointmenthandler "github.com/clinicore/clinic-api/internal/handler/appointment"
	authhandler "github.com/clinicore/clinic-api/internal/handler/auth"
	healthhandler "github.com/clinicore/clinic-api/internal/handler/health"
	patienthandler "github.com/clinicore/clinic-api/internal/handler/patient"
	"github.com/clinicore/clinic-api/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *authhandler.Handler
	Patient     *patienthandler.Handler
	Appointment *appointmenthandler.Handler
	Health      *healthhandler.Handler
	AuthMW      *middleware.AuthMiddleware
	Authorizer  *authz.Authorizer
}

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clinic",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})
)

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// New builds the gin engine with the full middleware chain and all routes.
func New(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}

	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.CORS(corsConfig),
		middleware.RateLimit(middleware.RateLimiterConfig{
			RPS:   rate.Limit(cfg.Server.RateLimitRPS),
			Burst: cfg.Server.RateLimitBurst,
		}),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Server.Timeout}),
		requestMetrics(),
	)

	h.Health.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	h.Auth.RegisterPublicRoutes(api)

	authed := api.Group("", h.AuthMW.Authenticate())
	h.Auth.RegisterRoutes(authed)
	h.Patient.RegisterRoutes(authed, h.Authorizer)
	h.Appointment.RegisterRoutes(authed, h.Authorizer)

	return r
}
