package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/mw"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	JWTSecret       string
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	registerValidators()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Second
	}
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 5
	}

	r := gin.New()
	r.Use(mw.RequestLogger(h.logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := mw.NewClientRateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst, 10*time.Minute)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter), mw.Auth(opts.JWTSecret))
	{
		api.GET("/shifts", h.ListShifts)
		api.GET("/shifts/active", h.GetActiveShift)

		admin := api.Group("", mw.RequireRole(model.RoleAdmin))
		admin.POST("/shifts", h.CreateShift)
		admin.PATCH("/shifts/:id", h.UpdateShift)
		admin.DELETE("/shifts/:id", h.DeleteShift)

		api.GET("/machine-metrics", caching, h.ListMachineMetrics)
		api.GET("/machine-metrics/:deviceId/history", h.GetMetricHistory)
	}

	return r
}
