package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"yard-occupancy-backend/config"
	"yard-occupancy-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. metrics may be nil.
func NewRouter(handler *Handler, cfg config.ServerConfig, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger())

	r.GET("/healthz", handler.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst)

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	responses := mw.NewResponseCache(ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		handler.doors.register(api.Group("/doors"), responses.Scope("/api/doors"))
		handler.pits.register(api.Group("/pits"), responses.Scope("/api/pits"))

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
