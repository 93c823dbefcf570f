package httpfacade

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/pkg/config"
)

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return cors.New(corsCfg)
}

// rateLimitMiddleware bounds request rate per client IP to RateLimitRPS
// requests per second (50 when unset). RateLimitBurst is not used.
func rateLimitMiddleware(cfg config.HTTPConfig) (gin.HandlerFunc, error) {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 50
	}

	store := memory.NewStore()
	instance := limiter.New(store, limiter.Rate{
		Period: time.Second,
		Limit:  int64(rps),
	})
	return mgin.NewMiddleware(instance), nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
