package collector

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	routeApplicationOpen       = "/api/applications/:id/open"
	routeApplicationImpression = "/api/applications/:id/impression"
	routeApplicationSubmit     = "/api/applications/:id/submit"
	routeApplicationFeedback   = "/api/applications/:id/feedback"
)

// RouterConfig tunes the collector router.
type RouterConfig struct {
	RateWindow           time.Duration
	MaxRequestsPerWindow int
}

// DefaultRouterConfig allows six submissions per client every thirty seconds.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateWindow:           defaultRateWindow,
		MaxRequestsPerWindow: defaultMaxRequestsPerWindow,
	}
}

// NewRouter builds the gin engine serving every collector endpoint.
func NewRouter(database *gorm.DB, logger *zap.Logger, config RouterConfig) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(RequestLogger(logger))

	handlers := NewHandlers(database, logger, NewRateLimiter(config.RateWindow, config.MaxRequestsPerWindow))
	router.POST(routeApplicationOpen, handlers.Open)
	router.POST(routeApplicationImpression, handlers.Impression)
	router.POST(routeApplicationSubmit, handlers.Submit)
	router.GET(routeApplicationFeedback, handlers.ListFeedback)
	return router
}
