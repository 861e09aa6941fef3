package status

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/cache"
	"github.com/PostHog/bigquery-plugin/internal/export"
)

// Server exposes the connector's operational surface: liveness and the
// export pipeline counters.
type Server struct {
	stats  *export.Stats
	store  cache.Store
	router *gin.Engine
	log    *zap.Logger
}

func NewServer(stats *export.Stats, store cache.Store, environment string, log *zap.Logger) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		stats:  stats,
		store:  store,
		router: gin.New(),
		log:    log,
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/stats", s.getStats)
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}
