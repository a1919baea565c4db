// Package server exposes the persisted snapshot and run history read-only over HTTP.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"hotel-monitor/config"
	"hotel-monitor/models"
	"hotel-monitor/storage"
	"hotel-monitor/utils"
)

// Server serves the status surface
type Server struct {
	cfg     *config.Config
	store   storage.StateStore
	history storage.HistoryReader // nil when no history database is configured
	logger  *utils.Logger
}

// New creates a Server; history may be nil
func New(cfg *config.Config, store storage.StateStore, history storage.HistoryReader, logger *utils.Logger) *Server {
	return &Server{cfg: cfg, store: store, history: history, logger: logger}
}

// Engine builds the gin engine with middleware and routes
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(newCORS(s.cfg.Server.AllowOrigins))
	engine.Use(s.requestLogger())

	engine.GET("/healthz", s.health)
	api := engine.Group("/api")
	{
		api.GET("/state", s.state)
		api.GET("/history", s.priceHistory)
		api.GET("/runs", s.runs)
	}
	return engine
}

// Run serves on the configured address until the listener fails
func (s *Server) Run() error {
	s.logger.Info("Status API listening on %s", s.cfg.Server.Addr)
	return s.Engine().Run(s.cfg.Server.Addr)
}

func newCORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type stateResponse struct {
	Hotel  string          `json:"hotel"`
	Room   string          `json:"room"`
	Adults int             `json:"adults"`
	Dates  []string        `json:"dates"`
	State  models.Snapshot `json:"state"`
}

func (s *Server) state(c *gin.Context) {
	snap, err := s.store.Load(c.Request.Context())
	if err != nil {
		s.logger.Error("Loading state failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state unavailable"})
		return
	}
	c.JSON(http.StatusOK, stateResponse{
		Hotel:  s.cfg.Hotel.Name,
		Room:   s.cfg.Monitoring.RoomLabel,
		Adults: s.cfg.Monitoring.Adults,
		Dates:  snap.Dates(),
		State:  snap,
	})
}

func (s *Server) priceHistory(c *gin.Context) {
	if s.history == nil {
		s.historyDisabled(c)
		return
	}
	date := c.Query("date")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY/MM/DD"})
		return
	}
	points, err := s.history.PriceHistory(c.Request.Context(), date, queryLimit(c, 100))
	if err != nil {
		s.logger.Error("Price history query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if points == nil {
		points = []storage.PricePoint{}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "points": points})
}

func (s *Server) runs(c *gin.Context) {
	if s.history == nil {
		s.historyDisabled(c)
		return
	}
	runs, err := s.history.RecentRuns(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		s.logger.Error("Run feed query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) historyDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": storage.ErrHistoryDisabled.Error()})
}

func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}

