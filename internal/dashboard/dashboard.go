package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
)

type Store interface {
	ListAllAlerts(ctx context.Context) ([]types.Alert, error)
	ListWatchlist(ctx context.Context) ([]types.WatchItem, error)
	ListTrades(ctx context.Context) ([]types.Trade, error)
}

// Server exposes health, Prometheus metrics and a read-only view of alerts, the watchlist and trades.
type Server struct {
	store    Store
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

func New(store Store, gatherer prometheus.Gatherer, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{store: store, gatherer: gatherer, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())

	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	{
		api.GET("/alerts", s.alerts)
		api.GET("/watchlist", s.watchlist)
		api.GET("/trades", s.trades)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("⚠️ Dashboard shutdown: %v", err)
		}
	}()

	log.Infof("Launching dashboard, metrics and health endpoint on :%d", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dashboard server")
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) alerts(c *gin.Context) {
	alerts, err := s.store.ListAllAlerts(c.Request.Context())
	if err != nil {
		log.Errorf("dashboard: list alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load alerts"})
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) watchlist(c *gin.Context) {
	items, err := s.store.ListWatchlist(c.Request.Context())
	if err != nil {
		log.Errorf("dashboard: list watchlist: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load watchlist"})
		return
	}
	if items == nil {
		items = []types.WatchItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) trades(c *gin.Context) {
	trades, err := s.store.ListTrades(c.Request.Context())
	if err != nil {
		log.Errorf("dashboard: list trades: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load trades"})
		return
	}
	if trades == nil {
		trades = []types.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("dashboard request")
	}
}
