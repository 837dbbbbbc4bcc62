package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whalesignal/config"
	"whalesignal/internal/metrics"
	"whalesignal/internal/models"
	"whalesignal/logger"
)

//go:embed templates/*.tmpl
var embeddedFS embed.FS

// Server hosts the read-only monitoring dashboard: the latest setup, recent
// logs and metric events, host usage and the Prometheus endpoint.
type Server struct {
	cfg               config.DashboardConfig
	log               *logger.Log
	instrument        string
	metricStore       *ring[metrics.Metric]
	logStore          *logStore
	metricHandler     metrics.MetricHandlerID
	hub               *setupHub
	hostSampler       *hostSampler
	httpServer        *http.Server
	refreshIntervalMs int
	started           time.Time
}

// NewServer constructs a dashboard server when the dashboard feature is enabled.
// When the dashboard is disabled the returned server will be nil.
func NewServer(cfg config.DashboardConfig, instrument string, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}

	metricStore := newRing[metrics.Metric](cfg.MetricsHistory)
	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:               cfg,
		log:               log,
		instrument:        instrument,
		metricStore:       metricStore,
		logStore:          logStore,
		metricHandler:     metrics.RegisterMetricHandler(metricStore.push),
		hub:               newSetupHub(log, cfg.AllowOrigins),
		hostSampler:       newHostSampler(cfg.MetricsHistory, cfg.RefreshInterval, "/", log),
		refreshIntervalMs: int(cfg.RefreshInterval / time.Millisecond),
		started:           time.Now(),
	}, nil
}

// Publish stores the setup and pushes it to websocket clients.
func (s *Server) Publish(_ context.Context, setup models.TradeSetup) {
	if s == nil {
		return
	}
	s.hub.update(setup)
}

// Run starts the dashboard HTTP server and blocks until the provided context is
// cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}
	s.hostSampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithComponent("dashboard").WithFields(logger.Fields{"address": s.cfg.Address}).Info("dashboard listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	s.logStore.close()
	s.hostSampler.stop()
	s.hub.closeAll()
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	router.Use(cors.New(corsConfig(s.cfg.AllowOrigins)))

	tmpl := template.Must(template.New("dashboard").ParseFS(embeddedFS, "templates/index.tmpl"))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.tmpl", gin.H{
			"AppName":           appName,
			"Instrument":        s.instrument,
			"RefreshIntervalMs": s.refreshIntervalMs,
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok", "uptime_seconds": int(time.Since(s.started).Seconds())}
		if _, updated, ok := s.hub.current(); ok {
			body["last_setup"] = updated.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/api/setup", func(c *gin.Context) {
		setup, updated, ok := s.hub.current()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no setup evaluated yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"setup": setup, "updated": updated.UTC().Format(time.RFC3339Nano)})
	})

	router.GET("/api/metrics", func(c *gin.Context) {
		snapshot := s.metricStore.snapshot()
		payload := make([]gin.H, 0, len(snapshot))
		for _, m := range snapshot {
			payload = append(payload, gin.H{
				"timestamp": m.Timestamp.Format(time.RFC3339Nano),
				"component": m.Component,
				"name":      m.Name,
				"value":     m.Value,
				"type":      m.Type,
				"fields":    m.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"metrics": payload})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.hostSampler.snapshot()})
	})

	router.GET("/ws", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil && parsed.Host != "" {
			addr = parsed.Host
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		if ip := net.ParseIP(addr); ip != nil || !strings.Contains(addr, ":") {
			return net.JoinHostPort(addr, "8080")
		}
		return addr
	}
	if host == "" || host == "*" {
		host = "0.0.0.0"
	}
	if port == "" {
		port = "8080"
	}
	return net.JoinHostPort(host, port)
}
