package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/db/models"
	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/scripts"
	websocketControllers "github.com/USA-RedDragon/rpc-tester/internal/server/websocket"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	ipv4Server        *http.Server
	ipv6Server        *http.Server
	metricsIPV4Server *http.Server
	metricsIPV6Server *http.Server
	stopped           atomic.Bool
	config            *config.Config
	tester            *tester.Tester
	db                *gorm.DB
	stopJanitor       context.CancelFunc
	janitorDone       chan struct{}
}

// No write timeout: a send lasts as long as the endpoint takes to answer.
const defTimeout = 120 * time.Second

type Router struct {
	*gin.Engine
	compressed http.Handler
}

// ServeHTTP gzips API responses. Websocket upgrades bypass the gzip writer
// since they hijack the connection.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasSuffix(req.URL.Path, "/") {
		req.URL.Path = filepath.Clean(req.URL.Path)
	}
	if strings.HasPrefix(req.URL.Path, "/ws/") {
		r.Engine.ServeHTTP(w, req)
		return
	}
	r.compressed.ServeHTTP(w, req)
}

func newRouter(config *config.Config, tester *tester.Tester, metrics *metrics.Metrics, bus *events.EventBus, db *gorm.DB, library *scripts.Library) *Router {
	gin.SetMode(gin.ReleaseMode)
	if config.HTTP.PProf.Enabled {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	if config.HTTP.PProf.Enabled {
		pprof.Register(r)
	}

	eventsWebsocket := websocketControllers.CreateEventsWebsocket(bus, metrics)
	applyMiddleware(r, config, "api", tester, db, library)
	applyRoutes(r, config, eventsWebsocket)

	return &Router{Engine: r, compressed: gzhttp.GzipHandler(r)}
}

func newMetricsRouter(config *config.Config, tester *tester.Tester, metrics *metrics.Metrics) *gin.Engine {
	metricsRouter := gin.New()
	applyMiddleware(metricsRouter, config, "metrics", tester, nil, nil)
	metricsRouter.GET("/metrics", gin.WrapH(metrics.Handler()))
	return metricsRouter
}

func NewServer(config *config.Config, tester *tester.Tester, metrics *metrics.Metrics, bus *events.EventBus, db *gorm.DB, library *scripts.Library) *Server {
	router := newRouter(config, tester, metrics, bus, db, library)

	var metricsIPV4Server *http.Server
	var metricsIPV6Server *http.Server

	if config.HTTP.Metrics.Enabled {
		metricsRouter := newMetricsRouter(config, tester, metrics)
		metricsIPV4Server = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.Metrics.IPV4Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
		metricsIPV6Server = &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.Metrics.IPV6Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
	}

	return &Server{
		ipv4Server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.IPV4Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			Handler:           router,
		},
		ipv6Server: &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.IPV6Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			Handler:           router,
		},
		metricsIPV4Server: metricsIPV4Server,
		metricsIPV6Server: metricsIPV6Server,
		config:            config,
		tester:            tester,
		db:                db,
	}
}

func (s *Server) Start() error {
	waitGrp := sync.WaitGroup{}
	if s.ipv4Server != nil {
		ipv4Listener, err := net.Listen("tcp4", s.ipv4Server.Addr)
		if err != nil {
			return err
		}
		waitGrp.Add(1)
		go func() {
			defer waitGrp.Done()
			if err := s.ipv4Server.Serve(ipv4Listener); err != nil && !s.stopped.Load() {
				slog.Error("HTTP IPv4 server error", "error", err.Error())
			}
		}()
	}

	if s.ipv6Server != nil {
		ipv6Listener, err := net.Listen("tcp6", s.ipv6Server.Addr)
		if err != nil {
			return err
		}
		waitGrp.Add(1)
		go func() {
			defer waitGrp.Done()
			if err := s.ipv6Server.Serve(ipv6Listener); err != nil && !s.stopped.Load() {
				slog.Error("HTTP IPv6 server error", "error", err.Error())
			}
		}()
	}
	slog.Info("HTTP server started", "ipv4", s.config.HTTP.IPV4Host, "ipv6", s.config.HTTP.IPV6Host, "port", s.config.HTTP.Port)

	if s.config.HTTP.Metrics.Enabled {
		if s.metricsIPV4Server != nil {
			metricsIPV4Listener, err := net.Listen("tcp4", s.metricsIPV4Server.Addr)
			if err != nil {
				return err
			}
			waitGrp.Add(1)
			go func() {
				defer waitGrp.Done()
				if err := s.metricsIPV4Server.Serve(metricsIPV4Listener); err != nil && !s.stopped.Load() {
					slog.Error("Metrics IPv4 server error", "error", err.Error())
				}
			}()
		}

		if s.metricsIPV6Server != nil {
			metricsIPV6Listener, err := net.Listen("tcp6", s.metricsIPV6Server.Addr)
			if err != nil {
				return err
			}
			waitGrp.Add(1)
			go func() {
				defer waitGrp.Done()
				if err := s.metricsIPV6Server.Serve(metricsIPV6Listener); err != nil && !s.stopped.Load() {
					slog.Error("Metrics IPv6 server error", "error", err.Error())
				}
			}()
		}
		slog.Info("Metrics server started", "ipv4", s.config.HTTP.Metrics.IPV4Host, "ipv6", s.config.HTTP.Metrics.IPV6Host, "port", s.config.HTTP.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	s.janitorDone = make(chan struct{})
	go s.janitor(ctx)

	go func() {
		waitGrp.Wait()
	}()
	return nil
}

// janitor closes idle sessions and prunes old history until ctx is done.
func (s *Server) janitor(ctx context.Context) {
	defer close(s.janitorDone)
	idle := s.config.Tester.SessionIdleTimeout
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tester.Sweep(idle)
			s.pruneHistory(ctx)
		}
	}
}

func (s *Server) pruneHistory(ctx context.Context) {
	if s.db == nil {
		return
	}
	cutoff := time.Now().Add(-s.config.Persistence.HistoryRetention)
	deleted, err := models.DeleteHistoryBefore(s.db.WithContext(ctx), cutoff)
	if err != nil {
		slog.Warn("Failed to prune history", "error", err)
		return
	}
	if deleted > 0 {
		remaining, err := models.CountHistory(s.db.WithContext(ctx))
		if err != nil {
			slog.Warn("Failed to count history", "error", err)
		}
		slog.Info("Pruned history", "count", deleted, "remaining", remaining)
	}
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 240*time.Second)
	defer cancel()

	s.stopped.Store(true)
	if s.stopJanitor != nil {
		s.stopJanitor()
		<-s.janitorDone
	}

	errGrp := errgroup.Group{}
	if s.ipv4Server != nil {
		errGrp.Go(func() error {
			return s.ipv4Server.Shutdown(ctx)
		})
	}
	if s.ipv6Server != nil {
		errGrp.Go(func() error {
			return s.ipv6Server.Shutdown(ctx)
		})
	}
	if s.metricsIPV4Server != nil {
		errGrp.Go(func() error {
			return s.metricsIPV4Server.Shutdown(ctx)
		})
	}
	if s.metricsIPV6Server != nil {
		errGrp.Go(func() error {
			return s.metricsIPV6Server.Shutdown(ctx)
		})
	}

	return errGrp.Wait()
}
