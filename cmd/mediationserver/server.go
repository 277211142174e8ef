package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pmbridge/mediation-server/internal/audit"
	"github.com/pmbridge/mediation-server/internal/cache"
	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/internal/config"
	"github.com/pmbridge/mediation-server/internal/jsonrpc"
	"github.com/pmbridge/mediation-server/internal/methods"
	"github.com/pmbridge/mediation-server/internal/metrics"
	"github.com/pmbridge/mediation-server/internal/search"
	"github.com/pmbridge/mediation-server/internal/transport"
	"github.com/pmbridge/mediation-server/internal/upstream"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// mediationServer owns the HTTP listener and every component wired into a
// session: the upstream GraphQL client, the result cache, the search
// engine, and the method/capability registries every connection shares.
type mediationServer struct {
	cfg     *config.Config
	log     logger.Logger
	httpSrv *http.Server

	registry *jsonrpc.MethodRegistry
}

// newServer constructs every shared component and wires the resource and
// search methods into a fresh MethodRegistry, without starting to listen.
func newServer(cfg *config.Config, log logger.Logger) *mediationServer {
	auditSink := audit.NewLogSink(log)
	metricsSink := metrics.NewPrometheusSink()

	up := upstream.NewClient(cfg.Upstream, log)
	up.SetAuditSink(auditSink)

	resultCache := cache.New(cfg.Cache.Enabled, cfg.Cache.TTL, cfg.Cache.MaxSize, cfg.Cache.MinAccessCount, cfg.Cache.EvictionSlack)
	engine := search.NewEngine(cfg.Search, cfg.Optimizer, resultCache, up, log)
	formatter := search.NewFormatter(cfg.Optimizer)

	caps := capability.NewRegistry()
	reg := jsonrpc.NewMethodRegistry(caps)
	methods.Wire(reg, caps, up, engine, formatter, log)

	s := &mediationServer{cfg: cfg, log: log, registry: reg}

	wsHandler := func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r)
		if err != nil {
			log.Warnw("websocket upgrade failed", "error", err)
			return
		}
		wsConn := transport.NewWSConn(conn, log)
		session := jsonrpc.NewSession(reg, wsConn, jsonrpc.ServerInfo{
			Name:    cfg.ServerName,
			Vendor:  cfg.ServerVendor,
			Version: cfg.ServerVersion,
		}, log)
		session.SetAuditSink(auditSink)
		session.SetMetricsSink(metricsSink)

		wsConn.ReadLoop(r.Context(), session.Handle)
		wsConn.Close()
	}

	router := transport.NewRouter(cfg.AllowedOrigins, wsHandler)
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// start blocks serving HTTP until the listener is closed by Shutdown.
func (s *mediationServer) start() {
	s.log.Infof("listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("http server exited: %v", err)
	}
}

// shutdown stops the HTTP server via http.Server.Shutdown, waiting at most
// 15 seconds (less if ctx ends first) for in-flight HTTP requests. Upgraded
// WebSocket connections are not tracked by Shutdown and are not waited for.
func (s *mediationServer) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnw("error during http server shutdown", "error", err)
	}
}
