// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/protocol"
)

// Version is reported by /healthz.
var Version = "dev"

const (
	readDeadline = 90 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = int64(256 << 10) // history pushes can carry 200 messages
)

// ServerConfig configures the relay HTTP server.
type ServerConfig struct {
	Listen string
	// AllowedOrigins lists browser origins accepted on /ws. Empty accepts any.
	AllowedOrigins []string
}

// Server exposes a Hub over WebSocket.
type Server struct {
	hub      *Hub
	cfg      ServerConfig
	log      *logging.Logger
	metrics  *metrics.Metrics
	engine   *gin.Engine
	upgrader websocket.Upgrader
	started  time.Time
}

// NewServer builds the router. It does not start listening.
func NewServer(hub *Hub, cfg ServerConfig, log *logging.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logging.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		hub:     hub,
		cfg:     cfg,
		log:     log.With("service", "RelayServer"),
		metrics: m,
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	r := gin.New()
	r.Use(gin.Recovery(), SecurityHeaders(), RequestLogger(s.log))
	r.GET("/ws", s.handleWebSocket)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	s.engine = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("relay_start", "addr", s.cfg.Listen, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("relay_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// =============================================================================
// HANDLERS
// =============================================================================

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Peers         int    `json:"peers"`
	HistorySize   int    `json:"history_size"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       Version,
		Peers:         s.hub.Peers(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h, err := s.hub.History().Load(ctx); err == nil {
		resp.HistorySize = len(h)
	} else {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", "remote", c.ClientIP(), "error", err)
		return
	}
	peer := s.hub.Attach()
	s.log.Info("ws_connected", "peer", peer.ID(), "remote", c.ClientIP())

	go s.writeLoop(conn, peer)
	go s.readLoop(conn, peer)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// readLoop applies client envelopes in arrival order until the socket fails.
func (s *Server) readLoop(conn *websocket.Conn, peer *Peer) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.hub.Detach(context.Background(), peer)
		conn.Close()
		s.log.Info("ws_closed", "peer", peer.ID())
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws_read_failed", "peer", peer.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		if err := s.hub.Handle(ctx, peer, env); err != nil {
			s.log.Warn("envelope_rejected", "peer", peer.ID(), "event", env.Event, "error", err)
		}
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(conn *websocket.Conn, peer *Peer) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-peer.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debug("ws_write_failed", "peer", peer.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
