// Package gateway serves the relay over WebSocket.
//
// Each connection gets a read pump that dispatches messages one at a time, in
// arrival order, and a write pump that drains the peer's outbound queue and
// keeps the connection alive with pings.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	gwconfig "github.com/toolrelay/toolrelay/internal/config/gateway"
	"github.com/toolrelay/toolrelay/internal/execution"
	"github.com/toolrelay/toolrelay/internal/hub"
	"github.com/toolrelay/toolrelay/internal/metrics"
	"github.com/toolrelay/toolrelay/internal/protocol"
	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/router"
)

const writeWait = 10 * time.Second

// Server is the relay's HTTP and WebSocket front end.
type Server struct {
	cfg     gwconfig.GatewayConfig
	router  *router.Router
	tools   *registry.Registry
	coord   *execution.Coordinator
	peers   *hub.Hub
	metrics *metrics.Collector

	upgrader websocket.Upgrader
}

func New(
	cfg gwconfig.GatewayConfig,
	r *router.Router,
	tools *registry.Registry,
	coord *execution.Coordinator,
	peers *hub.Hub,
	m *metrics.Collector,
) *Server {
	return &Server{
		cfg:     cfg,
		router:  r,
		tools:   tools,
		coord:   coord,
		peers:   peers,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are processes, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler returns the HTTP routes: the WebSocket endpoint, /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.cfg.Path, s.serveWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Run listens until ctx is cancelled, then closes every peer and shuts the
// HTTP server down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway: listening", "addr", srv.Addr, "path", s.cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("gateway: shutting down", "peers", s.peers.Len())
		s.peers.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway listen: %w", err)
		}
		return nil
	}
}

type health struct {
	Status  string `json:"status"`
	Peers   int    `json:"peers"`
	Tools   int    `json:"tools"`
	Running int    `json:"running"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Peers:   s.peers.Len(),
		Tools:   s.tools.Len(),
		Running: s.coord.Running(),
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	peer := hub.NewPeer(uuid.NewString(), s.cfg.SendBuffer)
	if err := s.router.Connect(peer); err != nil {
		slog.Warn("gateway: rejecting connection", "remote", r.RemoteAddr, "err", err)
		_ = conn.Close()
		return
	}

	go s.writePump(conn, peer)
	s.readPump(r.Context(), conn, peer)
}

func (s *Server) pingInterval() time.Duration {
	return time.Duration(s.cfg.PingIntervalSeconds) * time.Second
}

// readPump dispatches inbound messages sequentially until the connection
// fails, then disconnects the peer.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, peer *hub.Peer) {
	defer s.router.Disconnect(ctx, peer.ID())

	pongWait := 2 * s.pingInterval()
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("gateway: read failed", "peer", peer.ID(), "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		if limiter != nil && !limiter.Allow() {
			s.metrics.Error(protocol.CodeRateLimited)
			_ = s.peers.Send(peer.ID(), protocol.ErrorMessage(protocol.CodeRateLimited, "too many messages", ""))
			continue
		}
		s.router.Dispatch(ctx, peer.ID(), raw)
	}
}

// writePump owns all writes to conn. It exits when the peer's queue is closed
// or a write fails, closing the connection either way.
func (s *Server) writePump(conn *websocket.Conn, peer *hub.Peer) {
	ticker := time.NewTicker(s.pingInterval())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-peer.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("gateway: write failed", "peer", peer.ID(), "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
