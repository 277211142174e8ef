// Package transport adapts a WebSocket connection to the jsonrpc.Transport
// and frame-reading contract the session core drives.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmbridge/mediation-server/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20 // 4 MiB, well above a single request/response frame.
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSConn wraps a *websocket.Conn and serializes writes, since gorilla's
// connection forbids concurrent writers.
type WSConn struct {
	conn *websocket.Conn
	log  logger.Logger

	writeMu sync.Mutex
}

// NewWSConn wraps an upgraded WebSocket connection.
func NewWSConn(conn *websocket.Conn, log logger.Logger) *WSConn {
	conn.SetReadLimit(maxMessageSize)
	return &WSConn{conn: conn, log: log}
}

// Send implements jsonrpc.Transport.
func (c *WSConn) Send(_ context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop blocks reading frames off the connection and invokes handle for
// each one, until the connection closes or ctx is cancelled. It also runs
// the ping/pong keepalive required to detect a dead peer.
func (c *WSConn) ReadLoop(ctx context.Context, handle func(ctx context.Context, data []byte)) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				c.writeMu.Lock()
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := c.conn.WriteMessage(websocket.PingMessage, nil)
				c.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() { <-done }()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.log != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnw("websocket read error", "error", err)
			}
			return
		}
		handle(ctx, data)
	}
}

// Close terminates the underlying connection.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// Upgrade upgrades an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// NewRouter builds the chi router mounting the server's WebSocket endpoint
// (/ws), a liveness probe (/healthz) and the Prometheus metrics handler
// (/metrics), with CORS applied to all three.
func NewRouter(allowedOrigins []string, wsHandler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", wsHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
