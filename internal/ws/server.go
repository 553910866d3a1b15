// Package ws is the player-facing WebSocket host. Connections are upgraded
// with gobwas/ws, watched with epoll and read by a bounded worker pool.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chatty/chat-relay/internal/metrics"
	"github.com/chatty/chat-relay/internal/protocol"
	"github.com/chatty/chat-relay/internal/session"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string
	WorkerPoolSize int
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// FrameRate and FrameBurst bound inbound frames per connection.
	// A zero FrameRate disables the limit.
	FrameRate  float64
	FrameBurst int
	// MaxFrameBytes caps the payload of one data frame.
	MaxFrameBytes int64
}

// DefaultServerConfig returns production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 64,
		MaxConnections: 10000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		FrameRate:      10,
		FrameBurst:     20,
		MaxFrameBytes:  16 << 10,
	}
}

// Handler receives connection lifecycle events.
type Handler interface {
	// Join runs after the upgrade. An error closes the connection.
	Join(ctx context.Context, c *Connection) error
	// Leave runs once per connection after it was removed.
	Leave(c *Connection)
	// Frame handles one text frame.
	Frame(c *Connection, data []byte)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidName reports whether name can be used as a player name.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Server accepts players and feeds their frames to a Handler.
type Server struct {
	config     ServerConfig
	poller     *poller
	conns      *ConnectionManager
	sessions   *session.Store
	handler    Handler
	workerPool chan struct{}
	httpServer *http.Server
	done       chan struct{}
	startedAt  time.Time
	logger     *zap.Logger
}

// NewServer creates a server. sessions may be nil, in which case names are
// only checked against this node's connections.
func NewServer(config ServerConfig, sessions *session.Store, handler Handler, logger *zap.Logger) *Server {
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DefaultServerConfig().WorkerPoolSize
	}
	if config.MaxFrameBytes <= 0 {
		config.MaxFrameBytes = DefaultServerConfig().MaxFrameBytes
	}
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		sessions:   sessions,
		handler:    handler,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Mux returns the HTTP routes: /ws, /health and /metrics.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start creates the poller, starts the read loop and heartbeat, and serves
// HTTP until Shutdown.
func (s *Server) Start() error {
	var err error
	s.poller, err = newPoller()
	if err != nil {
		return fmt.Errorf("ws: create poller: %w", err)
	}
	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.readLoop()
	StartHeartbeat(s, DefaultHeartbeatConfig())

	s.logger.Info("listening",
		zap.String("addr", s.config.ListenAddr),
		zap.Int("workers", s.config.WorkerPoolSize),
		zap.Int("max_conns", s.config.MaxConnections))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws: http server: %w", err)
	}
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if !ValidName(name) {
		http.Error(w, "invalid player name", http.StatusBadRequest)
		return
	}
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	id := uuid.New()
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if s.sessions != nil {
		if err := s.sessions.Create(ctx, id.String(), name); err != nil {
			if errors.Is(err, session.ErrNameTaken) {
				http.Error(w, "name already online", http.StatusConflict)
				return
			}
			// Presence is advisory; keep going without it.
			s.logger.Warn("create session", zap.String("player", name), zap.Error(err))
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debug("upgrade failed", zap.String("player", name), zap.Error(err))
		s.dropSession(id.String(), name)
		return
	}

	var limiter *rate.Limiter
	if s.config.FrameRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.config.FrameRate), max(s.config.FrameBurst, 1))
	}
	c := newConnection(id, name, conn, limiter)
	if !s.conns.Add(c) {
		s.logger.Info("duplicate name on this node", zap.String("player", name))
		_ = conn.Close()
		s.dropSession(id.String(), name)
		return
	}

	if err := s.handler.Join(ctx, c); err != nil {
		s.logger.Warn("join rejected", zap.String("player", name), zap.Error(err))
		s.conns.Remove(id)
		s.dropSession(id.String(), name)
		return
	}
	metrics.ConnectionsTotal.Inc()

	s.send(c, protocol.TypeSessionCreated, protocol.SessionCreatedMsg{SessionID: id.String(), Name: name})

	if err := s.poller.add(conn); err != nil {
		s.logger.Error("poller add", zap.String("session", id.String()), zap.Error(err))
		s.RemoveConnection(c)
		return
	}
	s.logger.Info("player connected",
		zap.String("player", name),
		zap.String("session", id.String()),
		zap.Int("total", s.conns.Count()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readLoop hands every ready socket to a worker, blocking when the pool is
// full.
func (s *Server) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		ready, err := s.poller.wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Error("poller wait", zap.Error(err))
			continue
		}

		for _, conn := range ready {
			s.workerPool <- struct{}{}
			go func() {
				defer func() { <-s.workerPool }()
				s.readFrame(conn)
			}()
		}
	}
}

// readFrame reads one frame from a ready socket. Control frames keep the
// connection alive; read errors remove it.
func (s *Server) readFrame(conn net.Conn) {
	c := s.conns.GetByConn(conn)
	if c == nil {
		return
	}
	// Level-triggered epoll may report a socket twice before it is read.
	if !c.processing.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		c.processing.Store(false)
		if s.poller != nil {
			s.poller.drained(conn)
		}
	}()

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
	header, reader, err := wsutil.NextReader(conn, ws.StateServerSide)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	c.Touch()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
		}
		return
	}
	if header.Length > s.config.MaxFrameBytes {
		s.logger.Info("frame too large", zap.String("player", c.Name), zap.Int64("bytes", header.Length))
		s.RemoveConnection(c)
		return
	}

	data := make([]byte, header.Length)
	if _, err := io.ReadFull(reader, data); err != nil {
		s.RemoveConnection(c)
		return
	}
	if len(data) == 0 {
		return
	}

	if !c.Allow() {
		s.send(c, protocol.TypeRateLimited, protocol.RateLimitedMsg{RetryAfter: 1})
		return
	}
	s.handler.Frame(c, data)
}

func (s *Server) dropSession(id, name string) {
	if s.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.sessions.Delete(ctx, id, name); err != nil {
		s.logger.Warn("delete session", zap.String("session", id), zap.Error(err))
	}
}

// RemoveConnection unregisters and closes c. Only the first call for a
// connection runs the Leave handler.
func (s *Server) RemoveConnection(c *Connection) {
	if s.poller != nil {
		_ = s.poller.remove(c.Conn)
	}
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Dec()
	s.handler.Leave(c)
	s.dropSession(c.ID.String(), c.Name)
	s.logger.Info("player disconnected",
		zap.String("player", c.Name),
		zap.String("session", c.ID.String()),
		zap.Int("total", s.conns.Count()))
}

// SendMessage writes a frame to a connection with the configured deadline.
func (s *Server) SendMessage(c *Connection, data []byte) error {
	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return c.WriteMessage(data)
}

func (s *Server) send(c *Connection, msgType string, payload any) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		s.logger.Error("build server message", zap.String("type", msgType), zap.Error(err))
		return
	}
	if err := s.SendMessage(c, data); err != nil {
		s.logger.Debug("write failed", zap.String("player", c.Name), zap.String("type", msgType), zap.Error(err))
	}
}

// Connections exposes the live connection index.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// Sessions returns the presence store, which may be nil.
func (s *Server) Sessions() *session.Store { return s.sessions }

// Shutdown stops accepting players and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	close(s.done)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}
	if s.poller != nil {
		_ = s.poller.close()
	}
	return err
}
