// Package ws relays sync messages between processes over websockets. The
// relay is deliberately dumb: frames received on a channel are forwarded to
// every other peer on that channel.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxMessageSize bounds a single frame.
	MaxMessageSize = 8 << 20
	// PeerQueue is the outbound queue length per peer; a slow peer loses frames.
	PeerQueue   = 32
	writeWait   = 10 * time.Second
	shutdownMax = 5 * time.Second
)

// ServerConfig holds relay settings.
type ServerConfig struct {
	Addr   string
	Logger *slog.Logger
}

// Server is the websocket relay.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a relay. Nothing listens until ListenAndServe.
func NewServer(config ServerConfig) *Server {
	if config.Addr == "" {
		config.Addr = "localhost:8787"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		config: config,
		logger: logger,
		rooms:  make(map[string]map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			logger.Debug("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/channels/{name}").HandlerFunc(s.serveChannel)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully and
// disconnects every peer.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.config.Addr, Handler: s.router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("relay listening", "addr", s.config.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay listen failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownMax)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.disconnectAll()
		return err
	})
	return g.Wait()
}

// Peers returns the number of connected peers on the named channel.
func (s *Server) Peers(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[name])
}

func (s *Server) serveChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade", "channel", name, "error", err)
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	p := &peer{conn: conn, send: make(chan []byte, PeerQueue)}
	s.join(name, p)
	s.logger.Debug("peer joined", "channel", name, "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.writeLoop()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.relay(name, p, frame)
	}

	s.leave(name, p)
	<-done
	_ = conn.Close()
	s.logger.Debug("peer left", "channel", name)
}

func (s *Server) relay(name string, from *peer, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.rooms[name] {
		if p == from {
			continue
		}
		select {
		case p.send <- frame:
		default:
			s.logger.Warn("peer queue full, dropping frame", "channel", name)
		}
	}
}

func (s *Server) join(name string, p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[name] == nil {
		s.rooms[name] = make(map[*peer]struct{})
	}
	s.rooms[name][p] = struct{}{}
}

// leave is safe to call after disconnectAll already removed the peer.
func (s *Server) leave(name string, p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name][p]; !ok {
		return
	}
	delete(s.rooms[name], p)
	if len(s.rooms[name]) == 0 {
		delete(s.rooms, name)
	}
	close(p.send)
}

func (s *Server) disconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, peers := range s.rooms {
		for p := range peers {
			close(p.send)
			_ = p.conn.Close()
		}
		delete(s.rooms, name)
	}
}

func (p *peer) writeLoop() {
	for frame := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			// Drain so relay never blocks on a dead peer.
			for range p.send {
			}
			return
		}
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
