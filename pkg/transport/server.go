package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPort is the HTTP port devices listen on.
const DefaultPort = 3000

// ServerConfig configures a device server.
type ServerConfig struct {
	// Address to listen on (e.g., ":3000" or "127.0.0.1:3000").
	Address string

	// Handler serves requests, normally a *Handler.
	Handler http.Handler

	// ReadHeaderTimeout bounds slow clients (default: 10s).
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds Stop (default: 5s).
	ShutdownTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// Server runs the HTTP binding of one device.
type Server struct {
	config   ServerConfig
	srv      *http.Server
	listener net.Listener

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{config: config}, nil
}

// Start listens and serves in the background. The server stops when ctx
// ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(s.config.Logger.Handler(), slog.LevelWarn),
	}
	s.stop = make(chan struct{})
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Logger.Error("http server stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-s.stop:
		}
	}()

	s.config.Logger.Info("http server listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down and waits for in-flight requests up to the
// shutdown timeout.
func (s *Server) Stop() error {
	return s.shutdown()
}

func (s *Server) shutdown() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stop)
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return s.srv.Close()
	}
	return nil
}

// Wait blocks until the serving goroutines have exited. Call after Stop or
// after the Start context ended.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Port returns the TCP port the server listens on, or 0 before Start.
func (s *Server) Port() uint16 {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}
