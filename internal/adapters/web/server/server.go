package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/aegis/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/aegis/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/aegis/internal/adapters/web/websocket"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr             string
	DashboardHandler *handlers.DashboardHandler
	AnalysisHandler  *handlers.AnalysisHandler
	Hub              *websocket.Hub
	// AnalyzeLimiter throttles analysis submissions. Nil disables limiting.
	AnalyzeLimiter *middleware.RateLimiter

	srv *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, dashboard *handlers.DashboardHandler, analysis *handlers.AnalysisHandler, hub *websocket.Hub, limiter *middleware.RateLimiter) *Server {
	return &Server{
		Addr:             addr,
		DashboardHandler: dashboard,
		AnalysisHandler:  analysis,
		Hub:              hub,
		AnalyzeLimiter:   limiter,
	}
}

// Handler returns the instrumented route tree.
func (s *Server) Handler() http.Handler {
	// "aegis-server" is the name of the operation (span)
	return otelhttp.NewHandler(SetupRoutes(s), "aegis-server")
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.AnalyzeLimiter != nil {
		go s.AnalyzeLimiter.Run(ctx)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Web server shutting down")
		s.Hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Web server shutdown error", "error", err)
		}
	}()

	slog.Info("Web server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
