// Package api exposes the HTTP surface of ViviBot: the Meta webhook pair
// (GET verification, POST event delivery) and a health endpoint.
//
// Webhook deliveries are acknowledged immediately and processed in the
// background; Meta retries deliveries that are not answered quickly, and the
// dispatcher already deduplicates on message ID.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultDispatchTimeout bounds the background processing of one delivery.
const DefaultDispatchTimeout = 30 * time.Second

// Dispatcher consumes normalized inbound events.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt models.InboundEvent)
}

// Opts holds server configuration.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithVerifyToken sets the webhook verification token, falling back to the
// WEBHOOK_VERIFY_TOKEN environment variable when empty.
func WithVerifyToken(token string) Option {
	return func(o *Opts) {
		if token == "" {
			token = os.Getenv("WEBHOOK_VERIFY_TOKEN")
		}
		o.VerifyToken = token
	}
}

// Server is the ViviBot HTTP server.
type Server struct {
	dispatcher      Dispatcher
	verifyToken     string
	addr            string
	dispatchTimeout time.Duration
	httpSrv         *http.Server
}

// NewServer creates a server routing webhook deliveries into the dispatcher.
func NewServer(dispatcher Dispatcher, opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher not set")
	}
	if cfg.VerifyToken == "" {
		return nil, fmt.Errorf("webhook verify token not set")
	}
	s := &Server{
		dispatcher:      dispatcher,
		verifyToken:     cfg.VerifyToken,
		addr:            cfg.Addr,
		dispatchTimeout: DefaultDispatchTimeout,
	}
	slog.Debug("api: server initialized", "addr", cfg.Addr)
	return s, nil
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api: listening", "addr", s.addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		slog.Info("api: server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
