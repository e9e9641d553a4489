// Package api exposes the chatbot over HTTP REST.
//
// Endpoints:
//
//	POST /api/signup                                  - register
//	POST /api/login                                   - authenticate, set session cookie
//	POST /api/logout                                  - clear session cookie
//	GET  /api/session                                 - current user
//	GET  /api/conversations                           - list conversations
//	POST /api/conversations                           - create (or reuse an unused) conversation
//	GET  /api/conversations/{id}                      - conversation with messages
//	POST /api/stream-answer/{id}/messages             - ask, answer streamed as SSE
//	POST /api/stream-answer/{id}/ai-message           - persist a streamed answer
//	POST /api/upload                                  - upload a document, index it
//	GET  /health                                      - liveness probe
//	GET  /ready                                       - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, logging, CORS, session auth
//   - auth.go: signup/login/logout/session handlers
//   - conversation.go: conversation CRUD
//   - chat.go: SSE answer streaming
//   - upload.go: document upload and indexing
//   - health.go: probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/daleelapp/daleel/internal/auth"
	"github.com/daleelapp/daleel/internal/ingest"
	"github.com/daleelapp/daleel/internal/rag"
	"github.com/daleelapp/daleel/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to block Slowloris-style
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// IdleTimeout is the maximum keep-alive wait between requests.
	IdleTimeout = 120 * time.Second
)

// SessionCookie is the name of the authentication cookie.
const SessionCookie = "daleel_session"

// Answerer produces grounded answers and conversation titles.
// Satisfied by *rag.Answerer.
type Answerer interface {
	StreamAnswer(ctx context.Context, question string, history []rag.Exchange) (iter.Seq2[string, error], error)
	Title(ctx context.Context, message string) (string, error)
}

// Ingestor indexes uploaded documents.
// Satisfied by *ingest.Service.
type Ingestor interface {
	IngestFiles(ctx context.Context, names []string) (*ingest.Result, error)
}

// Config carries the server's wiring and tunables.
type Config struct {
	Addr        string
	CORSOrigins []string
	DocsDir     string
	MemorySize  int // history exchanges carried into each prompt
}

// Server is the HTTP server for the chatbot API.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	sessions *auth.Sessions
	logger   *slog.Logger

	authH   *AuthHandler
	convH   *ConversationHandler
	chatH   *ChatHandler
	uploadH *UploadHandler
	healthH *HealthHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg Config, st store.Store, answerer Answerer, ingestor Ingestor, sessions *auth.Sessions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		cfg:      cfg,
		mux:      mux,
		sessions: sessions,
		logger:   logger,
		authH:    NewAuthHandler(st, sessions, logger),
		convH:    NewConversationHandler(st, logger),
		chatH:    NewChatHandler(st, answerer, cfg.MemorySize, logger),
		uploadH:  NewUploadHandler(ingestor, cfg.DocsDir, logger),
		healthH:  NewHealthHandler(st, logger),
	}

	s.authH.RegisterRoutes(mux)
	s.healthH.RegisterRoutes(mux)

	// Everything below requires a valid session cookie.
	authed := s.requireAuth
	mux.Handle("GET /api/conversations", authed(http.HandlerFunc(s.convH.list)))
	mux.Handle("POST /api/conversations", authed(http.HandlerFunc(s.convH.create)))
	mux.Handle("GET /api/conversations/{id}", authed(http.HandlerFunc(s.convH.get)))
	mux.Handle("POST /api/stream-answer/{id}/messages", authed(http.HandlerFunc(s.chatH.streamAnswer)))
	mux.Handle("POST /api/stream-answer/{id}/ai-message", authed(http.HandlerFunc(s.chatH.saveAIMessage)))
	mux.Handle("POST /api/upload", authed(http.HandlerFunc(s.uploadH.upload)))

	return s
}

// Handler returns the server's handler with middleware applied.
// Middleware order: recovery → CORS → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// No WriteTimeout: SSE responses stay open for as long as the model
	// streams.
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
