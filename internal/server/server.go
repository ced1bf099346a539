// Package server exposes the conversation pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ItshMoh/ExamPrepAgent/pkg/agent"
	"github.com/ItshMoh/ExamPrepAgent/pkg/store"
	"github.com/ItshMoh/ExamPrepAgent/pkg/tts"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ChatService runs conversational exchanges.
type ChatService interface {
	ProcessMessage(ctx context.Context, sessionID, userInput string) (string, error)
	ProcessAudioMessage(ctx context.Context, sessionID string, audio []byte, filename, language string) agent.AudioResult
}

// SessionDirectory manages users and sessions.
type SessionDirectory interface {
	CreateUser(ctx context.Context, name string) (string, error)
	CreateSession(ctx context.Context, userID, sessionName string) (string, error)
	ListSessions(ctx context.Context, userID string) ([]store.SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SpeechService synthesizes spoken audio for assistant replies. A nil
// service disables the synthesis surface.
type SpeechService interface {
	Synthesize(ctx context.Context, text string, slow bool) tts.Result
	Configured() bool
}

// Options configures the HTTP server.
type Options struct {
	Host          string
	Port          int
	MaxAudioBytes int64
}

// Server is the HTTP API server.
type Server struct {
	options   Options
	server    *http.Server
	chat      ChatService
	directory SessionDirectory
	speech    SpeechService
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates the HTTP API server. The speech service is optional.
func NewServer(options Options, chat ChatService, directory SessionDirectory, speech SpeechService, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.MaxAudioBytes == 0 {
		options.MaxAudioBytes = 25 << 20
	}
	if chat == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("session directory is required")
	}

	return &Server{
		options:   options,
		chat:      chat,
		directory: directory,
		speech:    speech,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/chat/message", s.handleChatMessage)
	mux.HandleFunc("POST /api/chat/audio", s.handleChatAudio)
	mux.HandleFunc("GET /api/audio/support", s.handleAudioSupport)
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/tts/support", s.handleTTSSupport)

	return s.withRequestLog(mux)
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := gonanoid.New()
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
