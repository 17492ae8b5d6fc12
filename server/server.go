// Package server exposes the chat orchestration core over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/chat"
	"github.com/papercomputeco/parley/pkg/keys"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// Config is the server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// CredentialName is resolved from the keys store for every completion.
	CredentialName string
}

// Server hosts one orchestrator per chat session, all sharing a single
// credential store and completion client. Sessions live in memory only.
type Server struct {
	config Config
	keys   *keys.Store
	client chat.Completer
	logger *zap.Logger
	app    *fiber.App

	mu       sync.Mutex
	sessions map[string]*chat.Orchestrator
}

// New creates a new Server.
func New(config Config, store *keys.Store, client chat.Completer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		keys:     store,
		client:   client,
		logger:   logger,
		app:      app,
		sessions: make(map[string]*chat.Orchestrator),
	}

	// Register routes
	app.Post("/chat", s.handleChat)
	app.Post("/chat/stream", s.handleChatStream)
	app.Get("/chat/history", s.handleHistory)
	app.Post("/chat/clear", s.handleClear)
	app.Get("/health", s.handleHealth)

	return s
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting chat server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("credential", s.config.CredentialName),
	)

	return s.app.Listen(s.config.ListenAddr)
}

// Close shuts down the server.
func (s *Server) Close() error {
	return s.app.Shutdown()
}

// session returns the orchestrator for id, creating it on first use.
func (s *Server) session(id string) *chat.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	orch, ok := s.sessions[id]
	if !ok {
		orch = chat.NewOrchestrator(s.keys, s.client, s.config.CredentialName,
			s.logger.With(zap.String("session", id)))
		s.sessions[id] = orch
	}
	return orch
}

// ErrorResponse is the error payload for malformed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the body for /chat and /chat/stream.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse mirrors the orchestration outcome: the assistant turn's text
// and sources, with Success false when the turn renders an error.
type ChatResponse struct {
	Content   string   `json:"content"`
	Sources   []string `json:"sources,omitempty"`
	SessionID string   `json:"session_id"`
	Success   bool     `json:"success"`
}

// handleChat runs one blocking submission cycle and returns the resulting
// assistant turn. Completion failures still answer 200: the error is part of
// the transcript contract, not an HTTP failure.
func (s *Server) handleChat(c *fiber.Ctx) error {
	req, errResp := parseChatRequest(c.Body())
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}

	startTime := time.Now()
	orch := s.session(req.SessionID)

	turn, err := orch.Submit(c.Context(), req.Message)
	if turn == nil {
		// Whitespace-only submissions are a no-op in the orchestrator.
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	s.logger.Debug("chat turn complete",
		zap.String("session", req.SessionID),
		zap.Bool("success", err == nil),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(ChatResponse{
		Content:   turn.Text,
		Sources:   turn.Sources,
		SessionID: req.SessionID,
		Success:   err == nil,
	})
}

// handleChatStream is /chat framed as server-sent events: a content event,
// a final event with sources and success, then [DONE]. The completion itself
// is a single blocking call; there is no token-level streaming.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	req, errResp := parseChatRequest(c.Body())
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}

	orch := s.session(req.SessionID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The handler has returned by the time this runs, so the request
		// context is gone; the submission gets its own.
		turn, err := orch.Submit(context.Background(), req.Message)
		if turn == nil {
			// Unreachable once parseChatRequest has validated the message;
			// close the stream cleanly rather than emit a half-formed event.
			writeDone(w)
			return
		}

		writeEvent(w, map[string]string{"content": turn.Text})
		writeEvent(w, ChatResponse{
			Content:   turn.Text,
			Sources:   turn.Sources,
			SessionID: req.SessionID,
			Success:   err == nil,
		})
		writeDone(w)
	}))

	return nil
}

// HistoryResponse is the ordered transcript for one session.
type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// HistoryMessage is one transcript turn as presented over HTTP.
type HistoryMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sources   []string  `json:"sources,omitempty"`
}

// handleHistory returns the transcript for a session. Unknown sessions
// answer an empty history rather than an error.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id parameter required"})
	}

	s.mu.Lock()
	orch, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok {
		return c.JSON(HistoryResponse{Messages: []HistoryMessage{}})
	}

	turns := orch.Transcript()
	messages := make([]HistoryMessage, len(turns))
	for i, turn := range turns {
		messages[i] = historyMessage(turn)
	}

	return c.JSON(HistoryResponse{Messages: messages})
}

// handleClear drops a whole session. The transcript itself is append-only;
// clearing removes the session, it does not edit a log.
func (s *Server) handleClear(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id parameter required"})
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	return c.JSON(map[string]bool{"success": true})
}

// handleHealth reports liveness plus whether the credential configuration
// resolves. A missing keys resource degrades health instead of failing it.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	s.mu.Lock()
	sessionCount := len(s.sessions)
	s.mu.Unlock()

	status := "healthy"
	configured := true
	var loadErr string

	if err := s.keys.Load(c.Context()); err != nil {
		status = "degraded"
		configured = false
		loadErr = err.Error()
	}

	resp := map[string]any{
		"status":                status,
		"active_sessions":       sessionCount,
		"ai_service_configured": configured,
	}
	if loadErr != "" {
		resp["error"] = loadErr
	}

	return c.JSON(resp)
}

func parseChatRequest(body []byte) (*ChatRequest, *ErrorResponse) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ErrorResponse{Error: "invalid request body"}
	}
	if req.SessionID == "" {
		return nil, &ErrorResponse{Error: "session_id is required"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ErrorResponse{Error: "message is required"}
	}
	return &req, nil
}

func historyMessage(turn transcript.Turn) HistoryMessage {
	return HistoryMessage{
		ID:        turn.ID,
		Role:      string(turn.Role),
		Content:   turn.Text,
		CreatedAt: turn.CreatedAt,
		Sources:   turn.Sources,
	}
}

func writeEvent(w *bufio.Writer, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.WriteString("data: ")
	w.Write(data)
	w.WriteString("\n\n")
	w.Flush()
}

func writeDone(w *bufio.Writer) {
	w.WriteString("data: [DONE]\n\n")
	w.Flush()
}
