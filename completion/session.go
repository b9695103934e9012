package completion

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionConfig fixes the prompt context of a session
type SessionConfig struct {
	SystemPrompt string
	Language     string
	KeepHistory  bool
}

// Session is one conversation with a backend. Generate and Continue never
// fail: errors come back as ErrorReply text so the caller can paste them.
type Session struct {
	mu      sync.Mutex
	client  Client
	cfg     SessionConfig
	history []Message
	logger  *slog.Logger
}

// NewSession creates a new conversation
func NewSession(client Client, cfg SessionConfig, logger *slog.Logger) *Session {
	return &Session{
		client: client,
		cfg:    cfg,
		logger: logger.With("provider", client.Name(), "model", client.Model()),
	}
}

// Client returns the backend the session talks to
func (s *Session) Client() Client {
	return s.client
}

// Generate sends prompt with the system prompt and, when history is kept,
// the previous turns.
func (s *Session) Generate(ctx context.Context, prompt string, opts Options) string {
	return s.send(ctx, nil, prompt, opts)
}

// Continue asks the backend to carry on from previous. previous is sent as
// context only when the history does not already end with a reply; error
// replies are never sent.
func (s *Session) Continue(ctx context.Context, previous string, opts Options) string {
	var extra []Message

	s.mu.Lock()
	n := len(s.history)
	endsWithReply := s.cfg.KeepHistory && n > 0 && s.history[n-1].Role == RoleAssistant
	if previous != "" && !IsErrorReply(previous) && !endsWithReply {
		extra = []Message{{Role: RoleAssistant, Content: previous}}
	}
	s.mu.Unlock()

	return s.send(ctx, extra, ContinuePrompt(s.cfg.Language), opts)
}

func (s *Session) send(ctx context.Context, extra []Message, prompt string, opts Options) string {
	user := Message{Role: RoleUser, Content: prompt}
	messages := s.messages(extra, user)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.client.Chat(ctx, messages, opts)
	if err != nil {
		s.logger.Error("Completion request failed", "error", err, "duration", time.Since(start))
		return ErrorReply(s.client, err)
	}

	s.logger.Info("Completion received",
		"messages", len(messages),
		"reply_chars", len([]rune(reply)),
		"duration", time.Since(start))

	if s.cfg.KeepHistory && !IsErrorReply(reply) {
		s.mu.Lock()
		s.history = append(s.history, extra...)
		s.history = append(s.history, user, Message{Role: RoleAssistant, Content: reply})
		s.mu.Unlock()
	}

	return reply
}

func (s *Session) messages(extra []Message, user Message) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]Message, 0, len(s.history)+len(extra)+2)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: s.cfg.SystemPrompt})
	}
	if s.cfg.KeepHistory {
		messages = append(messages, s.history...)
	}
	messages = append(messages, extra...)
	return append(messages, user)
}

// ClearHistory forgets every previous turn
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// HistoryLen returns the number of remembered turns
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
