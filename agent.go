package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jinzheng8115/smartanychat/clipio"
	"github.com/jinzheng8115/smartanychat/completion"
	"github.com/jinzheng8115/smartanychat/config"
	"github.com/jinzheng8115/smartanychat/platform"
	"github.com/jinzheng8115/smartanychat/postprocess"
	"github.com/jinzheng8115/smartanychat/storage"
	"github.com/jinzheng8115/smartanychat/web"
)

// Hotkey binding names
const (
	ActionComplete = "complete"
	ActionContinue = "continue"
	ActionClear    = "clear"
)

// Recorder persists one record per dispatched action
type Recorder interface {
	SaveRecord(r *storage.Record) error
}

// ClientFactory builds a completion backend from the active API settings
type ClientFactory func(apiType string, api config.APIConfig, logger *slog.Logger) (completion.Client, error)

// Agent coordinates hotkey detection, selection capture, completion and
// injection
type Agent struct {
	store     *config.Store
	hotkey    platform.Hotkey
	protocol  *clipio.Protocol
	bindings  []platform.Binding
	combos    map[string]platform.KeyCombo
	newClient ClientFactory
	recorder  Recorder
	onStatus  []func(string)
	onRecord  []func(*storage.Record)
	logger    *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	mu           sync.Mutex
	session      *completion.Session
	sessionKey   string
	lastResponse string
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithRecorder stores a record of every activation
func WithRecorder(r Recorder) AgentOption {
	return func(a *Agent) { a.recorder = r }
}

// WithClientFactory replaces completion.NewClient
func WithClientFactory(f ClientFactory) AgentOption {
	return func(a *Agent) { a.newClient = f }
}

// OnStatus registers a callback for status changes
func OnStatus(fn func(string)) AgentOption {
	return func(a *Agent) { a.onStatus = append(a.onStatus, fn) }
}

// OnRecord registers a callback for saved records
func OnRecord(fn func(*storage.Record)) AgentOption {
	return func(a *Agent) { a.onRecord = append(a.onRecord, fn) }
}

// NewAgent creates a new agent instance. The hotkey bindings are read once
// from the store; everything else is re-read on each activation.
func NewAgent(store *config.Store, hotkey platform.Hotkey, protocol *clipio.Protocol, logger *slog.Logger, opts ...AgentOption) (*Agent, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &Agent{
		store:     store,
		hotkey:    hotkey,
		protocol:  protocol,
		combos:    make(map[string]platform.KeyCombo, 3),
		newClient: completion.NewClient,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, b := range []struct{ name, combo string }{
		{ActionComplete, cfg.Hotkeys.Complete},
		{ActionContinue, cfg.Hotkeys.Continue},
		{ActionClear, cfg.Hotkeys.Clear},
	} {
		parsed, err := config.ParseHotkey(b.combo)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s hotkey %q: %w", b.name, b.combo, err)
		}
		combo, err := parsed.Platform()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s hotkey %q: %w", b.name, b.combo, err)
		}
		a.bindings = append(a.bindings, platform.Binding{Name: b.name, Combo: combo})
		a.combos[b.name] = combo
		logger.Debug("Hotkey bound", "action", b.name, "combo", parsed.String())
	}

	return a, nil
}

// Run starts the agent's main event loop
func (a *Agent) Run(ctx context.Context) error {
	events, err := a.hotkey.Listen(ctx, a.bindings)
	if err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}

	a.logger.Info("SmartAnyChat started", "bindings", len(a.bindings))

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return nil

		case evt, ok := <-events:
			if !ok {
				a.wg.Wait()
				return nil
			}
			if evt.Type != platform.Pressed {
				continue
			}
			a.dispatch(ctx, evt.Binding)
		}
	}
}

// dispatch routes one hotkey press. Complete and continue run on a worker
// goroutine; a press while one is running is dropped. It reports whether
// an action was started.
func (a *Agent) dispatch(ctx context.Context, binding string) bool {
	switch binding {
	case ActionClear:
		a.ClearHistory()
		return true

	case ActionComplete, ActionContinue:
		if !a.busy.CompareAndSwap(false, true) {
			a.logger.Warn("Previous action still running, ignoring hotkey", "action", binding)
			return false
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.busy.Store(false)
			a.activate(ctx, binding)
		}()
		return true

	default:
		a.logger.Warn("Unknown hotkey binding", "binding", binding)
		return false
	}
}

// ClearHistory forgets the conversation of the current session
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()

	if session == nil {
		a.logger.Info("No conversation to clear")
		return
	}
	session.ClearHistory()
	a.logger.Info("Conversation history cleared")
}

// LastResponse returns the last reply as the backend sent it, before
// post-processing. Continue builds on it.
func (a *Agent) LastResponse() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastResponse
}

// activate runs one complete or continue sequence. It never panics.
func (a *Agent) activate(ctx context.Context, action string) {
	id := uuid.NewString()
	logger := a.logger.With("activation", id, "action", action)
	start := time.Now()

	rec := &storage.Record{ActivationID: id, Action: action}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Activation panicked", "panic", r)
			rec.Success = false
			rec.ErrorMessage = fmt.Sprintf("panic: %v", r)
			rec.TotalMs = time.Since(start).Milliseconds()
			a.save(logger, rec)
		}
		a.setStatus(web.StatusIdle)
	}()

	cfg, err := a.store.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		a.fail(logger, rec, start, fmt.Errorf("load config: %w", err))
		return
	}

	role := cfg.ActiveRole()
	rec.Role = role.Name

	session, err := a.sessionFor(cfg, logger)
	if err != nil {
		logger.Error("Failed to create completion client", "error", err)
		a.fail(logger, rec, start, err)
		return
	}
	rec.Provider = session.Client().Name()
	rec.Model = session.Client().Model()

	temperature, maxTokens := cfg.Sampling()
	opts := completion.Options{Temperature: temperature, MaxTokens: maxTokens}

	var reply string
	switch action {
	case ActionComplete:
		a.setStatus(web.StatusCapturing)
		captureStart := time.Now()
		res := a.protocol.Capture(a.combos[ActionComplete])
		rec.CaptureMs = time.Since(captureStart).Milliseconds()

		if res.Err != nil {
			logger.Error("Failed to capture selection", "error", res.Err)
			a.fail(logger, rec, start, fmt.Errorf("capture: %w", res.Err))
			return
		}
		if res.Empty() {
			logger.Warn("No text selected")
			return
		}

		rec.PromptText = res.Text
		rec.PromptChars = len([]rune(res.Text))
		logger.Info("Selection captured", "chars", rec.PromptChars, "role", role.Name)

		a.setStatus(web.StatusGenerating)
		generateStart := time.Now()
		reply = session.Generate(ctx, res.Text, opts)
		rec.GenerateMs = time.Since(generateStart).Milliseconds()

	case ActionContinue:
		previous := a.LastResponse()
		if previous == "" {
			logger.Warn("No previous reply to continue")
			return
		}

		rec.PromptText = completion.ContinuePrompt(cfg.Language)
		rec.PromptChars = len([]rune(rec.PromptText))
		logger.Info("Continuing previous reply", "role", role.Name)

		a.setStatus(web.StatusGenerating)
		generateStart := time.Now()
		reply = session.Continue(ctx, previous, opts)
		rec.GenerateMs = time.Since(generateStart).Milliseconds()
	}

	a.mu.Lock()
	a.lastResponse = reply
	a.mu.Unlock()

	failed := completion.IsErrorReply(reply)
	if failed {
		rec.ErrorMessage = firstLine(reply)
	} else {
		reply = a.postprocess(ctx, cfg, reply, logger)
	}

	a.setStatus(web.StatusInjecting)
	injectStart := time.Now()
	out := a.protocol.Inject(reply)
	rec.InjectMs = time.Since(injectStart).Milliseconds()

	rec.ResponseText = reply
	rec.ResponseChars = len([]rune(reply))
	rec.Success = !failed && out.Delivered
	if out.Err != nil {
		logger.Error("Failed to inject reply", "error", out.Err)
		rec.ErrorMessage = out.Err.Error()
	}
	rec.TotalMs = time.Since(start).Milliseconds()

	logger.Info("Activation finished",
		"success", rec.Success,
		"reply_chars", rec.ResponseChars,
		"capture_ms", rec.CaptureMs,
		"generate_ms", rec.GenerateMs,
		"inject_ms", rec.InjectMs)

	a.save(logger, rec)
}

// sessionFor returns the cached session while the settings that shape the
// conversation are unchanged, and a fresh one otherwise.
func (a *Agent) sessionFor(cfg *config.Config, logger *slog.Logger) (*completion.Session, error) {
	api := cfg.ActiveAPI()
	role := cfg.ActiveRole()
	sc := completion.SessionConfig{
		SystemPrompt: completion.SystemPrompt(role.InputPrompt, role.OutputPrompt, cfg.Language),
		Language:     cfg.Language,
		KeepHistory:  cfg.KeepHistory,
	}
	key := strings.Join([]string{
		cfg.APIType, api.BaseURL, api.Model, api.APIKey,
		sc.SystemPrompt, sc.Language, fmt.Sprint(sc.KeepHistory),
	}, "\x00")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil && a.sessionKey == key {
		return a.session, nil
	}

	client, err := a.newClient(cfg.APIType, api, a.logger)
	if err != nil {
		return nil, err
	}
	if a.session != nil {
		logger.Info("Settings changed, starting a new conversation")
	}
	a.session = completion.NewSession(client, sc, a.logger)
	a.sessionKey = key
	return a.session, nil
}

// postprocess cleans a reply before it is pasted. Control characters are
// always dropped; markdown is stripped only when the settings ask for it.
func (a *Agent) postprocess(ctx context.Context, cfg *config.Config, reply string, logger *slog.Logger) string {
	pipeline := postprocess.NewPipeline(postprocess.SanitizeProcessor())
	if cfg.StripMarkdown {
		pipeline.AddProcessor(postprocess.MarkdownProcessor())
		pipeline.AddProcessor(postprocess.TrimProcessor())
	}

	out, err := pipeline.Process(ctx, reply)
	if err != nil {
		logger.Warn("Post-processing failed, using raw reply", "error", err)
		return reply
	}
	return out
}

func (a *Agent) fail(logger *slog.Logger, rec *storage.Record, start time.Time, err error) {
	rec.Success = false
	rec.ErrorMessage = err.Error()
	rec.TotalMs = time.Since(start).Milliseconds()
	a.save(logger, rec)
}

func (a *Agent) save(logger *slog.Logger, rec *storage.Record) {
	if a.recorder != nil {
		if err := a.recorder.SaveRecord(rec); err != nil {
			logger.Error("Failed to save record", "error", err)
			return
		}
	}
	for _, fn := range a.onRecord {
		fn(rec)
	}
}

func (a *Agent) setStatus(status string) {
	for _, fn := range a.onStatus {
		fn(status)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
