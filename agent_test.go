package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jinzheng8115/smartanychat/clipio"
	"github.com/jinzheng8115/smartanychat/completion"
	"github.com/jinzheng8115/smartanychat/config"
	"github.com/jinzheng8115/smartanychat/platform"
	"github.com/jinzheng8115/smartanychat/storage"
	"github.com/jinzheng8115/smartanychat/web"
)

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	has  bool
}

func (c *fakeClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has {
		return "", platform.ErrNoText
	}
	return c.text, nil
}

func (c *fakeClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text, c.has = text, true
	return nil
}

func (c *fakeClipboard) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text, c.has = "", false
	return nil
}

func (c *fakeClipboard) content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// fakeKeyboard copies selection into the clipboard and remembers what
// every paste delivered.
type fakeKeyboard struct {
	mu        sync.Mutex
	clipboard *fakeClipboard
	selection string
	pasted    []string
}

func (k *fakeKeyboard) Copy() error {
	k.mu.Lock()
	sel := k.selection
	k.mu.Unlock()
	if sel != "" {
		return k.clipboard.Write(sel)
	}
	return nil
}

func (k *fakeKeyboard) Paste() error {
	text := k.clipboard.content()
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pasted = append(k.pasted, text)
	return nil
}

func (k *fakeKeyboard) Pressed(platform.KeyCombo) bool { return false }

func (k *fakeKeyboard) pastes() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.pasted...)
}

type fakeClient struct {
	mu    sync.Mutex
	reply string
	err   error
	block chan struct{}
	panic bool
	calls [][]completion.Message
}

func (c *fakeClient) Name() string  { return "fake" }
func (c *fakeClient) Model() string { return "fake-model" }

func (c *fakeClient) Chat(ctx context.Context, messages []completion.Message, opts completion.Options) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, messages)
	block, reply, err, doPanic := c.block, c.reply, c.err, c.panic
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	if doPanic {
		panic("backend exploded")
	}
	return reply, err
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeClient) lastCall() []completion.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []storage.Record
}

func (r *fakeRecorder) SaveRecord(rec *storage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = int64(len(r.records) + 1)
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeRecorder) all() []storage.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Record(nil), r.records...)
}

type fakeHotkey struct {
	events   chan platform.Event
	bindings []platform.Binding
}

func (h *fakeHotkey) Listen(ctx context.Context, bindings []platform.Binding) (<-chan platform.Event, error) {
	h.bindings = bindings
	return h.events, nil
}

type harness struct {
	agent     *Agent
	store     *config.Store
	clipboard *fakeClipboard
	keyboard  *fakeKeyboard
	client    *fakeClient
	recorder  *fakeRecorder
	hotkey    *fakeHotkey
	factory   int

	statusMu sync.Mutex
	statuses []string
}

func newHarness(t *testing.T, clipboardText, selection string) *harness {
	t.Helper()

	h := &harness{
		store:     config.NewStore(filepath.Join(t.TempDir(), "config.toml")),
		clipboard: &fakeClipboard{text: clipboardText, has: clipboardText != ""},
		client:    &fakeClient{reply: "generated output"},
		recorder:  &fakeRecorder{},
		hotkey:    &fakeHotkey{events: make(chan platform.Event)},
	}
	h.keyboard = &fakeKeyboard{clipboard: h.clipboard, selection: selection}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	protocol := clipio.New(h.clipboard, h.keyboard, clipio.DefaultDelays(), logger,
		clipio.WithSleep(func(time.Duration) {}))

	agent, err := NewAgent(h.store, h.hotkey, protocol, logger,
		WithRecorder(h.recorder),
		WithClientFactory(func(string, config.APIConfig, *slog.Logger) (completion.Client, error) {
			h.factory++
			return h.client, nil
		}),
		OnStatus(func(s string) {
			h.statusMu.Lock()
			h.statuses = append(h.statuses, s)
			h.statusMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewAgent error: %v", err)
	}
	h.agent = agent
	return h
}

// run dispatches a binding and waits for the worker to finish
func (h *harness) run(t *testing.T, binding string) {
	t.Helper()
	if !h.agent.dispatch(context.Background(), binding) {
		t.Fatalf("dispatch(%q) was not started", binding)
	}
	h.agent.wg.Wait()
}

func TestCompleteRoundTrip(t *testing.T) {
	h := newHarness(t, "old", "hello")

	h.run(t, ActionComplete)

	if got := h.keyboard.pastes(); len(got) != 1 || got[0] != "generated output" {
		t.Fatalf("pasted = %q, want [generated output]", got)
	}
	if got := h.clipboard.content(); got != "old" {
		t.Errorf("clipboard = %q, want restored %q", got, "old")
	}

	msgs := h.client.lastCall()
	if last := msgs[len(msgs)-1]; last.Role != completion.RoleUser || last.Content != "hello" {
		t.Errorf("last message = %+v, want user hello", last)
	}
	if msgs[0].Role != completion.RoleSystem {
		t.Errorf("first message role = %q, want system", msgs[0].Role)
	}

	records := h.recorder.all()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if !r.Success || r.Action != ActionComplete || r.PromptText != "hello" || r.ResponseText != "generated output" {
		t.Errorf("record = %+v", r)
	}
	if r.ActivationID == "" || r.Provider != "fake" || r.Role != config.DefaultRoleName {
		t.Errorf("record metadata = %+v", r)
	}

	want := []string{web.StatusCapturing, web.StatusGenerating, web.StatusInjecting, web.StatusIdle}
	if strings.Join(h.statuses, ",") != strings.Join(want, ",") {
		t.Errorf("statuses = %v, want %v", h.statuses, want)
	}

	if got := h.agent.LastResponse(); got != "generated output" {
		t.Errorf("LastResponse = %q", got)
	}
}

func TestCompleteEmptySelectionDoesNothing(t *testing.T) {
	h := newHarness(t, "", "")

	h.run(t, ActionComplete)

	if n := h.client.callCount(); n != 0 {
		t.Errorf("Chat called %d times, want 0", n)
	}
	if got := h.keyboard.pastes(); len(got) != 0 {
		t.Errorf("pasted = %q, want nothing", got)
	}
	if got := h.recorder.all(); len(got) != 0 {
		t.Errorf("records = %d, want 0", len(got))
	}
	if got := h.clipboard.content(); got != "" {
		t.Errorf("clipboard = %q, want empty", got)
	}
}

func TestErrorReplyIsPastedAndRecorded(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.err = errors.New("connection refused")

	h.run(t, ActionComplete)

	pasted := h.keyboard.pastes()
	if len(pasted) != 1 || !completion.IsErrorReply(pasted[0]) {
		t.Fatalf("pasted = %q, want an error reply", pasted)
	}

	r := h.recorder.all()[0]
	if r.Success {
		t.Error("record marked successful")
	}
	if !strings.HasPrefix(r.ErrorMessage, completion.ErrorMarker) {
		t.Errorf("error_message = %q", r.ErrorMessage)
	}
}

func TestContinueUsesPreviousReply(t *testing.T) {
	h := newHarness(t, "old", "hello")

	h.run(t, ActionContinue)
	if n := h.client.callCount(); n != 0 {
		t.Fatalf("continue without previous reply called Chat %d times", n)
	}

	h.run(t, ActionComplete)
	h.client.mu.Lock()
	h.client.reply = "more output"
	h.client.mu.Unlock()
	h.run(t, ActionContinue)

	msgs := h.client.lastCall()
	last := msgs[len(msgs)-1]
	if last.Content != completion.ContinuePrompt("chinese") {
		t.Errorf("last message = %q, want continue prompt", last.Content)
	}
	prev := msgs[len(msgs)-2]
	if prev.Role != completion.RoleAssistant || prev.Content != "generated output" {
		t.Errorf("previous turn = %+v, want assistant generated output", prev)
	}

	if got := h.keyboard.pastes(); len(got) != 2 || got[1] != "more output" {
		t.Errorf("pasted = %q", got)
	}
	if got := h.agent.LastResponse(); got != "more output" {
		t.Errorf("LastResponse = %q", got)
	}
}

func TestSecondPressWhileBusyIsSuppressed(t *testing.T) {
	h := newHarness(t, "old", "hello")
	release := make(chan struct{})
	h.client.block = release

	ctx := context.Background()
	if !h.agent.dispatch(ctx, ActionComplete) {
		t.Fatal("first dispatch not started")
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.client.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first activation never reached Chat")
		}
		time.Sleep(time.Millisecond)
	}

	if h.agent.dispatch(ctx, ActionComplete) {
		t.Error("second complete started while busy")
	}
	if h.agent.dispatch(ctx, ActionContinue) {
		t.Error("continue started while busy")
	}

	close(release)
	h.agent.wg.Wait()

	if n := h.client.callCount(); n != 1 {
		t.Errorf("Chat called %d times, want 1", n)
	}
	if got := h.keyboard.pastes(); len(got) != 1 {
		t.Errorf("pasted %d times, want 1", len(got))
	}

	h.client.block = nil
	h.run(t, ActionComplete)
	if n := h.client.callCount(); n != 2 {
		t.Errorf("Chat called %d times after release, want 2", n)
	}
}

func TestPanicIsRecoveredAndRecorded(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.panic = true

	h.run(t, ActionComplete)

	records := h.recorder.all()
	if len(records) != 1 || records[0].Success || !strings.Contains(records[0].ErrorMessage, "backend exploded") {
		t.Fatalf("records = %+v, want one failed panic record", records)
	}
	if h.agent.busy.Load() {
		t.Error("busy flag still set after panic")
	}
	if last := h.statuses[len(h.statuses)-1]; last != web.StatusIdle {
		t.Errorf("final status = %q, want idle", last)
	}
}

func TestClearBindingClearsHistory(t *testing.T) {
	h := newHarness(t, "old", "hello")

	h.run(t, ActionComplete)
	if n := h.agent.session.HistoryLen(); n != 2 {
		t.Fatalf("history = %d turns, want 2", n)
	}

	if !h.agent.dispatch(context.Background(), ActionClear) {
		t.Fatal("clear not dispatched")
	}
	if n := h.agent.session.HistoryLen(); n != 0 {
		t.Errorf("history = %d turns after clear, want 0", n)
	}
	if got := h.keyboard.pastes(); len(got) != 1 {
		t.Errorf("clear touched the clipboard: pasted %q", got)
	}
}

func TestSessionRebuiltOnlyWhenSettingsChange(t *testing.T) {
	h := newHarness(t, "old", "hello")

	h.run(t, ActionComplete)
	h.run(t, ActionComplete)
	if h.factory != 1 {
		t.Fatalf("client factory called %d times, want 1", h.factory)
	}

	if _, err := h.store.Update(func(cfg *config.Config) error {
		return cfg.SetCurrentRole("Code Expert")
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	h.run(t, ActionComplete)
	if h.factory != 2 {
		t.Errorf("client factory called %d times after role change, want 2", h.factory)
	}
	if r := h.recorder.all()[2]; r.Role != "Code Expert" {
		t.Errorf("record role = %q, want Code Expert", r.Role)
	}
}

func TestStripMarkdownSetting(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.reply = "**bold** answer"

	if _, err := h.store.Update(func(cfg *config.Config) error {
		cfg.StripMarkdown = true
		return nil
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	h.run(t, ActionComplete)

	if got := h.keyboard.pastes(); len(got) != 1 || got[0] != "bold answer" {
		t.Errorf("pasted = %q, want [bold answer]", got)
	}
}

func TestReplyIsSanitizedBeforePaste(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.reply = "cafe\u0301\x00 ok\r\n"

	h.run(t, ActionComplete)

	if got := h.keyboard.pastes(); len(got) != 1 || got[0] != "caf\u00e9 ok\n" {
		t.Errorf("pasted = %q, want [%q]", got, "caf\u00e9 ok\n")
	}
	if got := h.agent.LastResponse(); got != h.client.reply {
		t.Errorf("LastResponse() = %q, want raw reply %q", got, h.client.reply)
	}
}

func TestContinueAfterStrippedReplySendsItOnce(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.reply = "**bold** answer"

	if _, err := h.store.Update(func(cfg *config.Config) error {
		cfg.StripMarkdown = true
		return nil
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	h.run(t, ActionComplete)
	h.run(t, ActionContinue)

	var assistant []string
	for _, m := range h.client.lastCall() {
		if m.Role == completion.RoleAssistant {
			assistant = append(assistant, m.Content)
		}
	}
	if len(assistant) != 1 || assistant[0] != "**bold** answer" {
		t.Errorf("assistant turns = %q, want the raw reply once", assistant)
	}
	if got := h.agent.session.HistoryLen(); got != 4 {
		t.Errorf("history = %d turns, want 4", got)
	}
}

func TestContinueAfterErrorReplyKeepsHistoryClean(t *testing.T) {
	h := newHarness(t, "old", "hello")
	h.client.err = errors.New("connection refused")

	h.run(t, ActionComplete)

	h.client.mu.Lock()
	h.client.err = nil
	h.client.reply = "more output"
	h.client.mu.Unlock()
	h.run(t, ActionContinue)

	for _, m := range h.client.lastCall() {
		if completion.IsErrorReply(m.Content) {
			t.Fatalf("error reply sent as %s turn", m.Role)
		}
	}
	if got := h.keyboard.pastes(); len(got) != 2 || got[1] != "more output" {
		t.Errorf("pasted = %q", got)
	}
}

func TestRunRegistersBindingsAndDispatches(t *testing.T) {
	h := newHarness(t, "old", "hello")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.agent.Run(ctx) }()

	h.hotkey.events <- platform.Event{Type: platform.Released, Binding: ActionComplete}
	h.hotkey.events <- platform.Event{Type: platform.Pressed, Binding: ActionComplete}

	deadline := time.Now().Add(5 * time.Second)
	for len(h.recorder.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("activation never recorded")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}

	names := make([]string, 0, len(h.hotkey.bindings))
	for _, b := range h.hotkey.bindings {
		names = append(names, b.Name)
	}
	if got := strings.Join(names, ","); got != "complete,continue,clear" {
		t.Errorf("bindings = %s", got)
	}
	if n := h.client.callCount(); n != 1 {
		t.Errorf("Chat called %d times, want 1", n)
	}
}

func TestNewAgentRejectsBadHotkey(t *testing.T) {
	store := config.NewStore(filepath.Join(t.TempDir(), "config.toml"))
	if _, err := store.Update(func(cfg *config.Config) error {
		cfg.Hotkeys.Continue = "ctrl+nosuchkey"
		return nil
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	protocol := clipio.New(&fakeClipboard{}, &fakeKeyboard{}, clipio.DefaultDelays(), logger)
	if _, err := NewAgent(store, &fakeHotkey{}, protocol, logger); err == nil {
		t.Fatal("NewAgent accepted an unknown key")
	}
}
