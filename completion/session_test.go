package completion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jinzheng8115/smartanychat/config"
)

type fakeClient struct {
	name    string
	replies []string
	errs    []error
	calls   [][]Message
	opts    []Options
}

func (f *fakeClient) Name() string  { return f.name }
func (f *fakeClient) Model() string { return "fake-model" }

func (f *fakeClient) Chat(_ context.Context, messages []Message, opts Options) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, append([]Message(nil), messages...))
	f.opts = append(f.opts, opts)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", ErrEmptyReply
}

func roles(messages []Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Role
	}
	return strings.Join(parts, ",")
}

func TestSessionKeepsHistory(t *testing.T) {
	client := &fakeClient{name: "openai", replies: []string{"first", "second"}}
	s := NewSession(client, SessionConfig{SystemPrompt: "sys", KeepHistory: true}, discardLogger())

	if got := s.Generate(context.Background(), "one", Options{Temperature: 0.7, MaxTokens: 10}); got != "first" {
		t.Fatalf("reply = %q", got)
	}
	if got := s.Generate(context.Background(), "two", Options{}); got != "second" {
		t.Fatalf("reply = %q", got)
	}

	if got := roles(client.calls[1]); got != "system,user,assistant,user" {
		t.Fatalf("second request roles = %s", got)
	}
	if client.opts[0].MaxTokens != 10 {
		t.Fatalf("options not forwarded: %+v", client.opts[0])
	}
	if s.HistoryLen() != 4 {
		t.Fatalf("HistoryLen = %d, want 4", s.HistoryLen())
	}

	s.ClearHistory()
	if s.HistoryLen() != 0 {
		t.Fatal("ClearHistory left turns behind")
	}
}

func TestSessionWithoutHistory(t *testing.T) {
	client := &fakeClient{name: "openai", replies: []string{"a", "b"}}
	s := NewSession(client, SessionConfig{SystemPrompt: "sys"}, discardLogger())

	s.Generate(context.Background(), "one", Options{})
	s.Generate(context.Background(), "two", Options{})

	if got := roles(client.calls[1]); got != "system,user" {
		t.Fatalf("roles = %s, want system,user", got)
	}
	if s.HistoryLen() != 0 {
		t.Fatalf("HistoryLen = %d, want 0", s.HistoryLen())
	}
}

func TestSessionErrorBecomesReply(t *testing.T) {
	client := &fakeClient{
		name: config.APITypeOllama,
		errs: []error{errors.New("sending request: dial tcp 127.0.0.1:11434: connect: connection refused")},
	}
	s := NewSession(client, SessionConfig{KeepHistory: true}, discardLogger())

	reply := s.Generate(context.Background(), "hello", Options{})
	if !IsErrorReply(reply) {
		t.Fatalf("reply = %q, want error reply", reply)
	}
	if !strings.Contains(reply, "Ollama") {
		t.Fatalf("reply = %q, want connection hint", reply)
	}
	if s.HistoryLen() != 0 {
		t.Fatal("error reply entered history")
	}
}

func TestSessionContinue(t *testing.T) {
	client := &fakeClient{name: "openai", replies: []string{"part one", "part two"}}
	s := NewSession(client, SessionConfig{Language: "english", KeepHistory: true}, discardLogger())

	first := s.Generate(context.Background(), "write", Options{})
	s.Continue(context.Background(), first, Options{})

	last := client.calls[1]
	if got := roles(last); got != "user,assistant,user" {
		t.Fatalf("roles = %s", got)
	}
	if last[len(last)-1].Content != ContinuePrompt("english") {
		t.Fatalf("prompt = %q", last[len(last)-1].Content)
	}
}

func TestSessionContinueAfterClear(t *testing.T) {
	client := &fakeClient{name: "openai", replies: []string{"more"}}
	s := NewSession(client, SessionConfig{KeepHistory: true}, discardLogger())

	s.Continue(context.Background(), "previous reply", Options{})

	msgs := client.calls[0]
	if got := roles(msgs); got != "assistant,user" {
		t.Fatalf("roles = %s", got)
	}
	if msgs[0].Content != "previous reply" {
		t.Fatalf("context = %q", msgs[0].Content)
	}
	if s.HistoryLen() != 3 {
		t.Fatalf("HistoryLen = %d, want 3", s.HistoryLen())
	}
}

func TestSessionContinueDoesNotRepeatProcessedReply(t *testing.T) {
	client := &fakeClient{name: "openai", replies: []string{"**bold** answer", "more"}}
	s := NewSession(client, SessionConfig{KeepHistory: true}, discardLogger())

	s.Generate(context.Background(), "write", Options{})
	// The caller pasted a post-processed copy of the reply.
	s.Continue(context.Background(), "bold answer", Options{})

	msgs := client.calls[1]
	if got := roles(msgs); got != "user,assistant,user" {
		t.Fatalf("roles = %s, want a single assistant turn", got)
	}
	if msgs[1].Content != "**bold** answer" {
		t.Fatalf("assistant turn = %q", msgs[1].Content)
	}
	if s.HistoryLen() != 4 {
		t.Fatalf("HistoryLen = %d, want 4", s.HistoryLen())
	}
}

func TestSessionContinueSkipsErrorReply(t *testing.T) {
	client := &fakeClient{
		name:    "openai",
		errs:    []error{errors.New("connection refused")},
		replies: []string{"", "more", "next"},
	}
	s := NewSession(client, SessionConfig{KeepHistory: true}, discardLogger())

	errText := s.Generate(context.Background(), "write", Options{})
	if !IsErrorReply(errText) {
		t.Fatalf("reply = %q, want an error reply", errText)
	}

	s.Continue(context.Background(), errText, Options{})
	if got := roles(client.calls[1]); got != "user" {
		t.Fatalf("continue roles = %s, want only the continue prompt", got)
	}

	s.Generate(context.Background(), "again", Options{})
	for _, m := range client.calls[2] {
		if IsErrorReply(m.Content) {
			t.Fatalf("error reply sent as %s turn", m.Role)
		}
	}
}

func TestErrorReplyFormat(t *testing.T) {
	client := &fakeClient{name: "compatible"}
	reply := ErrorReply(client, &StatusError{Provider: "compatible", StatusCode: 401, Message: "bad key"})

	if !strings.HasPrefix(reply, ErrorMarker) {
		t.Fatalf("reply = %q", reply)
	}
	for _, want := range []string{"HTTP 401", "fake-model", "api_key"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply %q missing %q", reply, want)
		}
	}
}

func TestSystemPrompt(t *testing.T) {
	got := SystemPrompt("in", "out", "english")
	want := "in\n\n" + LanguageInstruction("english") + "\n\nout"
	if got != want {
		t.Fatalf("SystemPrompt = %q, want %q", got, want)
	}

	if got := SystemPrompt("", "  ", "klingon"); !strings.Contains(got, "klingon") {
		t.Fatalf("SystemPrompt = %q", got)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		apiType string
		api     config.APIConfig
		wantErr bool
	}{
		{config.APITypeOpenAI, config.APIConfig{APIKey: "sk"}, false},
		{config.APITypeOpenAI, config.APIConfig{}, true},
		{config.APITypeCompatible, config.APIConfig{BaseURL: "http://x", Model: "m"}, false},
		{config.APITypeCompatible, config.APIConfig{BaseURL: "http://x"}, true},
		{config.APITypeOllama, config.APIConfig{Model: "llama3"}, false},
		{"palm", config.APIConfig{}, true},
	}
	for _, tt := range tests {
		c, err := NewClient(tt.apiType, tt.api, discardLogger())
		if (err != nil) != tt.wantErr {
			t.Fatalf("NewClient(%s, %+v) err = %v", tt.apiType, tt.api, err)
		}
		if err == nil && c.Name() != tt.apiType {
			t.Fatalf("Name = %q, want %q", c.Name(), tt.apiType)
		}
	}
}
