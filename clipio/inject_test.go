package clipio

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jinzheng8115/smartanychat/platform"
)

func TestInjectPastesAndRestores(t *testing.T) {
	cb := newFakeClipboard("old")
	kb := &fakeKeyboard{clipboard: cb}
	p, rec := newTestProtocol(cb, kb)

	out := p.Inject("generated output")
	if !out.Delivered || out.Err != nil {
		t.Fatalf("Inject = %+v, want delivered", out)
	}

	if !slices.Equal(kb.pasted, []string{"generated output"}) {
		t.Fatalf("pasted = %v", kb.pasted)
	}
	if got, _ := cb.current(); got != "old" {
		t.Fatalf("clipboard = %q, want %q", got, "old")
	}

	wantCalls := []string{"read", "write:generated output", "paste", "write:old"}
	if got := cb.log(); !slices.Equal(got, wantCalls) {
		t.Fatalf("calls = %v, want %v", got, wantCalls)
	}

	d := DefaultDelays()
	wantSleeps := []time.Duration{d.PasteReady, d.PasteSettle}
	if got := rec.durations(); !slices.Equal(got, wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", got, wantSleeps)
	}
}

func TestInjectIntoEmptyClipboardClearsAfterwards(t *testing.T) {
	cb := newFakeClipboard("")
	kb := &fakeKeyboard{clipboard: cb}
	p, _ := newTestProtocol(cb, kb)

	p.Inject("reply")

	if got, has := cb.current(); has || got != "" {
		t.Fatalf("clipboard = %q (has=%v), want empty", got, has)
	}
}

func TestInjectPassesErrorTextThrough(t *testing.T) {
	cb := newFakeClipboard("old")
	kb := &fakeKeyboard{clipboard: cb}
	p, _ := newTestProtocol(cb, kb)

	text := "request error: connection refused\n\nhint: is ollama running?"
	if out := p.Inject(text); !out.Delivered {
		t.Fatalf("Inject = %+v, want delivered", out)
	}
	if len(kb.pasted) != 1 || kb.pasted[0] != text {
		t.Fatalf("pasted = %q, want verbatim %q", kb.pasted, text)
	}
}

func TestInjectWriteFailureAborts(t *testing.T) {
	cb := newFakeClipboard("old")
	cb.writeErr = fmt.Errorf("open clipboard after 10 attempts: %w", platform.ErrAccessDenied)
	kb := &fakeKeyboard{clipboard: cb}
	p, rec := newTestProtocol(cb, kb)

	out := p.Inject("reply")
	if out.Delivered {
		t.Fatal("Delivered = true, want false")
	}
	if !errors.Is(out.Err, ErrWriteFailed) || !errors.Is(out.Err, platform.ErrAccessDenied) {
		t.Fatalf("Err = %v, want ErrWriteFailed wrapping ErrAccessDenied", out.Err)
	}
	if len(kb.pasted) != 0 {
		t.Fatalf("pasted = %v, want nothing", kb.pasted)
	}
	if got := rec.durations(); len(got) != 0 {
		t.Fatalf("sleeps = %v, want none", got)
	}
}

func TestInjectWritesBeforePaste(t *testing.T) {
	cb := newFakeClipboard("")
	kb := &fakeKeyboard{clipboard: cb}
	p, _ := newTestProtocol(cb, kb)

	p.Inject("ordered")

	calls := cb.log()
	w := slices.Index(calls, "write:ordered")
	v := slices.Index(calls, "paste")
	if w < 0 || v < 0 || w > v {
		t.Fatalf("calls = %v, want write before paste", calls)
	}
}

func TestProtocolSerializesRuns(t *testing.T) {
	cb := newFakeClipboard("base")
	kb := &fakeKeyboard{clipboard: cb}
	p := New(cb, kb, DefaultDelays(), discardLogger(), WithSleep(func(time.Duration) {
		time.Sleep(time.Millisecond)
	}))

	const runs = 5
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Inject(fmt.Sprintf("reply-%d", i))
		}(i)
	}
	wg.Wait()

	if got, _ := cb.current(); got != "base" {
		t.Fatalf("clipboard = %q, want %q", got, "base")
	}

	calls := cb.log()
	if len(calls) != runs*4 {
		t.Fatalf("got %d calls, want %d: %v", len(calls), runs*4, calls)
	}
	for i := 0; i < len(calls); i += 4 {
		block := calls[i : i+4]
		if block[0] != "read" || block[2] != "paste" || block[3] != "write:base" {
			t.Fatalf("interleaved run at %d: %v", i, block)
		}
	}

	for _, text := range kb.pasted {
		if text == "base" {
			t.Fatalf("pasted prior clipboard content: %v", kb.pasted)
		}
	}
}

func TestProtocolSerializesCaptureAndInject(t *testing.T) {
	cb := newFakeClipboard("base")
	kb := &fakeKeyboard{clipboard: cb, selection: "selected"}
	p := New(cb, kb, DefaultDelays(), discardLogger(), WithSleep(func(time.Duration) {
		time.Sleep(time.Millisecond)
	}))

	const runs = 4
	var wg sync.WaitGroup
	captured := make([]string, runs)
	for i := 0; i < runs; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			captured[i] = p.Capture(testCombo).Text
		}(i)
		go func(i int) {
			defer wg.Done()
			p.Inject(fmt.Sprintf("reply-%d", i))
		}(i)
	}
	wg.Wait()

	for i, text := range captured {
		if text != "selected" {
			t.Fatalf("capture %d = %q, want %q", i, text, "selected")
		}
	}
	if got, _ := cb.current(); got != "base" {
		t.Fatalf("clipboard = %q, want %q", got, "base")
	}

	// capture: read clear copy read write:base
	// inject:  read write:reply paste write:base
	calls := cb.log()
	captures, injects := 0, 0
	for i := 0; i < len(calls); {
		if i+1 < len(calls) && calls[i+1] == "clear" {
			if i+5 > len(calls) {
				t.Fatalf("truncated capture at %d: %v", i, calls[i:])
			}
			block := calls[i : i+5]
			if block[0] != "read" || block[2] != "copy" || block[3] != "read" || block[4] != "write:base" {
				t.Fatalf("interleaved capture at %d: %v", i, block)
			}
			captures++
			i += 5
			continue
		}
		if i+4 > len(calls) {
			t.Fatalf("truncated inject at %d: %v", i, calls[i:])
		}
		block := calls[i : i+4]
		if block[0] != "read" || !strings.HasPrefix(block[1], "write:reply-") || block[2] != "paste" || block[3] != "write:base" {
			t.Fatalf("interleaved inject at %d: %v", i, block)
		}
		injects++
		i += 4
	}
	if captures != runs || injects != runs {
		t.Fatalf("captures = %d, injects = %d, want %d each", captures, injects, runs)
	}
}
