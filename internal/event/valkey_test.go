package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"testing"
)

type fakeValkey struct {
	mu       sync.Mutex
	channels []string
	messages []string
	err      error
	closed   bool
}

func (f *fakeValkey) publish(_ context.Context, channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeValkey) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestValkeyPublisher_PublishesJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeValkey{}
	p := newValkeyPublisher("", fake.publish, fake.close, slog.New(slog.DiscardHandler))
	if p.Channel() != DefaultChannel {
		t.Errorf("Channel() = %q, want %q", p.Channel(), DefaultChannel)
	}

	p.Emit(Event{Type: TypeStageStart, RunID: "r1", Stage: "collect_threats"})
	p.Emit(Event{Type: TypePipelineComplete, RunID: "r1", ElapsedMS: 6000})
	p.Close()
	p.Close()
	p.Emit(Event{Type: TypeStageStart})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(fake.messages))
	}
	for _, ch := range fake.channels {
		if ch != DefaultChannel {
			t.Errorf("channel = %q", ch)
		}
	}
	var e Event
	if err := json.Unmarshal([]byte(fake.messages[1]), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != TypePipelineComplete || e.ElapsedMS != 6000 {
		t.Errorf("decoded = %+v", e)
	}
	if !fake.closed {
		t.Error("client not closed")
	}
}

func TestValkeyPublisher_PublishErrorIsLogged(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		logged []string
	)
	handler := &recordHandler{record: func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, msg)
	}}
	fake := &fakeValkey{err: errors.New("connection reset")}
	p := newValkeyPublisher("dash", fake.publish, nil, slog.New(handler))
	p.Emit(Event{Type: TypeStageError})
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 || logged[0] != "publishing event failed" {
		t.Errorf("logged = %v", logged)
	}
}

func TestNewValkeyPublisher_Unreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := NewValkeyPublisher(t.Context(), addr, "", nil); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

// recordHandler passes record messages to a callback.
type recordHandler struct {
	record func(msg string)
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.record(r.Message)
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }
