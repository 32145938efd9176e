package authcore

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDispatcherDisabled(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{}, nil, zerolog.Nop()); d != nil {
		t.Fatal("disabled config must not start a dispatcher")
	}
	if d := newAuditDispatcher(AuditConfig{Enabled: true}, nil, nil, zerolog.Nop()); d != nil {
		t.Fatal("nil sink must not start a dispatcher")
	}

	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

func TestAuditDispatcherDeliversBeforeClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64, DropIfFull: false}, sink, nil, zerolog.Nop())

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditLoginSuccess})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}

	d.Emit(context.Background(), AuditEvent{})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("emit after close delivered, count %d", got)
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			d.Emit(context.Background(), AuditEvent{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with DropIfFull")
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	close(sink.gate)
	d.Close()
}

func TestAuditDispatcherBlockingHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: false}, sink, nil, zerolog.Nop())
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	// one in flight, one buffered
	d.Emit(context.Background(), AuditEvent{})
	d.Emit(context.Background(), AuditEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	d.Emit(ctx, AuditEvent{})
	if time.Since(start) > time.Second {
		t.Fatal("Emit ignored context cancellation")
	}
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(context.Context, AuditEvent) {
	if s.calls.Add(1) == 1 {
		panic("sink failure")
	}
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) AuditOutcome(_, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestAuditDispatcherSurvivesSinkPanic(t *testing.T) {
	var buf bytes.Buffer
	sink := &panicSink{}
	obs := &outcomeRecorder{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink, obs, zerolog.New(&buf))

	d.Emit(context.Background(), AuditEvent{EventType: AuditLoginFailure})
	d.Emit(context.Background(), AuditEvent{EventType: AuditLoginSuccess})
	d.Close()

	if got := sink.calls.Load(); got != 2 {
		t.Fatalf("sink calls = %d, want 2", got)
	}
	if len(obs.outcomes) != 2 || obs.outcomes[0] != auditFailed || obs.outcomes[1] != auditDelivered {
		t.Fatalf("outcomes = %v", obs.outcomes)
	}
	if !strings.Contains(buf.String(), "audit sink panicked") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestAuditDispatcherCloseIsIdempotent(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink, nil, zerolog.Nop())
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	d.Close()
	if got := sink.count.Load(); got != 1 {
		t.Fatalf("delivered %d, want 1", got)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), AuditEvent{EventType: AuditLogout})

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditLogout {
			t.Fatalf("unexpected event %q", ev.EventType)
		}
	default:
		t.Fatal("event not forwarded")
	}
}

func TestLogSinkWritesFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditLoginFailure,
		UserID:    "u-1",
		IP:        "10.0.0.1",
		Reason:    ReasonInvalidCredentials,
		Metadata:  map[string]string{"email": "a@example.com"},
	})

	line := buf.String()
	for _, want := range []string{`"level":"warn"`, `"event":"login_failure"`, `"user_id":"u-1"`, `"ip":"10.0.0.1"`, `"component":"audit"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
}
