package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED, default=true"`
	BufferSize int  `env:"BUFFER_SIZE, default=1024"`
	DropIfFull bool `env:"DROP_IF_FULL, default=true"`
}

// Audit delivery outcomes reported to an auditObserver.
const (
	auditDelivered = "delivered"
	auditDropped   = "dropped"
	auditFailed    = "failed"
)

// auditObserver is told what happened to every event offered to the
// dispatcher. [Metrics] implements it.
type auditObserver interface {
	AuditOutcome(eventType, outcome string)
}

type nopAuditObserver struct{}

func (nopAuditObserver) AuditOutcome(string, string) {}

// auditDispatcher hands events to the sink on a single goroutine. Emit never
// waits on the sink: a full queue drops the event, or, without DropIfFull,
// waits for room until ctx is done.
type auditDispatcher struct {
	sink  AuditSink
	obs   auditObserver
	log   zerolog.Logger
	block bool

	// mu guards closed so that no Emit sends on a closed queue.
	mu      sync.RWMutex
	closed  bool
	queue   chan AuditEvent
	stopped chan struct{}

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, obs auditObserver, log zerolog.Logger) *auditDispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	if obs == nil {
		obs = nopAuditObserver{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &auditDispatcher{
		sink:    sink,
		obs:     obs,
		log:     log,
		block:   !cfg.DropIfFull,
		queue:   make(chan AuditEvent, size),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("event", event.EventType).Msg("audit sink panicked")
			d.obs.AuditOutcome(event.EventType, auditFailed)
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.obs.AuditOutcome(event.EventType, auditDelivered)
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *auditDispatcher) drop(event AuditEvent) {
	d.dropped.Add(1)
	d.obs.AuditOutcome(event.EventType, auditDropped)
}

// Close stops accepting events and returns once every queued event has
// reached the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
