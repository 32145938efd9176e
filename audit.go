package authcore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Audit event types.
const (
	AuditLoginSuccess         = "login_success"
	AuditLoginFailure         = "login_failure"
	AuditLoginThrottled       = "login_throttled"
	AuditSocialLogin          = "social_login"
	AuditRefreshSuccess       = "refresh_success"
	AuditRefreshRejected      = "refresh_rejected"
	AuditLogout               = "logout"
	AuditRegister             = "register"
	AuditEmailConfirmed       = "email_confirmed"
	AuditEmailChanged         = "email_changed"
	AuditPasswordChanged      = "password_changed"
	AuditPasswordResetRequest = "password_reset_request"
	AuditPasswordReset        = "password_reset"
	AuditRoleCreated          = "role_created"
	AuditRoleUpdated          = "role_updated"
	AuditRoleDeleted          = "role_deleted"
)

// AuditEvent records one security-relevant action. ActorID is the caller that
// performed it, UserID the account it affected.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	ActorID   string            `json:"actor_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// LogSink writes each event as a structured zerolog line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event AuditEvent) {
	ev := s.log.Info()
	if !event.Success {
		ev = s.log.Warn()
	}
	ev = ev.
		Time("at", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.ActorID != "" {
		ev = ev.Str("actor_id", event.ActorID)
	}
	if event.UserID != "" {
		ev = ev.Str("user_id", event.UserID)
	}
	if event.SessionID != "" {
		ev = ev.Str("session_id", event.SessionID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Reason != "" {
		ev = ev.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		ev = ev.Interface("metadata", event.Metadata)
	}
	ev.Msg("audit")
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, reason error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		ActorID:   CallerIDFromContext(ctx),
		UserID:    userID,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if reason != nil {
		event.Reason = AsError(reason).Reason
	}
	e.audit.Emit(ctx, event)
}
