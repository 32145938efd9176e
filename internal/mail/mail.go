// Package mail holds authcore.Mailer implementations.
package mail

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogMailer writes outbound messages to the log instead of delivering them.
// Tokens are logged at debug level only.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(l zerolog.Logger) *LogMailer {
	return &LogMailer{log: l.With().Str("component", "mail").Logger()}
}

func (m *LogMailer) SendConfirmEmail(_ context.Context, to, token string) error {
	m.send("confirm-email", to, token, time.Time{})
	return nil
}

func (m *LogMailer) SendConfirmNewEmail(_ context.Context, to, token string) error {
	m.send("confirm-new-email", to, token, time.Time{})
	return nil
}

func (m *LogMailer) SendResetPassword(_ context.Context, to, token string, expiresAt time.Time) error {
	m.send("reset-password", to, token, expiresAt)
	return nil
}

func (m *LogMailer) send(template, to, token string, expiresAt time.Time) {
	ev := m.log.Info().Str("template", template).Str("to", to)
	if !expiresAt.IsZero() {
		ev = ev.Time("expires_at", expiresAt)
	}
	ev.Msg("mail queued")
	m.log.Debug().Str("template", template).Str("token", token).Msg("mail token")
}
