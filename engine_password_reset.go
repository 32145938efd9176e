package authcore

import (
	"context"
	"errors"
)

// ForgotPassword mails a reset token to email. An unknown address is not an
// error: the call succeeds without sending anything so the response cannot be
// used to probe for accounts.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	var v validator
	v.email("email", email)
	if err := v.err(); err != nil {
		return err
	}

	user, err := e.findUser(ctx, e.users.FindByEmail, email)
	if err != nil {
		return err
	}
	if user == nil {
		e.log.Debug().Msg("password reset requested for unknown email")
		e.emitAudit(ctx, AuditPasswordResetRequest, false, "", "", ErrUserNotFound, nil)
		return nil
	}

	token, expiresAt, err := e.codec.IssueForgot(user.ID)
	if err != nil {
		return err
	}
	if err := e.mailer.SendResetPassword(ctx, user.Email, token, expiresAt); err != nil {
		return ExternalSystem("send reset email", err)
	}
	e.emitAudit(ctx, AuditPasswordResetRequest, true, user.ID, "", nil, nil)
	return nil
}

// ResetPassword sets a new password from a reset token and revokes every
// session of the account.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() { endSpan(span, err) }()

	var v validator
	v.password("password", newPassword)
	if err := v.err(); err != nil {
		return err
	}

	claims, err := e.codec.ParseForgot(token)
	if err != nil {
		return ErrInvalidToken
	}

	user, err := e.users.FindByID(ctx, claims.ForgotUserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return ExternalSystem("find user", err)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.Password = hash
	if err := e.users.Update(ctx, user); err != nil {
		return ExternalSystem("update user", err)
	}

	n, err := e.sessions.DeleteByUserID(ctx, user.ID)
	if err != nil {
		return ExternalSystem("revoke sessions", err)
	}
	e.metrics.sessionsRevoked(n)
	e.emitAudit(ctx, AuditPasswordReset, true, user.ID, "", nil, nil)
	return nil
}
