package authcore

import (
	"context"
	"errors"
)

// ConfirmEmail activates the account named by a confirmation token. Only
// inactive accounts can be confirmed; anything else is [ErrUserNotFound].
func (e *Engine) ConfirmEmail(ctx context.Context, token string) (err error) {
	ctx, span := e.startSpan(ctx, "ConfirmEmail")
	defer func() { endSpan(span, err) }()

	claims, err := e.codec.ParseConfirmEmail(token)
	if err != nil {
		return ErrInvalidToken
	}

	user, err := e.users.FindByID(ctx, claims.ConfirmEmailUserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return ExternalSystem("find user", err)
	}
	if user.Status != StatusInactive {
		return ErrUserNotFound
	}

	user.Status = StatusActive
	if err := e.users.Update(ctx, user); err != nil {
		return ExternalSystem("update user", err)
	}
	e.emitAudit(ctx, AuditEmailConfirmed, true, user.ID, "", nil, nil)
	return nil
}

// ConfirmNewEmail moves the account to the address carried by the token and
// marks it active.
func (e *Engine) ConfirmNewEmail(ctx context.Context, token string) (err error) {
	ctx, span := e.startSpan(ctx, "ConfirmNewEmail")
	defer func() { endSpan(span, err) }()

	claims, err := e.codec.ParseConfirmEmail(token)
	if err != nil || claims.NewEmail == "" {
		return ErrInvalidToken
	}

	user, err := e.users.FindByID(ctx, claims.ConfirmEmailUserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return ExternalSystem("find user", err)
	}

	newEmail := normalizeEmail(claims.NewEmail)
	holder, err := e.findUser(ctx, e.users.FindByEmail, newEmail)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != user.ID {
		return ErrEmailExists
	}

	user.Email = newEmail
	user.Status = StatusActive
	if err := e.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return ErrEmailExists
		}
		return ExternalSystem("update user", err)
	}
	e.emitAudit(ctx, AuditEmailChanged, true, user.ID, "", nil, nil)
	return nil
}
