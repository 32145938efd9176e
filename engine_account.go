package authcore

import (
	"context"
	"errors"

	"github.com/formwise/authcore/permission"
)

// Register creates an inactive email account with the USER role and mails a
// confirmation token for it.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (user *User, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	in.Email = normalizeEmail(in.Email)

	var v validator
	v.email("email", in.Email)
	v.password("password", in.Password)
	v.required("firstName", in.FirstName)
	v.required("lastName", in.LastName)
	if err := v.err(); err != nil {
		return nil, err
	}

	existing, err := e.findUser(ctx, e.users.FindByEmail, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	role, err := e.Role(ctx, permission.RoleUser)
	if err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user = &User{
		Email:     in.Email,
		Password:  hash,
		Provider:  ProviderEmail,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Roles:     []Role{*role},
		Status:    StatusInactive,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, ExternalSystem("create user", err)
	}

	token, err := e.codec.IssueConfirmEmail(user.ID, "")
	if err != nil {
		return nil, err
	}
	if err := e.mailer.SendConfirmEmail(ctx, user.Email, token); err != nil {
		return nil, ExternalSystem("send confirmation email", err)
	}

	e.emitAudit(ctx, AuditRegister, true, user.ID, "", nil, nil)
	return user, nil
}

// Me returns the caller's account.
func (e *Engine) Me(ctx context.Context, userID string) (*User, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, ExternalSystem("find user", err)
	}
	return user, nil
}

// UpdateMe applies a partial profile update for the caller.
//
// A password change requires the current password and revokes every other
// session of the account, keeping the caller's own. An email change is not
// applied directly: a confirmation token is mailed to the new address and
// [Engine.ConfirmNewEmail] completes the switch.
func (e *Engine) UpdateMe(ctx context.Context, caller Caller, in UpdateUserInput) (user *User, err error) {
	ctx, span := e.startSpan(ctx, "UpdateMe")
	defer func() { endSpan(span, err) }()

	var v validator
	if in.FirstName != nil {
		v.required("firstName", *in.FirstName)
	}
	if in.LastName != nil {
		v.required("lastName", *in.LastName)
	}
	var newEmail string
	if in.Email != nil {
		newEmail = normalizeEmail(*in.Email)
		v.email("email", newEmail)
	}
	if in.Password != nil {
		v.password("password", *in.Password)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	user, err = e.Me(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	passwordChanged := false
	if in.Password != nil {
		if in.OldPassword == nil || *in.OldPassword == "" {
			return nil, ErrMissingOldPassword
		}
		if !e.hasher.Verify(*in.OldPassword, user.Password) {
			return nil, ErrIncorrectOldPassword
		}
		hash, err := e.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
		passwordChanged = true
	}

	if newEmail != "" && newEmail != user.Email {
		taken, err := e.findUser(ctx, e.users.FindByEmail, newEmail)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, ErrEmailExists
		}
		token, err := e.codec.IssueConfirmEmail(user.ID, newEmail)
		if err != nil {
			return nil, err
		}
		if err := e.mailer.SendConfirmNewEmail(ctx, newEmail, token); err != nil {
			return nil, ExternalSystem("send confirmation email", err)
		}
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}

	if err := e.users.Update(ctx, user); err != nil {
		return nil, ExternalSystem("update user", err)
	}

	if passwordChanged {
		n, err := e.sessions.DeleteByUserIDExcluding(ctx, user.ID, caller.SessionID)
		if err != nil {
			return nil, ExternalSystem("revoke sessions", err)
		}
		e.metrics.sessionsRevoked(n)
		e.emitAudit(ctx, AuditPasswordChanged, true, user.ID, caller.SessionID, nil, nil)
	}

	return e.Me(ctx, user.ID)
}
