package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleClaim is the legacy single-role object embedded in access tokens.
type RoleClaim struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AccessClaims serialize as {id, role, sessionId, roles, iat, exp}. Role is
// null when the user holds no role.
type AccessClaims struct {
	ID        string     `json:"id"`
	Role      *RoleClaim `json:"role"`
	SessionID string     `json:"sessionId"`
	Roles     []string   `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims serialize as {sessionId, hash, iat, exp}.
type RefreshClaims struct {
	SessionID string `json:"sessionId"`
	Hash      string `json:"hash"`
	jwt.RegisteredClaims
}

// ConfirmEmailClaims carry the user to activate and, for an address change,
// the new address.
type ConfirmEmailClaims struct {
	ConfirmEmailUserID string `json:"confirmEmailUserId"`
	NewEmail           string `json:"newEmail,omitempty"`
	jwt.RegisteredClaims
}

// ForgotClaims carry the user whose password may be reset.
type ForgotClaims struct {
	ForgotUserID string `json:"forgotUserId"`
	jwt.RegisteredClaims
}

// AccessInput is the identity snapshot bound into an access token.
type AccessInput struct {
	UserID    string
	Role      *RoleClaim
	SessionID string
	Roles     []string
}

// IssueAccess signs an access token and returns it with its expiry.
func (c *Codec) IssueAccess(in AccessInput) (string, time.Time, error) {
	registered, exp := c.registered(c.config.Access.TTL)
	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	token, err := c.sign(AccessClaims{
		ID:               in.UserID,
		Role:             in.Role,
		SessionID:        in.SessionID,
		Roles:            roles,
		RegisteredClaims: registered,
	}, c.config.Access.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseAccess verifies an access token.
func (c *Codec) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.config.Access.Secret); err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueRefresh signs a refresh token binding sessionID to its current hash.
func (c *Codec) IssueRefresh(sessionID, hash string) (string, error) {
	registered, _ := c.registered(c.config.Refresh.TTL)
	return c.sign(RefreshClaims{
		SessionID:        sessionID,
		Hash:             hash,
		RegisteredClaims: registered,
	}, c.config.Refresh.Secret)
}

// ParseRefresh verifies a refresh token. It does not consult the session
// store; hash comparison happens on rotation.
func (c *Codec) ParseRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.config.Refresh.Secret); err != nil {
		return nil, err
	}
	if claims.SessionID == "" || claims.Hash == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueConfirmEmail signs an e-mail confirmation token. newEmail is empty for
// sign-up confirmation.
func (c *Codec) IssueConfirmEmail(userID, newEmail string) (string, error) {
	registered, _ := c.registered(c.config.ConfirmEmail.TTL)
	return c.sign(ConfirmEmailClaims{
		ConfirmEmailUserID: userID,
		NewEmail:           newEmail,
		RegisteredClaims:   registered,
	}, c.config.ConfirmEmail.Secret)
}

// ParseConfirmEmail verifies an e-mail confirmation token.
func (c *Codec) ParseConfirmEmail(token string) (*ConfirmEmailClaims, error) {
	claims := &ConfirmEmailClaims{}
	if err := c.parse(token, claims, c.config.ConfirmEmail.Secret); err != nil {
		return nil, err
	}
	if claims.ConfirmEmailUserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueForgot signs a password-reset token and returns it with its expiry.
func (c *Codec) IssueForgot(userID string) (string, time.Time, error) {
	registered, exp := c.registered(c.config.Forgot.TTL)
	token, err := c.sign(ForgotClaims{
		ForgotUserID:     userID,
		RegisteredClaims: registered,
	}, c.config.Forgot.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseForgot verifies a password-reset token.
func (c *Codec) ParseForgot(token string) (*ForgotClaims, error) {
	claims := &ForgotClaims{}
	if err := c.parse(token, claims, c.config.Forgot.Secret); err != nil {
		return nil, err
	}
	if claims.ForgotUserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
