package authcore

import (
	"context"
	"time"

	"github.com/formwise/authcore/session"
)

// Provider identifies how an account authenticates.
type Provider string

const (
	ProviderEmail    Provider = "email"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
	ProviderTwitter  Provider = "twitter"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderFacebook, ProviderApple, ProviderTwitter:
		return true
	}
	return false
}

// Status is the activation state of an account.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Role is a named role record. Name is the identity permissions resolve
// against and never changes after creation.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// User is an account record. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"-"`
	Provider  Provider  `json:"provider"`
	SocialID  string    `json:"socialId,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Roles     []Role    `json:"roles"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// RoleNames returns the names of the user's roles in order.
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// PrimaryRole returns the first role, or nil when the user has none.
func (u *User) PrimaryRole() *Role {
	if u == nil || len(u.Roles) == 0 {
		return nil
	}
	r := u.Roles[0]
	return &r
}

// SocialProfile is an identity already verified by an external provider.
type SocialProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// LoginResult is a TokenPair plus the authenticated user.
type LoginResult struct {
	TokenPair
	User *User `json:"user"`
}

// RegisterInput is the payload of a self-service registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdateUserInput is a partial profile update. Nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	OldPassword *string `json:"oldPassword,omitempty"`
}

// RoleInput creates or updates a role. Name is ignored on update.
type RoleInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserRepository persists accounts. Lookups return [ErrRecordNotFound] when
// nothing matches and Create returns [ErrDuplicate] for a taken email.
// Implementations stamp CreatedBy/UpdatedBy from [CallerIDFromContext].
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindBySocialID(ctx context.Context, provider Provider, socialID string) (*User, error)
	Update(ctx context.Context, u *User) error
}

// RoleRepository persists role records. Create returns [ErrDuplicate] for a
// taken name.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
}

// SessionStore is the persistence contract for login sessions. Both
// session.RedisStore and session.MemoryStore satisfy it.
type SessionStore interface {
	Create(ctx context.Context, userID string) (*session.Session, error)
	FindByID(ctx context.Context, id string) (*session.Session, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	UpdateHash(ctx context.Context, id, expectedOldHash, newHash string) (*session.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) (int, error)
	DeleteByUserIDExcluding(ctx context.Context, userID, keepID string) (int, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

// Mailer delivers the account emails. Tokens are opaque to the mailer.
type Mailer interface {
	SendConfirmEmail(ctx context.Context, to, token string) error
	SendConfirmNewEmail(ctx context.Context, to, token string) error
	SendResetPassword(ctx context.Context, to, token string, expiresAt time.Time) error
}

type nopMailer struct{}

func (nopMailer) SendConfirmEmail(context.Context, string, string) error    { return nil }
func (nopMailer) SendConfirmNewEmail(context.Context, string, string) error { return nil }
func (nopMailer) SendResetPassword(context.Context, string, string, time.Time) error {
	return nil
}
