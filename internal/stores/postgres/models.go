package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/formwise/authcore"
)

type roleModel struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"type:text;uniqueIndex;not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	CreatedBy   string    `gorm:"type:text"`
	UpdatedBy   string    `gorm:"type:text"`
}

func (roleModel) TableName() string { return schemaName + ".roles" }

type userModel struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     *string   `gorm:"type:text;uniqueIndex"`
	Password  string    `gorm:"type:text"`
	Provider  string    `gorm:"type:text;not null;index:idx_users_social"`
	SocialID  *string   `gorm:"type:text;index:idx_users_social"`
	FirstName string    `gorm:"type:text"`
	LastName  string    `gorm:"type:text"`
	Status    string    `gorm:"type:text;not null;default:'inactive'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	CreatedBy string    `gorm:"type:text"`
	UpdatedBy string    `gorm:"type:text"`

	Roles []roleModel `gorm:"many2many:user_roles;joinForeignKey:UserID;joinReferences:RoleID"`
}

func (userModel) TableName() string { return schemaName + ".users" }

type userRoleModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User userModel `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
	Role roleModel `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
}

func (userRoleModel) TableName() string { return schemaName + ".user_roles" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *roleModel) domain() authcore.Role {
	return authcore.Role{
		ID:          m.ID.String(),
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		CreatedBy:   m.CreatedBy,
		UpdatedBy:   m.UpdatedBy,
	}
}

func (m *userModel) domain() *authcore.User {
	u := &authcore.User{
		ID:        m.ID.String(),
		Email:     deref(m.Email),
		Password:  m.Password,
		Provider:  authcore.Provider(m.Provider),
		SocialID:  deref(m.SocialID),
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Status:    authcore.Status(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
		Roles:     make([]authcore.Role, 0, len(m.Roles)),
	}
	for i := range m.Roles {
		u.Roles = append(u.Roles, m.Roles[i].domain())
	}
	return u
}

// roleRefs converts domain roles to models carrying only their ids. Roles
// with unparsable ids cannot exist in the table and are skipped.
func roleRefs(roles []authcore.Role) []roleModel {
	out := make([]roleModel, 0, len(roles))
	for _, r := range roles {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		out = append(out, roleModel{ID: id})
	}
	return out
}
