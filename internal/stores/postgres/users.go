package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/formwise/authcore"
)

// Users implements authcore.UserRepository.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) Create(ctx context.Context, u *authcore.User) error {
	actor := authcore.CallerIDFromContext(ctx)
	m := userModel{
		Email:     optional(strings.ToLower(u.Email)),
		Password:  u.Password,
		Provider:  string(u.Provider),
		SocialID:  optional(u.SocialID),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    string(u.Status),
		CreatedBy: actor,
		UpdatedBy: actor,
		Roles:     roleRefs(u.Roles),
	}
	if u.ID != "" {
		id, err := uuid.Parse(u.ID)
		if err != nil {
			return err
		}
		m.ID = id
	}

	// Roles.* keeps GORM from upserting the referenced roles; only the join
	// rows are written.
	if err := r.db.WithContext(ctx).Omit("Roles.*").Create(&m).Error; err != nil {
		return translate(err)
	}

	u.ID = m.ID.String()
	u.CreatedAt, u.UpdatedAt = m.CreatedAt.UTC(), m.UpdatedAt.UTC()
	u.CreatedBy, u.UpdatedBy = actor, actor
	return nil
}

func (r *Users) FindByID(ctx context.Context, id string) (*authcore.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, authcore.ErrRecordNotFound
	}
	return r.first(ctx, "id = ?", uid)
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(email))
}

func (r *Users) FindBySocialID(ctx context.Context, provider authcore.Provider, socialID string) (*authcore.User, error) {
	return r.first(ctx, "provider = ? AND social_id = ?", string(provider), socialID)
}

// Update writes every mutable column and replaces the role set.
func (r *Users) Update(ctx context.Context, u *authcore.User) error {
	uid, err := uuid.Parse(u.ID)
	if err != nil {
		return authcore.ErrRecordNotFound
	}
	actor := authcore.CallerIDFromContext(ctx)

	var saved userModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&saved, "id = ?", uid).Error; err != nil {
			return err
		}
		err := tx.Model(&saved).Updates(map[string]any{
			"email":      optional(strings.ToLower(u.Email)),
			"password":   u.Password,
			"provider":   string(u.Provider),
			"social_id":  optional(u.SocialID),
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"status":     string(u.Status),
			"updated_by": actor,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&saved).Omit("Roles.*").Association("Roles").Replace(roleRefs(u.Roles))
	})
	if err != nil {
		return translate(err)
	}

	u.CreatedAt, u.CreatedBy = saved.CreatedAt.UTC(), saved.CreatedBy
	u.UpdatedAt, u.UpdatedBy = saved.UpdatedAt.UTC(), actor
	return nil
}

func (r *Users) first(ctx context.Context, query string, args ...any) (*authcore.User, error) {
	var m userModel
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where(query, args...).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.domain(), nil
}
