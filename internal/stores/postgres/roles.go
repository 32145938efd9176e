package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/formwise/authcore"
)

// Roles implements authcore.RoleRepository.
type Roles struct {
	db *gorm.DB
}

func NewRoles(db *gorm.DB) *Roles {
	return &Roles{db: db}
}

func (r *Roles) Create(ctx context.Context, role *authcore.Role) error {
	actor := authcore.CallerIDFromContext(ctx)
	m := roleModel{
		Name:        role.Name,
		Description: role.Description,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	*role = m.domain()
	return nil
}

func (r *Roles) FindByID(ctx context.Context, id string) (*authcore.Role, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, authcore.ErrRecordNotFound
	}
	return r.first(ctx, "id = ?", rid)
}

func (r *Roles) FindByName(ctx context.Context, name string) (*authcore.Role, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *Roles) List(ctx context.Context) ([]authcore.Role, error) {
	var ms []roleModel
	if err := r.db.WithContext(ctx).Order("name").Find(&ms).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]authcore.Role, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].domain())
	}
	return out, nil
}

// Update stores the new description. The name column is never written.
func (r *Roles) Update(ctx context.Context, role *authcore.Role) error {
	rid, err := uuid.Parse(role.ID)
	if err != nil {
		return authcore.ErrRecordNotFound
	}
	res := r.db.WithContext(ctx).
		Model(&roleModel{ID: rid}).
		Updates(map[string]any{
			"description": role.Description,
			"updated_by":  authcore.CallerIDFromContext(ctx),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return authcore.ErrRecordNotFound
	}

	saved, err := r.first(ctx, "id = ?", rid)
	if err != nil {
		return err
	}
	*role = *saved
	return nil
}

func (r *Roles) Delete(ctx context.Context, id string) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return authcore.ErrRecordNotFound
	}
	res := r.db.WithContext(ctx).Delete(&roleModel{}, "id = ?", rid)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return authcore.ErrRecordNotFound
	}
	return nil
}

func (r *Roles) first(ctx context.Context, query string, args ...any) (*authcore.Role, error) {
	var m roleModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	role := m.domain()
	return &role, nil
}

var (
	_ authcore.RoleRepository = (*Roles)(nil)
	_ authcore.UserRepository = (*Users)(nil)
)
