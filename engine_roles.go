package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/formwise/authcore/cache"
)

func roleCacheKey(name string) string { return "role:" + name }

// Role returns the role record named name, read through the cache under
// "role:<name>".
func (e *Engine) Role(ctx context.Context, name string) (*Role, error) {
	role, err := cache.GetOrLoad(ctx, e.cache, roleCacheKey(name), 0, func(ctx context.Context) (Role, error) {
		r, err := e.roles.FindByName(ctx, name)
		if err != nil {
			return Role{}, err
		}
		return *r, nil
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, ExternalSystem("load role", err)
	}
	return &role, nil
}

func (e *Engine) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := e.roles.List(ctx)
	if err != nil {
		return nil, ExternalSystem("list roles", err)
	}
	return roles, nil
}

func (e *Engine) GetRole(ctx context.Context, id string) (*Role, error) {
	r, err := e.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, ExternalSystem("find role", err)
	}
	return r, nil
}

// CreateRole adds a role record. The name must be unique; permissions for it
// come from the catalog, so a name the catalog does not know grants nothing.
func (e *Engine) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	var v validator
	v.required("name", name)
	if err := v.err(); err != nil {
		return nil, err
	}

	r := &Role{Name: name, Description: in.Description}
	if err := e.roles.Create(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrConflict.WithMessage("role already exists")
		}
		return nil, ExternalSystem("create role", err)
	}
	e.invalidateRole(ctx, name)
	e.emitAudit(ctx, AuditRoleCreated, true, "", "", nil, map[string]string{"role": name})
	return r, nil
}

// UpdateRole changes the description of a role. Names are immutable.
func (e *Engine) UpdateRole(ctx context.Context, id string, in RoleInput) (*Role, error) {
	r, err := e.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" && in.Name != r.Name {
		return nil, Unprocessable("", FieldError{Code: "immutable", Path: "name", Message: "role name cannot be changed"})
	}

	r.Description = in.Description
	if err := e.roles.Update(ctx, r); err != nil {
		return nil, ExternalSystem("update role", err)
	}
	e.invalidateRole(ctx, r.Name)
	e.emitAudit(ctx, AuditRoleUpdated, true, "", "", nil, map[string]string{"role": r.Name})
	return r, nil
}

func (e *Engine) DeleteRole(ctx context.Context, id string) error {
	r, err := e.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := e.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return ExternalSystem("delete role", err)
	}
	e.invalidateRole(ctx, r.Name)
	e.emitAudit(ctx, AuditRoleDeleted, true, "", "", nil, map[string]string{"role": r.Name})
	return nil
}

// invalidateRole drops the cached role record. The cache degrades on shared
// tier failures, so an error here is only logged.
func (e *Engine) invalidateRole(ctx context.Context, name string) {
	if err := e.cache.Del(ctx, roleCacheKey(name)); err != nil {
		e.log.Warn().Err(err).Str("role", name).Msg("role cache invalidation failed")
	}
}
