package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formwise/authcore"
)

// Roles is a concurrency-safe authcore.RoleRepository.
type Roles struct {
	mu     sync.RWMutex
	byID   map[string]*authcore.Role
	byName map[string]string
	now    func() time.Time
}

func NewRoles() *Roles {
	return &Roles{
		byID:   make(map[string]*authcore.Role),
		byName: make(map[string]string),
		now:    time.Now,
	}
}

func (r *Roles) Create(ctx context.Context, role *authcore.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[role.Name]; taken {
		return authcore.ErrDuplicate
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	now := r.now().UTC()
	actor := authcore.CallerIDFromContext(ctx)
	role.CreatedAt, role.UpdatedAt = now, now
	role.CreatedBy, role.UpdatedBy = actor, actor

	stored := *role
	r.byID[role.ID] = &stored
	r.byName[role.Name] = role.ID
	return nil
}

func (r *Roles) FindByID(_ context.Context, id string) (*authcore.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.byID[id]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	out := *role
	return &out, nil
}

func (r *Roles) FindByName(_ context.Context, name string) (*authcore.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

// List returns every role ordered by name.
func (r *Roles) List(_ context.Context) ([]authcore.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]authcore.Role, 0, len(r.byID))
	for _, role := range r.byID {
		out = append(out, *role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update stores the new description. The name is kept as created.
func (r *Roles) Update(ctx context.Context, role *authcore.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[role.ID]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	prev.Description = role.Description
	prev.UpdatedAt = r.now().UTC()
	prev.UpdatedBy = authcore.CallerIDFromContext(ctx)
	*role = *prev
	return nil
}

func (r *Roles) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.byID[id]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	delete(r.byID, id)
	delete(r.byName, role.Name)
	return nil
}
