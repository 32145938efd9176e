package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formwise/authcore"
)

// Users is a concurrency-safe authcore.UserRepository.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*authcore.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *Users) Create(ctx context.Context, u *authcore.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(u.Email)
	if email != "" {
		if _, taken := r.byEmail[email]; taken {
			return authcore.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, taken := r.byID[u.ID]; taken {
		return authcore.ErrDuplicate
	}

	now := r.now().UTC()
	actor := authcore.CallerIDFromContext(ctx)
	u.CreatedAt, u.UpdatedAt = now, now
	u.CreatedBy, u.UpdatedBy = actor, actor

	r.byID[u.ID] = cloneUser(u)
	if email != "" {
		r.byEmail[email] = u.ID
	}
	return nil
}

func (r *Users) FindByID(_ context.Context, id string) (*authcore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*authcore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *Users) FindBySocialID(_ context.Context, provider authcore.Provider, socialID string) (*authcore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.Provider == provider && u.SocialID == socialID {
			return cloneUser(u), nil
		}
	}
	return nil, authcore.ErrRecordNotFound
}

// Update replaces the stored record. Moving to an email held by another
// account fails with authcore.ErrDuplicate.
func (r *Users) Update(ctx context.Context, u *authcore.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[u.ID]
	if !ok {
		return authcore.ErrRecordNotFound
	}

	email := strings.ToLower(u.Email)
	if email != "" {
		if holder, taken := r.byEmail[email]; taken && holder != u.ID {
			return authcore.ErrDuplicate
		}
	}

	u.CreatedAt, u.CreatedBy = prev.CreatedAt, prev.CreatedBy
	u.UpdatedAt = r.now().UTC()
	u.UpdatedBy = authcore.CallerIDFromContext(ctx)

	if old := strings.ToLower(prev.Email); old != "" && old != email {
		delete(r.byEmail, old)
	}
	if email != "" {
		r.byEmail[email] = u.ID
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func cloneUser(u *authcore.User) *authcore.User {
	out := *u
	out.Roles = append([]authcore.Role(nil), u.Roles...)
	return &out
}
