package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It satisfies the same contract
// as [RedisStore] and is meant for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	byUser   map[string]map[string]struct{}
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption customizes a [MemoryStore].
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, mainly for expiry tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty [MemoryStore]. A zero ttl keeps sessions
// until deleted.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		byUser:   make(map[string]map[string]struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session: empty user id")
	}
	hash, err := NewHash()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = &memoryEntry{sess: sess, expiresAt: s.expiry(now)}
	ids, ok := s.byUser[userID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[userID] = ids
	}
	ids[sess.ID] = struct{}{}

	out := sess
	return &out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrNotFound
	}
	out := entry.sess
	return &out, nil
}

func (s *MemoryStore) ExistsByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(id)
	return ok, nil
}

func (s *MemoryStore) UpdateHash(_ context.Context, id, expectedOldHash, newHash string) (*Session, error) {
	if newHash == "" {
		return nil, errors.New("session: empty replacement hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrNotFound
	}
	if expectedOldHash != "" && entry.sess.Hash != expectedOldHash {
		return nil, ErrHashMismatch
	}

	now := s.now().UTC()
	entry.sess.Hash = newHash
	entry.sess.UpdatedAt = now
	entry.expiresAt = s.expiry(now)

	out := entry.sess
	return &out, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
	return nil
}

func (s *MemoryStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	return s.DeleteByUserIDExcluding(ctx, userID, "")
}

func (s *MemoryStore) DeleteByUserIDExcluding(_ context.Context, userID, keepID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id := range s.byUser[userID] {
		if id == keepID {
			continue
		}
		if _, live := s.liveLocked(id); live {
			deleted++
		}
		s.removeLocked(id)
	}
	return deleted, nil
}

func (s *MemoryStore) expiry(from time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return from.Add(s.ttl)
}

func (s *MemoryStore) liveLocked(id string) (*memoryEntry, bool) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.removeLocked(id)
		return nil, false
	}
	return entry, true
}

func (s *MemoryStore) removeLocked(id string) {
	entry, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	if ids, ok := s.byUser[entry.sess.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, entry.sess.UserID)
		}
	}
}
