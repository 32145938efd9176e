package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

const (
	fieldUserID    = "user_id"
	fieldHash      = "hash"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// KEYS[1] session key, KEYS[2] user index key
// ARGV[1] session id
const deleteSessionScript = `
local user_id = redis.call("HGET", KEYS[1], "user_id")
if not user_id then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2] .. user_id, ARGV[1])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// KEYS[1] session key
// ARGV[1] expected hash ("" skips the comparison), ARGV[2] next hash,
// ARGV[3] now in unix millis, ARGV[4] ttl in millis (0 keeps the current ttl),
// ARGV[5] user index key prefix, ARGV[6] session id
//
// The user index must live at least as long as any session it lists, so a
// renewed session re-registers itself and stretches the index ttl.
const rotateHashScript = `
local data = redis.call("HMGET", KEYS[1], "user_id", "hash", "created_at")
if not data[1] then
  return {0}
end
if ARGV[1] ~= "" and data[2] ~= ARGV[1] then
  return {2}
end
redis.call("HSET", KEYS[1], "hash", ARGV[2], "updated_at", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
  local index = ARGV[5] .. data[1]
  redis.call("SADD", index, ARGV[6])
  if redis.call("PTTL", index) < ttl then
    redis.call("PEXPIRE", index, ttl)
  end
end
return {3, data[1], data[3] or "0"}
`

var rotateHashLua = redis.NewScript(rotateHashScript)

// KEYS[1] user index key
// ARGV[1] session key prefix, ARGV[2] session id to keep ("" keeps none)
const deleteUserSessionsScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, id in ipairs(ids) do
  if id ~= ARGV[2] then
    deleted = deleted + redis.call("DEL", ARGV[1] .. id)
    redis.call("SREM", KEYS[1], id)
  end
end
return deleted
`

var deleteUserSessionsLua = redis.NewScript(deleteUserSessionsScript)

// RedisStore is a Redis-backed session store. Each session lives in a hash
// keyed by its id and is indexed in a per-user set so that all of a user's
// sessions can be revoked together.
//
// The Lua scripts derive index and session keys from stored values, so the
// store needs a single Redis node (standalone or Sentinel failover). Redis
// Cluster is not supported.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore]. prefix namespaces every key the store
// writes; ttl bounds the lifetime of a session and is renewed on every hash
// rotation. A zero ttl keeps sessions until they are deleted.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "authcore"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) sessionPrefix() string { return s.prefix + ":sess:" }
func (s *RedisStore) userPrefix() string    { return s.prefix + ":usess:" }

func (s *RedisStore) key(sessionID string) string {
	return s.sessionPrefix() + sessionID
}

func (s *RedisStore) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Create persists a new session for userID with a freshly generated hash.
func (s *RedisStore) Create(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session: empty user id")
	}
	hash, err := NewHash()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	sessionKey := s.key(sess.ID)
	userKey := s.userKey(userID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey,
			fieldUserID, userID,
			fieldHash, hash,
			fieldCreatedAt, stamp,
			fieldUpdatedAt, stamp,
		)
		pipe.SAdd(ctx, userKey, sess.ID)
		if s.ttl > 0 {
			pipe.PExpire(ctx, sessionKey, s.ttl)
			pipe.PExpire(ctx, userKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// FindByID loads a session. It returns [ErrNotFound] when the session does not
// exist.
func (s *RedisStore) FindByID(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 || fields[fieldUserID] == "" {
		return nil, ErrNotFound
	}

	return &Session{
		ID:        id,
		UserID:    fields[fieldUserID],
		Hash:      fields[fieldHash],
		CreatedAt: parseMillis(fields[fieldCreatedAt]),
		UpdatedAt: parseMillis(fields[fieldUpdatedAt]),
	}, nil
}

// ExistsByID reports whether the session is live.
func (s *RedisStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// UpdateHash atomically replaces the session hash with newHash, provided the
// stored hash still equals expectedOldHash. An empty expectedOldHash rotates
// unconditionally.
//
// Of several concurrent calls presenting the same expectedOldHash exactly one
// succeeds; the others return [ErrHashMismatch]. A session deleted before the
// script runs yields [ErrNotFound].
func (s *RedisStore) UpdateHash(ctx context.Context, id, expectedOldHash, newHash string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	if newHash == "" {
		return nil, errors.New("session: empty replacement hash")
	}

	now := s.now().UTC()
	res, err := rotateHashLua.Run(
		ctx,
		s.redis,
		[]string{s.key(id)},
		expectedOldHash,
		newHash,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(s.ttl.Milliseconds(), 10),
		s.userPrefix(),
		id,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty rotate result", ErrRedisUnavailable)
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected rotate status %T", ErrRedisUnavailable, res[0])
	}

	switch status {
	case rotateStatusNotFound:
		return nil, ErrNotFound
	case rotateStatusMismatch:
		return nil, ErrHashMismatch
	case rotateStatusRotated:
		if len(res) < 3 {
			return nil, fmt.Errorf("%w: short rotate result", ErrRedisUnavailable)
		}
		userID, _ := res[1].(string)
		created, _ := res[2].(string)
		return &Session{
			ID:        id,
			UserID:    userID,
			Hash:      newHash,
			CreatedAt: parseMillis(created),
			UpdatedAt: now,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate status %d", ErrRedisUnavailable, status)
	}
}

// DeleteByID removes a session. Deleting a missing session is not an error.
func (s *RedisStore) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.userPrefix()}, id).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteByUserID removes every session owned by userID and returns how many
// live sessions were deleted.
func (s *RedisStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	return s.deleteUserSessions(ctx, userID, "")
}

// DeleteByUserIDExcluding removes every session owned by userID except keepID.
func (s *RedisStore) DeleteByUserIDExcluding(ctx context.Context, userID, keepID string) (int, error) {
	return s.deleteUserSessions(ctx, userID, keepID)
}

func (s *RedisStore) deleteUserSessions(ctx context.Context, userID, keepID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	n, err := deleteUserSessionsLua.Run(ctx, s.redis, []string{s.userKey(userID)}, s.sessionPrefix(), keepID).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
