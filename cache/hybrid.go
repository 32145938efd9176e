package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultTTL       = 60 * time.Second
	defaultMaxItems  = 1000
	defaultNamespace = "authcore:cache:"
	resetScanCount   = 100
)

// Tier names reported to an [Observer].
const (
	TierLocal  = "local"
	TierShared = "shared"
)

// Config tunes a [Hybrid].
type Config struct {
	// TTL is the default entry lifetime and the upper bound for entries in the
	// local tier.
	TTL time.Duration
	// MaxItems caps the local tier.
	MaxItems int
	// Namespace prefixes every shared-tier key. Reset deletes only keys under it.
	Namespace string
}

// Observer receives cache events. authcore.Metrics implements it.
type Observer interface {
	CacheHit(tier string)
	CacheMiss()
	CacheSharedFailure(op string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)           {}
func (nopObserver) CacheMiss()                {}
func (nopObserver) CacheSharedFailure(string) {}

// Store is the read/write surface used by callers that only memoize.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	LocalHits    int64
	SharedHits   int64
	Misses       int64
	SharedErrors int64
	Items        int
}

// Hybrid is a local LRU tier in front of an optional shared Redis tier.
type Hybrid struct {
	cfg      Config
	local    *lru.LRU[string, entry]
	shared   redis.UniversalClient
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	localHits    atomic.Int64
	sharedHits   atomic.Int64
	misses       atomic.Int64
	sharedErrors atomic.Int64
}

var _ Store = (*Hybrid)(nil)

// Option customizes a [Hybrid].
type Option func(*Hybrid)

// WithLogger sets the logger used for shared-tier failures.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hybrid) { h.log = l }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(h *Hybrid) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithClock overrides the time source used for per-entry expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Hybrid) {
		if now != nil {
			h.now = now
		}
	}
}

// New builds a [Hybrid]. A nil shared client yields a local-only cache.
func New(cfg Config, shared redis.UniversalClient, opts ...Option) *Hybrid {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultMaxItems
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}

	h := &Hybrid{
		cfg:      cfg,
		local:    lru.NewLRU[string, entry](cfg.MaxItems, nil, cfg.TTL),
		shared:   shared,
		log:      zerolog.Nop(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hybrid) sharedKey(key string) string {
	return h.cfg.Namespace + key
}

// Get looks key up in the local tier, then in the shared tier. A shared hit is
// copied into the local tier with the default TTL. The boolean reports a hit;
// an error is returned only when a hit cannot be decoded into dst.
func (h *Hybrid) Get(ctx context.Context, key string, dst any) (bool, error) {
	if e, ok := h.local.Get(key); ok {
		if e.expiresAt.IsZero() || h.now().Before(e.expiresAt) {
			if err := json.Unmarshal(e.data, dst); err != nil {
				return false, fmt.Errorf("cache: decode %q: %w", key, err)
			}
			h.localHits.Add(1)
			h.observer.CacheHit(TierLocal)
			return true, nil
		}
		h.local.Remove(key)
	}

	if h.shared == nil {
		h.miss()
		return false, nil
	}

	data, err := h.shared.Get(ctx, h.sharedKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.sharedFailure("get", key, err)
		}
		h.miss()
		return false, nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}

	h.local.Add(key, entry{data: data, expiresAt: h.now().Add(h.cfg.TTL)})
	h.sharedHits.Add(1)
	h.observer.CacheHit(TierShared)
	return true, nil
}

// Set stores value under key. ttl <= 0 selects the default TTL. The local
// write always happens; a shared-tier failure is logged and swallowed.
func (h *Hybrid) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = h.cfg.TTL
	}

	h.local.Add(key, entry{data: data, expiresAt: h.now().Add(ttl)})

	if h.shared != nil {
		if err := h.shared.Set(ctx, h.sharedKey(key), data, ttl).Err(); err != nil {
			h.sharedFailure("set", key, err)
		}
	}
	return nil
}

// Del removes keys from both tiers.
func (h *Hybrid) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	shared := make([]string, 0, len(keys))
	for _, k := range keys {
		h.local.Remove(k)
		shared = append(shared, h.sharedKey(k))
	}

	if h.shared != nil {
		if err := h.shared.Del(ctx, shared...).Err(); err != nil {
			h.sharedFailure("del", keys[0], err)
		}
	}
	return nil
}

// Reset purges the local tier and deletes every shared key under the cache
// namespace. Other Redis data is left untouched.
func (h *Hybrid) Reset(ctx context.Context) error {
	h.local.Purge()
	if h.shared == nil {
		return nil
	}

	iter := h.shared.Scan(ctx, 0, h.cfg.Namespace+"*", resetScanCount).Iterator()
	batch := make([]string, 0, resetScanCount)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := h.shared.Del(ctx, batch...).Err(); err != nil {
			h.sharedFailure("reset", batch[0], err)
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == resetScanCount {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		h.sharedFailure("reset", h.cfg.Namespace, err)
	}
	return nil
}

// Stats returns counters since construction.
func (h *Hybrid) Stats() Stats {
	return Stats{
		LocalHits:    h.localHits.Load(),
		SharedHits:   h.sharedHits.Load(),
		Misses:       h.misses.Load(),
		SharedErrors: h.sharedErrors.Load(),
		Items:        h.local.Len(),
	}
}

// DefaultTTL reports the configured default entry lifetime.
func (h *Hybrid) DefaultTTL() time.Duration { return h.cfg.TTL }

func (h *Hybrid) miss() {
	h.misses.Add(1)
	h.observer.CacheMiss()
}

func (h *Hybrid) sharedFailure(op, key string, err error) {
	h.sharedErrors.Add(1)
	h.observer.CacheSharedFailure(op)
	h.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("shared cache tier unavailable")
}
