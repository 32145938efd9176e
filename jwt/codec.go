package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// malformed input, expiry, wrong purpose, or missing required claims.
var ErrInvalidToken = errors.New("invalid token")

// Purpose holds the signing secret and lifetime of one token family.
type Purpose struct {
	Secret []byte
	TTL    time.Duration
}

// Config groups the per-purpose settings of a [Codec].
type Config struct {
	Access       Purpose
	Refresh      Purpose
	ConfirmEmail Purpose
	Forgot       Purpose
	Leeway       time.Duration
}

// Codec is stateless and safe for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// Option customizes a [Codec].
type Option func(*Codec)

// WithNowTime overrides the clock used for iat/exp and verification.
func WithNowTime(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec validates cfg and returns a [Codec]. All four secrets must be set
// and pairwise distinct.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	purposes := []struct {
		name string
		p    Purpose
	}{
		{"access", cfg.Access},
		{"refresh", cfg.Refresh},
		{"confirm email", cfg.ConfirmEmail},
		{"forgot password", cfg.Forgot},
	}

	seen := make(map[string]string, len(purposes))
	for _, item := range purposes {
		if len(item.p.Secret) == 0 {
			return nil, errors.New("jwt: " + item.name + " secret is required")
		}
		if item.p.TTL <= 0 {
			return nil, errors.New("jwt: " + item.name + " ttl must be positive")
		}
		if other, dup := seen[string(item.p.Secret)]; dup {
			return nil, errors.New("jwt: " + item.name + " secret must differ from " + other + " secret")
		}
		seen[string(item.p.Secret)] = item.name
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}

	c := &Codec{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.Access.TTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.Refresh.TTL }

func (c *Codec) registered(ttl time.Duration) (jwt.RegisteredClaims, time.Time) {
	now := c.now()
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}, exp
}

func (c *Codec) sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
