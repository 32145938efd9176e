package authcore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/internal/seed"
	"github.com/formwise/authcore/internal/stores/memory"
	"github.com/formwise/authcore/password"
)

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *captureMailer) SendConfirmEmail(_ context.Context, to, token string) error {
	return m.record("confirm", to, token)
}

func (m *captureMailer) SendConfirmNewEmail(_ context.Context, to, token string) error {
	return m.record("confirm-new", to, token)
}

func (m *captureMailer) SendResetPassword(_ context.Context, to, token string, _ time.Time) error {
	return m.record("reset", to, token)
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	engine *authcore.Engine
	users  *memory.Users
	roles  *memory.Roles
	mailer *captureMailer
	redis  *miniredis.Miniredis
	hasher *password.Bcrypt
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Auth.JWTSecret = "access-secret-for-tests"
	cfg.Auth.RefreshSecret = "refresh-secret-for-tests"
	cfg.Auth.ConfirmEmailSecret = "confirm-secret-for-tests"
	cfg.Auth.ForgotSecret = "forgot-secret-for-tests"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.LoginMaxAttempts = 3
	cfg.Audit.Enabled = false
	return cfg
}

type envOption func(*authcore.Builder)

func newTestEnv(t testing.TB, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}

	env := &testEnv{
		users:  memory.NewUsers(),
		roles:  memory.NewRoles(),
		mailer: &captureMailer{},
		redis:  mr,
		hasher: hasher,
	}
	if err := seed.Run(context.Background(), env.users, env.roles, hasher, zerolog.Nop()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b := authcore.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserRepository(env.users).
		WithRoleRepository(env.roles).
		WithPasswordHasher(hasher).
		WithMailer(env.mailer)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) login(t testing.TB, email, pass string) *authcore.LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), email, pass)
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return res
}
