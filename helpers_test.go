package authflow

import (
	"context"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/halvex/authflow/password"
)

const (
	testEmail    = "a@b.com"
	testPassword = "correctPw-123456"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type captureSender struct {
	mu    sync.Mutex
	mails []sentMail
	fail  bool
}

func (s *captureSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("smtp down")
	}
	s.mails = append(s.mails, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mails)
}

type memoryUserStore struct {
	mu     sync.Mutex
	users  map[string]*UserRecord
	emails map[string]string
	tokens map[string]string // id -> outstanding confirm/reset token
	nextID int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:  map[string]*UserRecord{},
		emails: map[string]string{},
		tokens: map[string]string{},
	}
}

func (s *memoryUserStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return *s.users[id], nil
}

func (s *memoryUserStore) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return *u, nil
}

func (s *memoryUserStore) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := &UserRecord{
		ID:             fmt.Sprintf("u%d", s.nextID),
		Email:          in.Email,
		PasswordHash:   in.PasswordHash,
		Roles:          in.Roles,
		LockoutEnabled: in.LockoutEnabled,
	}
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return *u, nil
}

func (s *memoryUserStore) UpdateFailedAccess(_ context.Context, id string, count int, end time.Time) error {
	return s.update(id, func(u *UserRecord) { u.FailedAccessCount = count; u.LockoutEnd = end })
}

func (s *memoryUserStore) SetRefreshToken(_ context.Context, id, token string, expiry time.Time) error {
	return s.update(id, func(u *UserRecord) { u.RefreshToken = token; u.RefreshTokenExpiry = expiry })
}

func (s *memoryUserStore) SetAuthenticatorKey(_ context.Context, id string, key []byte) error {
	return s.update(id, func(u *UserRecord) { u.AuthenticatorKey = key })
}

func (s *memoryUserStore) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	return s.update(id, func(u *UserRecord) { u.TwoFactorEnabled = enabled })
}

func (s *memoryUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(u *UserRecord) { u.PasswordHash = hash })
}

func (s *memoryUserStore) CreateEmailConfirmToken(_ context.Context, id string) (string, error) {
	return s.issueToken(id)
}

func (s *memoryUserStore) ConsumeEmailConfirmToken(_ context.Context, id, token string) error {
	if err := s.consumeToken(id, token); err != nil {
		return err
	}
	return s.update(id, func(u *UserRecord) { u.EmailConfirmed = true })
}

func (s *memoryUserStore) CreatePasswordResetToken(_ context.Context, id string) (string, error) {
	return s.issueToken(id)
}

func (s *memoryUserStore) ConsumePasswordResetToken(_ context.Context, id, token string) error {
	return s.consumeToken(id, token)
}

func (s *memoryUserStore) update(id string, fn func(*UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (s *memoryUserStore) issueToken(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := fmt.Sprintf("tok-%s-%d", id, len(s.tokens)+1)
	s.tokens[id] = token
	return token, nil
}

func (s *memoryUserStore) consumeToken(id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || s.tokens[id] != token {
		return fmt.Errorf("token mismatch")
	}
	delete(s.tokens, id)
	return nil
}

func (s *memoryUserStore) record(t *testing.T, id string) UserRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		t.Fatalf("no user %s in store", id)
	}
	return *u
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Session.SigningSecret = []byte("test-session-secret-0123456789abcdef")
	cfg.Purpose.SigningSecret = []byte("test-purpose-secret-0123456789abcdef")
	cfg.Session.Issuer = "authflow-test"
	cfg.Session.Audience = "authflow-test-clients"
	cfg.TOTP.Issuer = "authflow"
	// small argon2 cost keeps the suite fast
	cfg.Password = PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *memoryUserStore, *fakeClock, *captureSender) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := newMemoryUserStore()
	clock := newFakeClock()
	sender := &captureSender{}

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithEmailSender(sender).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, store, clock, sender
}

// seedUser creates a confirmed account with the default test password and
// returns its id.
func seedUser(t *testing.T, store *memoryUserStore) string {
	t.Helper()

	hasher, err := password.NewHasher(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := store.CreateUser(context.Background(), CreateUserInput{
		Email:          testEmail,
		PasswordHash:   hash,
		Roles:          []string{"user", "editor"},
		LockoutEnabled: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.update(user.ID, func(u *UserRecord) { u.EmailConfirmed = true }); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return user.ID
}

// enableTwoFactor runs the full setup round trip for the user.
func enableTwoFactor(t *testing.T, engine *Engine, clock *fakeClock, subjectID string) string {
	t.Helper()

	setup, err := engine.SetupMFA(context.Background(), subjectID)
	if err != nil {
		t.Fatalf("SetupMFA: %v", err)
	}
	code := codeAt(t, setup.Secret, engine.config.TOTP, clock.Now())
	if err := engine.ConfirmMFASetup(context.Background(), subjectID, code); err != nil {
		t.Fatalf("ConfirmMFASetup: %v", err)
	}
	return setup.Secret
}

// codeAt computes the expected TOTP code for the base32 secret at a time.
func codeAt(t *testing.T, secretBase32 string, cfg TOTPConfig, at time.Time) string {
	t.Helper()

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secretBase32))
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	code, err := hotpCode(key, at.Unix()/int64(cfg.Period), cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	return code
}
