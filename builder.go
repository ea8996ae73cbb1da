package authflow

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/halvex/authflow/jwt"
	"github.com/halvex/authflow/password"
)

// DefaultConfig returns the engine defaults: 15m access tokens, 7d
// absolute refresh lifetime, 60s purpose tokens, 3 failed attempts before
// a 10m lockout, RFC 6238 SHA1/6/30 TOTP. Signing secrets and the TOTP
// issuer must still be filled in by the host.
func DefaultConfig() Config {
	return defaultConfig()
}

// Builder assembles an [Engine]. A [UserStore] is mandatory; the email
// sender, Redis client, audit sink and clock are optional collaborators.
type Builder struct {
	config Config
	store  UserStore
	sender EmailSender
	clock  Clock
	sink   AuditSink
	redis  *redis.Client
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserStore sets the host's user record store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithEmailSender sets the mail delivery collaborator used by sign-up,
// email confirmation and password reset.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.sender = sender
	return b
}

// WithClock overrides the time source. Tests use this to walk tokens over
// their expiry boundaries deterministically.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink sets the destination for security events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithRedis supplies the client backing the optional purpose-token replay
// guard.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// Build validates the configuration, constructs every component once and
// returns the engine. The configuration is not consulted again afterwards.
func (b *Builder) Build() (*Engine, error) {
	if b.store == nil {
		return nil, errors.New("user store is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.config.ReplayGuard.Enabled && b.redis == nil {
		return nil, errors.New("replay guard requires a redis client")
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	access, err := jwt.NewManager(jwt.Config{
		Secret:    b.config.Session.SigningSecret,
		Issuer:    b.config.Session.Issuer,
		Audience:  b.config.Session.Audience,
		AccessTTL: b.config.Session.AccessTTL,
		Now:       clock.Now,
	})
	if err != nil {
		return nil, err
	}

	purpose, err := jwt.NewPurposeManager(jwt.PurposeConfig{
		Secret:   b.config.Purpose.SigningSecret,
		Issuer:   b.config.Session.Issuer,
		Audience: b.config.Session.Audience,
		TTL:      b.config.Purpose.TTL,
		Now:      clock.Now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  b.config,
		store:   b.store,
		sender:  b.sender,
		clock:   clock,
		hasher:  hasher,
		totp:    newTOTPManager(b.config.TOTP),
		access:  access,
		purpose: purpose,
		audit:   newAuditDispatcher(b.config.Audit, b.sink),
		metrics: newMetrics(b.config.Metrics),
	}
	if b.config.ReplayGuard.Enabled {
		engine.guard = newReplayGuard(b.redis, b.config.ReplayGuard.KeyPrefix)
	}
	return engine, nil
}
