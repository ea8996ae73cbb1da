package authflow

import (
	"errors"
	"time"
)

// Config is the complete engine configuration. It is read once by
// [Builder.Build] and treated as immutable for the process lifetime;
// signing secrets, token lifetimes and lockout policy are never ambient
// state.
type Config struct {
	Session     SessionConfig
	Purpose     PurposeConfig
	Credentials CredentialsConfig
	TOTP        TOTPConfig
	Password    PasswordConfig
	ReplayGuard ReplayGuardConfig
	Mail        MailConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

// MailConfig holds the frontend URLs that confirmation and reset links
// point at. The engine appends userId and token query parameters. When a
// URL is empty the mail body carries the bare token instead.
type MailConfig struct {
	ConfirmEmailURL  string
	PasswordResetURL string
}

// SessionConfig controls access and refresh token issuance.
type SessionConfig struct {
	// SigningSecret signs access tokens (HS256). Required.
	SigningSecret []byte
	Issuer        string
	Audience      string
	// AccessTTL is the access-token lifetime. Default 15 minutes.
	AccessTTL time.Duration
	// RefreshTTL is the absolute session lifetime, set once at first
	// issuance and never extended by rotation. Default 7 days.
	RefreshTTL time.Duration
}

// PurposeConfig controls the short-lived single-purpose tokens that bridge
// the password step and the 2FA step without server-side session state.
type PurposeConfig struct {
	// SigningSecret must differ from the session secret so a leak of one
	// key does not compromise the other token class. Required.
	SigningSecret []byte
	// TTL is deliberately short; the default 60 seconds covers only the
	// immediate login-to-2FA round trip.
	TTL time.Duration
}

// CredentialsConfig controls failed-attempt tracking and lockout.
type CredentialsConfig struct {
	// MaxFailedAttempts is the counter value at which the lockout window
	// opens. Default 3.
	MaxFailedAttempts int
	// LockoutWindow is how long the account stays locked. Default 10 minutes.
	LockoutWindow time.Duration
}

// TOTPConfig controls the authenticator second factor.
type TOTPConfig struct {
	// Issuer is the label shown in authenticator apps. Required when any
	// MFA operation is used.
	Issuer    string
	Digits    int    // default 6
	Period    int    // seconds, default 30
	Algorithm string // SHA1 (default), SHA256 or SHA512
	// Skew is the accepted clock drift in time steps on either side.
	// Default 1.
	Skew int
	// QRCodeSize is the pixel edge of the provisioning image. Default 256.
	QRCodeSize int
}

// PasswordConfig holds the Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory      uint32 // KiB, default 64*1024
	Time        uint32 // default 3
	Parallelism uint8  // default 2
	SaltLength  uint32 // default 16
	KeyLength   uint32 // default 32
}

// ReplayGuardConfig enables the optional consumed-purpose-token cache.
// Without it a captured purpose token stays usable for its full window;
// with a Redis client supplied to the builder, each jti is accepted once.
type ReplayGuardConfig struct {
	Enabled   bool
	KeyPrefix string // default "afpt"
}

// AuditConfig controls the asynchronous security event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; dropped events are counted.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Purpose: PurposeConfig{
			TTL: 60 * time.Second,
		},
		Credentials: CredentialsConfig{
			MaxFailedAttempts: 3,
			LockoutWindow:     10 * time.Minute,
		},
		TOTP: TOTPConfig{
			Digits:     6,
			Period:     30,
			Algorithm:  "SHA1",
			Skew:       1,
			QRCodeSize: 256,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		ReplayGuard: ReplayGuardConfig{
			KeyPrefix: "afpt",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Session.SigningSecret) < 32 {
		return errors.New("session signing secret must be at least 32 bytes")
	}
	if len(cfg.Purpose.SigningSecret) < 32 {
		return errors.New("purpose signing secret must be at least 32 bytes")
	}
	if string(cfg.Session.SigningSecret) == string(cfg.Purpose.SigningSecret) {
		return errors.New("session and purpose signing secrets must differ")
	}
	if cfg.Session.Issuer == "" || cfg.Session.Audience == "" {
		return errors.New("token issuer and audience are required")
	}
	if cfg.Session.AccessTTL <= 0 || cfg.Session.RefreshTTL <= 0 {
		return errors.New("session TTLs must be positive")
	}
	if cfg.Session.AccessTTL >= cfg.Session.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Purpose.TTL <= 0 || cfg.Purpose.TTL > 5*time.Minute {
		return errors.New("purpose token TTL must be in (0, 5m]")
	}
	if cfg.Credentials.MaxFailedAttempts < 1 {
		return errors.New("max failed attempts must be at least 1")
	}
	if cfg.Credentials.LockoutWindow <= 0 {
		return errors.New("lockout window must be positive")
	}
	if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 8 {
		return errors.New("totp digits must be 6..8")
	}
	if cfg.TOTP.Period < 15 || cfg.TOTP.Period > 120 {
		return errors.New("totp period must be 15..120 seconds")
	}
	if cfg.TOTP.Skew < 0 || cfg.TOTP.Skew > 2 {
		return errors.New("totp skew must be 0..2 steps")
	}
	switch cfg.TOTP.Algorithm {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported totp algorithm")
	}
	if cfg.ReplayGuard.Enabled && cfg.ReplayGuard.KeyPrefix == "" {
		return errors.New("replay guard requires a key prefix")
	}
	return nil
}
