package authflow

import (
	"context"
	"time"
)

// UserRecord is the account record exchanged with the host's [UserStore].
// The engine never mutates a record in place; every change goes through a
// dedicated store method so the host can keep updates single-field atomic.
type UserRecord struct {
	ID                 string
	Email              string
	PasswordHash       string
	EmailConfirmed     bool
	LockoutEnabled     bool
	LockoutEnd         time.Time
	FailedAccessCount  int
	TwoFactorEnabled   bool
	AuthenticatorKey   []byte
	RefreshToken       string
	RefreshTokenExpiry time.Time
	Roles              []string
}

// CreateUserInput is the input for [UserStore.CreateUser]. New accounts
// start with EmailConfirmed=false and TwoFactorEnabled=false.
type CreateUserInput struct {
	Email          string
	PasswordHash   string
	Roles          []string
	LockoutEnabled bool
}

// UserStore is the interface the host application implements to integrate
// the engine with its user database. Lookups return [ErrUserNotFound] when
// no record matches; every other failure is treated as a backend outage.
//
// Mutations are single-field updates with last-writer-wins semantics. The
// engine takes no in-process locks; a lost update under concurrent logins
// or refreshes from the same account is a documented, tolerated risk.
//
// The confirm-email and password-reset token mechanisms are owned by the
// store and opaque to the engine: it only forwards the token strings.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)

	UpdateFailedAccess(ctx context.Context, id string, count int, lockoutEnd time.Time) error
	SetRefreshToken(ctx context.Context, id, token string, expiry time.Time) error
	SetAuthenticatorKey(ctx context.Context, id string, key []byte) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	CreateEmailConfirmToken(ctx context.Context, id string) (string, error)
	ConsumeEmailConfirmToken(ctx context.Context, id, token string) error
	CreatePasswordResetToken(ctx context.Context, id string) (string, error)
	ConsumePasswordResetToken(ctx context.Context, id, token string) error
}

// EmailSender delivers confirmation and reset mail. Implementations decide
// transport and formatting; the engine only supplies subject and an HTML
// body containing the action link.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Clock supplies the current time. Injecting it keeps every token-expiry
// and lockout decision deterministic under test.
type Clock interface {
	Now() time.Time
}

// SessionTokenPair is the final product of a completed login or refresh.
// The refresh token is opaque random material with no embedded structure;
// it is stored verbatim on the user record.
type SessionTokenPair struct {
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
}

// LoginResult is returned by [Engine.Login]. Exactly one of TokenPair or
// the two-factor fields is populated: when RequiresTwoFactor is set, no
// session tokens exist yet and the caller must complete the flow through
// [Engine.VerifyTwoFactor] with the bridging purpose token.
type LoginResult struct {
	TokenPair *SessionTokenPair

	RequiresTwoFactor bool
	SubjectID         string
	PurposeToken      string
}

// MFASetup is returned by [Engine.SetupMFA]. Secret is the base32-encoded
// authenticator key, URI the otpauth:// provisioning string and QRCode the
// same URI rendered as a PNG for scanning.
type MFASetup struct {
	Secret string
	URI    string
	QRCode []byte
}

// SignUpResult is returned by [Engine.SignUp] after the account was created
// and the confirmation mail handed to the sender.
type SignUpResult struct {
	ID    string
	Email string
}
