package authflow

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike. Callers must not distinguish the two cases.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed is returned when the password matched but the
	// account's email address has not been confirmed yet.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrAccountLocked is returned while the account's lockout window is open.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken is the single failure value for every token problem:
	// bad signature, wrong purpose, expired, malformed, revoked, replayed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrValidationFailed is returned for rejected input such as a wrong TOTP
	// code during setup or mismatched password-reset fields.
	ErrValidationFailed = errors.New("validation failed")
	// ErrOperationNotAllowed is returned when the account state forbids the
	// operation, e.g. provisioning TOTP while it is already enabled.
	ErrOperationNotAllowed = errors.New("operation not allowed")
	// ErrUserNotFound is returned by operations addressed at a subject id
	// that does not exist. Email-addressed operations never return it.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailAlreadyExists is returned by SignUp for a taken email address.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrStoreUnavailable wraps unexpected user-store or email-delivery
	// failures. Detail goes to the audit stream, never to the caller.
	ErrStoreUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned when the engine was not built correctly.
	ErrEngineNotReady = errors.New("engine not initialized")
)
