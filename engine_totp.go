package authflow

import (
	"context"
	"errors"
	"fmt"
)

// SetupMFA provisions a new authenticator key for the subject and returns
// the base32 secret, the otpauth:// URI and a QR PNG of it. Provisioning
// overwrites any earlier, never-confirmed key. It is refused once the
// second factor is enabled.
func (e *Engine) SetupMFA(ctx context.Context, subjectID string) (*MFASetup, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.getUser(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrOperationNotAllowed
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: entropy unavailable", ErrStoreUnavailable)
	}
	if err := e.store.SetAuthenticatorKey(ctx, user.ID, raw); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "set_authenticator_key"})
		return nil, fmt.Errorf("%w: key persist failed", ErrStoreUnavailable)
	}

	uri := e.totp.ProvisionURI(encoded, user.Email)
	png, err := e.totp.QRCode(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: qr render failed", ErrStoreUnavailable)
	}

	e.emitAudit(ctx, auditMFASetup, true, user.ID, nil, nil)
	return &MFASetup{Secret: encoded, URI: uri, QRCode: png}, nil
}

// ConfirmMFASetup validates a code computed from the freshly provisioned
// key and, on success, turns the second factor on for the account. A wrong
// code fails with [ErrValidationFailed]; an account that already has the
// second factor enabled fails with [ErrOperationNotAllowed].
func (e *Engine) ConfirmMFASetup(ctx context.Context, subjectID, code string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	user, err := e.getUser(ctx, subjectID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrOperationNotAllowed
	}
	if len(user.AuthenticatorKey) == 0 {
		return ErrOperationNotAllowed
	}

	ok, err := e.totp.VerifyCode(user.AuthenticatorKey, code, e.clock.Now())
	if err != nil || !ok {
		e.emitAudit(ctx, auditTwoFactorFailure, false, user.ID, err, map[string]string{"reason": "setup_code"})
		return ErrValidationFailed
	}

	if err := e.store.SetTwoFactorEnabled(ctx, user.ID, true); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "enable_two_factor"})
		return fmt.Errorf("%w: enable failed", ErrStoreUnavailable)
	}

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, auditMFAEnabled, true, user.ID, nil, nil)
	return nil
}

func (e *Engine) getUser(ctx context.Context, subjectID string) (UserRecord, error) {
	user, err := e.store.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		e.emitAudit(ctx, auditStoreFailure, false, subjectID, err, map[string]string{"op": "get_user"})
		return UserRecord{}, fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}
	return user, nil
}
