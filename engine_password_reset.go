package authflow

import (
	"context"
	"errors"
	"fmt"
)

// ForgotPassword mails a reset link when the email belongs to an account.
// Unknown addresses are acknowledged with success so the endpoint cannot
// be used to probe which emails exist.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if e.sender == nil {
		return ErrEngineNotReady
	}
	if email == "" {
		return ErrValidationFailed
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditResetRequested, true, "", nil, map[string]string{"reason": "unknown_email"})
			return nil
		}
		e.emitAudit(ctx, auditStoreFailure, false, "", err, map[string]string{"op": "get_user_by_email"})
		return fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	token, err := e.store.CreatePasswordResetToken(ctx, user.ID)
	if err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "create_reset_token"})
		return fmt.Errorf("%w: reset token failed", ErrStoreUnavailable)
	}

	body := actionMailBody("Please reset your password by clicking", e.config.Mail.PasswordResetURL, user.ID, token)
	if err := e.sender.Send(ctx, user.Email, "Reset Your Password", body); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "send_reset_mail"})
		return fmt.Errorf("%w: mail delivery failed", ErrStoreUnavailable)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditResetRequested, true, user.ID, nil, nil)
	return nil
}

// ResetPassword consumes the store's opaque reset token and replaces the
// password hash. Active refresh tokens are left untouched: a session
// started before the reset stays valid until its own refresh expiry.
func (e *Engine) ResetPassword(ctx context.Context, token, userID, newPassword, confirmPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if token == "" || userID == "" || newPassword == "" {
		return ErrValidationFailed
	}
	if newPassword != confirmPassword {
		return ErrValidationFailed
	}

	if _, err := e.getUser(ctx, userID); err != nil {
		return err
	}

	if err := e.store.ConsumePasswordResetToken(ctx, userID, token); err != nil {
		e.emitAudit(ctx, auditPasswordReset, false, userID, nil, map[string]string{"reason": "reset_token"})
		return ErrInvalidToken
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrValidationFailed
	}
	if err := e.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, userID, err, map[string]string{"op": "update_password_hash"})
		return fmt.Errorf("%w: password update failed", ErrStoreUnavailable)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditPasswordReset, true, userID, nil, nil)
	return nil
}
