package authflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/halvex/authflow/internal"
)

// Login verifies email and password, enforces lockout policy and either
// returns a session token pair or, when the account has the second factor
// enabled, a purpose token bridging to [Engine.VerifyTwoFactor]. In the
// latter case no session tokens exist yet.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.verifyCredentials(ctx, email, pw)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled {
		token, err := e.purpose.Issue(user.ID, PurposeTwoFactor)
		if err != nil {
			e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "purpose_issue"})
			return nil, fmt.Errorf("%w: signing failed", ErrStoreUnavailable)
		}
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditTwoFactorRequired, true, user.ID, nil, nil)
		return &LoginResult{
			RequiresTwoFactor: true,
			SubjectID:         user.ID,
			PurposeToken:      token,
		}, nil
	}

	pair, err := e.completeLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, true, user.ID, nil, nil)
	return &LoginResult{TokenPair: pair}, nil
}

// VerifyTwoFactor completes a login whose password step already succeeded.
// The purpose token must carry the two-factor purpose and be inside its
// window; the code must match the account's authenticator key.
func (e *Engine) VerifyTwoFactor(ctx context.Context, purposeToken, code string) (*SessionTokenPair, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	subjectID, jti, err := e.purpose.Validate(purposeToken, PurposeTwoFactor)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditTwoFactorFailure, false, "", err, map[string]string{"reason": "purpose_token"})
		return nil, ErrInvalidToken
	}

	if e.guard != nil {
		fresh, gerr := e.guard.Consume(ctx, jti, e.config.Purpose.TTL)
		if gerr != nil {
			e.emitAudit(ctx, auditStoreFailure, false, subjectID, gerr, map[string]string{"op": "replay_guard"})
			return nil, gerr
		}
		if !fresh {
			e.metricInc(MetricPurposeReplayBlocked)
			e.emitAudit(ctx, auditTwoFactorFailure, false, subjectID, nil, map[string]string{"reason": "replay"})
			return nil, ErrInvalidToken
		}
	}

	user, err := e.store.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		e.emitAudit(ctx, auditStoreFailure, false, subjectID, err, map[string]string{"op": "get_user"})
		return nil, fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	ok, err := e.totp.VerifyCode(user.AuthenticatorKey, code, e.clock.Now())
	if err != nil || !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditTwoFactorFailure, false, user.ID, err, map[string]string{"reason": "code"})
		return nil, ErrInvalidCredentials
	}

	pair, err := e.completeLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricTwoFactorSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditTwoFactorSuccess, true, user.ID, nil, nil)
	return pair, nil
}

// verifyCredentials runs the password, email-confirmation and lockout
// checks, in that order. Reordering them changes what a caller can learn
// about an account from the returned error, so the order is part of the
// contract.
func (e *Engine) verifyCredentials(ctx context.Context, email, pw string) (UserRecord, error) {
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same error value as a wrong password: an unknown email must
			// be indistinguishable from a bad guess.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditLoginFailure, false, "", nil, map[string]string{"reason": "unknown_email"})
			return UserRecord{}, ErrInvalidCredentials
		}
		e.emitAudit(ctx, auditStoreFailure, false, "", err, map[string]string{"op": "get_user_by_email"})
		return UserRecord{}, fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	ok, err := e.hasher.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		count := user.FailedAccessCount + 1
		lockoutEnd := user.LockoutEnd
		if count >= e.config.Credentials.MaxFailedAttempts {
			lockoutEnd = e.clock.Now().Add(e.config.Credentials.LockoutWindow)
		}
		if uerr := e.store.UpdateFailedAccess(ctx, user.ID, count, lockoutEnd); uerr != nil {
			e.emitAudit(ctx, auditStoreFailure, false, user.ID, uerr, map[string]string{"op": "update_failed_access"})
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, false, user.ID, nil, map[string]string{"reason": "wrong_password"})
		return UserRecord{}, ErrInvalidCredentials
	}

	if !user.EmailConfirmed {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, false, user.ID, nil, map[string]string{"reason": "email_not_confirmed"})
		return UserRecord{}, ErrEmailNotConfirmed
	}

	if user.LockoutEnabled && e.clock.Now().Before(user.LockoutEnd) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditLoginLocked, false, user.ID, nil, nil)
		return UserRecord{}, ErrAccountLocked
	}

	return user, nil
}

// completeLogin resets the failed-attempt counter and issues a fresh token
// pair with a new absolute refresh expiry. The counter reset happens only
// here, after any second-factor step has passed as well.
func (e *Engine) completeLogin(ctx context.Context, user UserRecord) (*SessionTokenPair, error) {
	if user.FailedAccessCount != 0 {
		if err := e.store.UpdateFailedAccess(ctx, user.ID, 0, time.Time{}); err != nil {
			e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "reset_failed_access"})
			return nil, fmt.Errorf("%w: counter reset failed", ErrStoreUnavailable)
		}
	}
	return e.issuePair(ctx, user, e.clock.Now().Add(e.config.Session.RefreshTTL))
}

// issuePair signs a new access token and generates a new opaque refresh
// token, persisting the refresh token with the given expiry. Whatever
// refresh token the record held before is overwritten and thereby
// invalidated; there is never more than one live refresh token per user.
func (e *Engine) issuePair(ctx context.Context, user UserRecord, refreshExpiry time.Time) (*SessionTokenPair, error) {
	access, accessExpiry, err := e.access.Issue(user.ID, user.Roles)
	if err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "access_sign"})
		return nil, fmt.Errorf("%w: signing failed", ErrStoreUnavailable)
	}

	refresh, err := internal.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: entropy unavailable", ErrStoreUnavailable)
	}

	if err := e.store.SetRefreshToken(ctx, user.ID, refresh, refreshExpiry); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "set_refresh_token"})
		return nil, fmt.Errorf("%w: refresh token persist failed", ErrStoreUnavailable)
	}

	return &SessionTokenPair{
		AccessToken:       access,
		RefreshToken:      refresh,
		AccessTokenExpiry: accessExpiry,
	}, nil
}

func refreshTokenEqual(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
