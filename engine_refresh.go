package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Refresh rotates a session. The presented access token may be expired;
// its signature, algorithm, issuer and audience are still verified to
// recover the subject. The presented refresh token must equal the stored
// one and the stored expiry must lie in the future. The new refresh token
// keeps the ORIGINAL expiry: rotation never extends the absolute session
// lifetime set at login.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionTokenPair, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.access.ParseExpired(accessToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefreshFailure, false, "", err, map[string]string{"reason": "access_token"})
		return nil, ErrInvalidToken
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditRefreshFailure, false, claims.Subject, nil, map[string]string{"reason": "unknown_subject"})
			return nil, ErrInvalidToken
		}
		e.emitAudit(ctx, auditStoreFailure, false, claims.Subject, err, map[string]string{"op": "get_user"})
		return nil, fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	if user.RefreshToken == "" ||
		!refreshTokenEqual(user.RefreshToken, refreshToken) ||
		!user.RefreshTokenExpiry.After(e.clock.Now()) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditRefreshFailure, false, user.ID, nil, map[string]string{"reason": "refresh_token"})
		return nil, ErrInvalidToken
	}

	pair, err := e.issuePair(ctx, user, user.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefreshSuccess, true, user.ID, nil, nil)
	return pair, nil
}

// Logout revokes the subject's refresh token: the stored value is cleared
// and the expiry pinned to the Unix epoch, so any previously issued
// refresh token is permanently unusable.
func (e *Engine) Logout(ctx context.Context, subjectID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if _, err := e.store.GetUserByID(ctx, subjectID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		e.emitAudit(ctx, auditStoreFailure, false, subjectID, err, map[string]string{"op": "get_user"})
		return fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	if err := e.store.SetRefreshToken(ctx, subjectID, "", time.Unix(0, 0).UTC()); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, subjectID, err, map[string]string{"op": "revoke_refresh_token"})
		return fmt.Errorf("%w: revoke failed", ErrStoreUnavailable)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditLogout, true, subjectID, nil, nil)
	return nil
}
