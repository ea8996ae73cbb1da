package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// SignUp creates an account with an unconfirmed email address, hashes the
// password with Argon2id and mails a confirmation link built from the
// store's opaque confirm token. Roles are attached verbatim; the engine
// never interprets them.
func (e *Engine) SignUp(ctx context.Context, email, pw string, roles ...string) (*SignUpResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.sender == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || pw == "" {
		return nil, ErrValidationFailed
	}

	if _, err := e.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditStoreFailure, false, "", err, map[string]string{"op": "get_user_by_email"})
		return nil, fmt.Errorf("%w: user lookup failed", ErrStoreUnavailable)
	}

	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return nil, ErrValidationFailed
	}

	user, err := e.store.CreateUser(ctx, CreateUserInput{
		Email:          email,
		PasswordHash:   hash,
		Roles:          roles,
		LockoutEnabled: true,
	})
	if err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, "", err, map[string]string{"op": "create_user"})
		return nil, fmt.Errorf("%w: user creation failed", ErrStoreUnavailable)
	}

	token, err := e.store.CreateEmailConfirmToken(ctx, user.ID)
	if err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "create_confirm_token"})
		return nil, fmt.Errorf("%w: confirm token failed", ErrStoreUnavailable)
	}

	body := actionMailBody("Please confirm your email by clicking", e.config.Mail.ConfirmEmailURL, user.ID, token)
	if err := e.sender.Send(ctx, user.Email, "Confirm Your Email", body); err != nil {
		e.emitAudit(ctx, auditStoreFailure, false, user.ID, err, map[string]string{"op": "send_confirm_mail"})
		return nil, fmt.Errorf("%w: mail delivery failed", ErrStoreUnavailable)
	}

	e.metricInc(MetricSignUp)
	e.emitAudit(ctx, auditSignUp, true, user.ID, nil, nil)
	return &SignUpResult{ID: user.ID, Email: user.Email}, nil
}

// ConfirmEmail forwards the confirmation token to the store's own token
// mechanism and marks the address confirmed on success.
func (e *Engine) ConfirmEmail(ctx context.Context, userID, token string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if userID == "" || token == "" {
		return ErrValidationFailed
	}

	if _, err := e.getUser(ctx, userID); err != nil {
		return err
	}

	if err := e.store.ConsumeEmailConfirmToken(ctx, userID, token); err != nil {
		e.emitAudit(ctx, auditLoginFailure, false, userID, nil, map[string]string{"reason": "confirm_token"})
		return ErrInvalidToken
	}

	e.emitAudit(ctx, auditEmailConfirmed, true, userID, nil, nil)
	return nil
}

// actionMailBody builds an HTML mail body. With a configured base URL the
// body carries a clickable link; otherwise the bare token, for hosts that
// template their own mail.
func actionMailBody(prompt, baseURL, userID, token string) string {
	if baseURL == "" {
		return fmt.Sprintf("%s. Your code: %s", prompt, token)
	}
	v := url.Values{}
	v.Set("userId", userID)
	v.Set("token", token)
	link := baseURL + "?" + v.Encode()
	return fmt.Sprintf("%s <a href='%s'>here</a>", prompt, link)
}
