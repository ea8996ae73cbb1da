package authflow

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestForgotPasswordAcknowledgesUnknownEmail(t *testing.T) {
	engine, _, _, sender := newTestEngine(t, nil)

	if err := engine.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown email must be acknowledged: %v", err)
	}
	if sender.count() != 0 {
		t.Fatalf("mails sent = %d, want 0", sender.count())
	}
}

func TestForgotPasswordSendsResetMail(t *testing.T) {
	engine, store, _, sender := newTestEngine(t, func(cfg *Config) {
		cfg.Mail.PasswordResetURL = "https://app.example.com/reset"
	})
	seedUser(t, store)

	if err := engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("mails sent = %d, want 1", sender.count())
	}
	mail := sender.mails[0]
	if mail.To != testEmail || !strings.Contains(mail.Subject, "Reset") {
		t.Fatalf("unexpected mail: %+v", mail)
	}
	if !strings.Contains(mail.Body, "https://app.example.com/reset?") {
		t.Fatalf("body has no reset link: %s", mail.Body)
	}
}

func TestResetPasswordRoundTrip(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	if err := engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatal(err)
	}
	token := store.tokens[id]
	if token == "" {
		t.Fatal("no outstanding reset token")
	}

	const newPassword = "brand-new-pw-123"
	if err := engine.ResetPassword(context.Background(), token, id, newPassword, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := engine.Login(context.Background(), testEmail, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := engine.Login(context.Background(), testEmail, newPassword); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestResetPasswordValidation(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	cases := []struct {
		name                     string
		token, user, pw, confirm string
	}{
		{"empty token", "", id, "new-pw-12345678", "new-pw-12345678"},
		{"empty password", "tok", id, "", ""},
		{"mismatched confirm", "tok", id, "new-pw-12345678", "other-pw-123456"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := engine.ResetPassword(context.Background(), tc.token, tc.user, tc.pw, tc.confirm); !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("got %v, want ErrValidationFailed", err)
			}
		})
	}
}

func TestResetPasswordBadToken(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	if err := engine.ResetPassword(context.Background(), "never-issued", id, "new-pw-12345678", "new-pw-12345678"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestResetPasswordTokenIsSingleUse(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	if err := engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatal(err)
	}
	token := store.tokens[id]

	const newPassword = "brand-new-pw-123"
	if err := engine.ResetPassword(context.Background(), token, id, newPassword, newPassword); err != nil {
		t.Fatal(err)
	}
	if err := engine.ResetPassword(context.Background(), token, id, "another-pw-12345", "another-pw-12345"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused token: got %v, want ErrInvalidToken", err)
	}
}

func TestResetPasswordKeepsActiveSessions(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)
	pair := loginPair(t, engine)

	if err := engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatal(err)
	}
	token := store.tokens[id]

	const newPassword = "brand-new-pw-123"
	if err := engine.ResetPassword(context.Background(), token, id, newPassword, newPassword); err != nil {
		t.Fatal(err)
	}

	// a session started before the reset refreshes fine
	if _, err := engine.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("refresh after reset: %v", err)
	}
}
