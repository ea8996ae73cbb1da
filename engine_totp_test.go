package authflow

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestSetupMFAProvisionsKey(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	setup, err := engine.SetupMFA(context.Background(), id)
	if err != nil {
		t.Fatalf("SetupMFA: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("empty secret")
	}
	if len(store.record(t, id).AuthenticatorKey) == 0 {
		t.Fatal("authenticator key not persisted")
	}
	if store.record(t, id).TwoFactorEnabled {
		t.Fatal("second factor must stay off until the setup code is confirmed")
	}
	// PNG magic
	if !bytes.HasPrefix(setup.QRCode, []byte("\x89PNG")) {
		t.Fatal("QR code is not a PNG")
	}
}

func TestSetupMFAProvisionURI(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	setup, err := engine.SetupMFA(context.Background(), id)
	if err != nil {
		t.Fatalf("SetupMFA: %v", err)
	}

	u, err := url.Parse(setup.URI)
	if err != nil {
		t.Fatalf("parse URI: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected URI prefix: %s", setup.URI)
	}
	if !strings.Contains(u.Path, testEmail) {
		t.Fatalf("label missing account email: %s", u.Path)
	}
	q := u.Query()
	if q.Get("secret") != setup.Secret {
		t.Fatalf("secret param = %q, want %q", q.Get("secret"), setup.Secret)
	}
	if q.Get("issuer") != "authflow" {
		t.Fatalf("issuer param = %q", q.Get("issuer"))
	}
	if q.Get("digits") != "6" || q.Get("period") != "30" {
		t.Fatalf("digits/period = %q/%q", q.Get("digits"), q.Get("period"))
	}
}

func TestSetupMFARefusedWhenAlreadyEnabled(t *testing.T) {
	engine, store, clock, _ := newTestEngine(t, nil)
	id := seedUser(t, store)
	enableTwoFactor(t, engine, clock, id)

	if _, err := engine.SetupMFA(context.Background(), id); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("got %v, want ErrOperationNotAllowed", err)
	}
}

func TestConfirmMFASetup(t *testing.T) {
	engine, store, clock, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	setup, err := engine.SetupMFA(context.Background(), id)
	if err != nil {
		t.Fatalf("SetupMFA: %v", err)
	}

	if err := engine.ConfirmMFASetup(context.Background(), id, "000000"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("wrong code: got %v, want ErrValidationFailed", err)
	}
	if store.record(t, id).TwoFactorEnabled {
		t.Fatal("second factor enabled by a wrong code")
	}

	code := codeAt(t, setup.Secret, engine.config.TOTP, clock.Now())
	if err := engine.ConfirmMFASetup(context.Background(), id, code); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !store.record(t, id).TwoFactorEnabled {
		t.Fatal("second factor not enabled")
	}

	// a second confirmation is refused
	if err := engine.ConfirmMFASetup(context.Background(), id, code); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("second confirm: got %v, want ErrOperationNotAllowed", err)
	}
}

func TestConfirmMFASetupWithoutProvisionedKey(t *testing.T) {
	engine, store, _, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	if err := engine.ConfirmMFASetup(context.Background(), id, "123456"); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("got %v, want ErrOperationNotAllowed", err)
	}
}

func TestSetupMFAOverwritesUnconfirmedKey(t *testing.T) {
	engine, store, clock, _ := newTestEngine(t, nil)
	id := seedUser(t, store)

	first, err := engine.SetupMFA(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.SetupMFA(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected a fresh secret per provisioning")
	}

	// only the latest key confirms
	staleCode := codeAt(t, first.Secret, engine.config.TOTP, clock.Now())
	code := codeAt(t, second.Secret, engine.config.TOTP, clock.Now())
	if staleCode != code {
		if err := engine.ConfirmMFASetup(context.Background(), id, staleCode); !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("stale key code: got %v, want ErrValidationFailed", err)
		}
	}
	if err := engine.ConfirmMFASetup(context.Background(), id, code); err != nil {
		t.Fatalf("confirm with latest key: %v", err)
	}
}
