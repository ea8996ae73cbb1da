// Package authflow is an embeddable authentication and session-lifecycle
// engine: credential verification with lockout policy, an optional TOTP
// second factor bridged by short-lived purpose tokens, rotating
// access/refresh token pairs and password-reset orchestration.
//
// The engine owns no storage. The host application supplies a [UserStore]
// for account records (one rotating refresh token per user lives on the
// record itself), an [EmailSender] for confirmation and reset mail, and
// optionally a Redis client for the purpose-token replay guard.
//
// Build an engine with the fluent builder:
//
//	cfg := authflow.DefaultConfig()
//	cfg.Session.SigningSecret = sessionSecret
//	cfg.Purpose.SigningSecret = purposeSecret
//	cfg.Session.Issuer = "myapp"
//	cfg.Session.Audience = "myapp-clients"
//	cfg.TOTP.Issuer = "MyApp"
//
//	engine, err := authflow.New().
//		WithConfig(cfg).
//		WithUserStore(store).
//		WithEmailSender(mailer).
//		Build()
//
// All failures surface as the package's sentinel errors; no error reveals
// whether an email exists or why a token was rejected.
package authflow
