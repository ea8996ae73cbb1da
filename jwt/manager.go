// Package jwt issues and validates the engine's two signed token classes:
// claims-bearing access tokens and short-lived single-purpose bridge
// tokens. Each class has its own signing secret so a leaked key only
// compromises one of them.
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrMalformed is returned for token strings that are not three
// dot-separated segments, before any cryptographic work happens.
var ErrMalformed = errors.New("malformed token")

// Config configures a [Manager].
type Config struct {
	// Secret is the HS256 signing key for access tokens.
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	// Now overrides the time source. Defaults to time.Now.
	Now func() time.Time
}

// AccessClaims is the fixed claim structure of an access token. A typed
// struct instead of a claim map keeps access and purpose claims from ever
// being confused for one another.
type AccessClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and parses access tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("access token secret required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// Issue signs an access token for subjectID carrying every role string the
// user holds plus a fresh unique token id. It returns the compact token
// and its expiry.
func (m *Manager) Issue(subjectID string, roles []string) (string, time.Time, error) {
	now := m.config.Now()
	expiry := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// Parse validates a live access token: signature, algorithm, issuer,
// audience and lifetime.
func (m *Manager) Parse(tokenStr string) (*AccessClaims, error) {
	if err := checkShape(tokenStr); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithTimeFunc(m.config.Now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, m.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ParseExpired recovers the claims of an access token whose lifetime may
// have elapsed. Signature, algorithm, issuer and audience are still
// enforced; only the expiry check is skipped. Used by the refresh flow to
// identify the subject of an expired token.
func (m *Manager) ParseExpired(tokenStr string) (*AccessClaims, error) {
	if err := checkShape(tokenStr); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, m.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	// WithoutClaimsValidation turned off issuer/audience checks as well,
	// so they are re-applied by hand.
	if claims.Issuer != m.config.Issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	if !containsAudience(claims.Audience, m.config.Audience) {
		return nil, jwt.ErrTokenInvalidAudience
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	return m.config.Secret, nil
}

func checkShape(tokenStr string) error {
	if tokenStr == "" || strings.Count(tokenStr, ".") != 2 {
		return ErrMalformed
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
