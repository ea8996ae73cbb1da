package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PurposeConfig configures a [PurposeManager]. Secret must be distinct
// from the access-token secret.
type PurposeConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// PurposeClaims is the fixed claim structure of a purpose token. The
// purpose string binds the token to exactly one operation.
type PurposeClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// PurposeManager issues and validates single-purpose bridge tokens. They
// are never persisted; single use is approximated by the short TTL unless
// the host enables the replay guard.
type PurposeManager struct {
	config PurposeConfig
}

// NewPurposeManager validates cfg and returns a PurposeManager.
func NewPurposeManager(cfg PurposeConfig) (*PurposeManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("purpose token secret required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid purpose TTL")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PurposeManager{config: cfg}, nil
}

// Issue signs a purpose token for subjectID bound to purpose, expiring
// after the fixed TTL. The embedded random jti allows a revocation store
// to enforce single use.
func (m *PurposeManager) Issue(subjectID, purpose string) (string, error) {
	now := m.config.Now()

	claims := PurposeClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Validate checks signature, issuer, audience and expiry (no leeway) and
// that the embedded purpose equals expectedPurpose. On success it returns
// the subject id and the token's unique id. The caller collapses every
// failure into one generic invalid-token answer; nothing here reveals why
// validation failed.
func (m *PurposeManager) Validate(tokenStr, expectedPurpose string) (subjectID, jti string, err error) {
	if err := checkShape(tokenStr); err != nil {
		return "", "", err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &PurposeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*PurposeClaims)
	if !ok || !token.Valid {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	if claims.Purpose != expectedPurpose {
		return "", "", errors.New("purpose mismatch")
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, claims.ID, nil
}
