// Package auth validates the bearer token a client presents at connect
// time and returns the Identity it carries (SPEC_FULL.md §6); attaching
// that identity to a connection is left to the caller. The engine
// itself never imports this package; it
// only ever sees the identity surfaced through the audit log and the
// status endpoint, keeping internal/rpc free of an auth dependency.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Identity is what survives validation: just enough to label an audit
// entry or a status-endpoint row, never the raw token.
type Identity struct {
	Subject string
	Issuer  string
}

// Validator checks bearer tokens against a shared HMAC key.
type Validator struct {
	key        []byte
	requireExp bool
}

func NewValidator(hmacKey string, requireExp bool) *Validator {
	return &Validator{key: []byte(hmacKey), requireExp: requireExp}
}

// Validate parses and verifies token, returning the identity it
// carries. A token without an exp claim is rejected when requireExp is
// set; nimbusd's own clock is the sole source of "now" used to check it
// (no leeway beyond what jwt-go applies by default).
func (vd *Validator) Validate(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return vd.key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("auth: parse token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token")
	}
	if vd.requireExp {
		if _, ok := claims["exp"]; !ok {
			return Identity{}, fmt.Errorf("auth: token missing exp claim")
		}
	}
	sub, _ := claims["sub"].(string)
	iss, _ := claims["iss"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("auth: token missing sub claim")
	}
	return Identity{Subject: sub, Issuer: iss}, nil
}

// Issue mints a token for test harnesses and local tooling; nimbusd
// itself is never the identity provider in production (SPEC_FULL.md §6
// has the daemon attach an identity it validated, not mint one), but a
// local issuer keeps the status/audit demo paths self-contained.
func Issue(hmacKey, subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(hmacKey))
}
