// Package auth issues and verifies the tokens that guard the admin endpoints.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	Issuer     = "wedding-pix"
	RoleAdmin  = "admin"
	DefaultTTL = 24 * time.Hour
)

var ErrNotConfigured = errors.New("admin secret not configured")

// Claims identify an operator of the registry back office.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Enabled() bool {
	return len(t.secret) > 0
}

func (t *Tokens) Secret() []byte {
	return t.secret
}

// Issue signs an admin token for subject.
func (t *Tokens) Issue(subject string) (string, error) {
	if !t.Enabled() {
		return "", ErrNotConfigured
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}

	now := t.now()
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	if !t.Enabled() {
		return nil, ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &Claims{}, t.keyFunc,
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid admin token")
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("role %q may not access admin endpoints", claims.Role)
	}
	return claims, nil
}

func (t *Tokens) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}
