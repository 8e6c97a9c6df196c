// Package auth issues and validates dashboard session tokens and hashes
// passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/floorboard/internal/access"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "floorboard"

var (
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidCredentials is returned when an email/password pair does not match.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
)

// Claims is the JWT payload. The subject is the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. The secret must be at least 16 bytes.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("auth: jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token lifetime must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for actor.
func (i *Issuer) Issue(actor access.Actor) (string, time.Time, error) {
	if actor.ID == "" || actor.Role == "" {
		return "", time.Time{}, fmt.Errorf("auth: actor id and role are required")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses token and returns the actor it was issued for.
func (i *Issuer) Validate(token string) (access.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return access.Actor{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return access.Actor{ID: claims.Subject, Role: claims.Role}, nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("auth: password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword returns ErrInvalidCredentials unless password matches hash.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
