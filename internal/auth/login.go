package auth

import (
	"context"
	"errors"
	"time"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/store"
)

// CredentialStore looks users up by email.
type CredentialStore interface {
	Credentials(ctx context.Context, email string) (store.User, string, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      store.User `json:"user"`
}

// Login checks email and password and issues a token. Unknown users,
// inactive users and wrong passwords all return ErrInvalidCredentials.
func Login(ctx context.Context, creds CredentialStore, iss *Issuer, email, password string) (Session, error) {
	u, hash, err := creds.Credentials(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !u.Active {
		return Session{}, ErrInvalidCredentials
	}
	if err := CheckPassword(hash, password); err != nil {
		return Session{}, err
	}
	token, exp, err := iss.Issue(access.Actor{ID: u.ID, Role: u.Role})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}
