package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/store"
)

const testSecret = "0123456789abcdef0123"

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer("short", time.Hour)
	assert.Error(t, err)
	_, err = NewIssuer(testSecret, 0)
	assert.Error(t, err)
}

func TestIssueValidate_RoundTrip(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	token, exp, err := iss.Issue(access.Actor{ID: "usr-1", Role: "qc"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	actor, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, access.Actor{ID: "usr-1", Role: "qc"}, actor)
}

func TestIssue_RequiresActor(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	_, _, err = iss.Issue(access.Actor{ID: "usr-1"})
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := iss.Issue(access.Actor{ID: "usr-1", Role: access.RoleWorker})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidate_WrongSecret(t *testing.T) {
	a, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("another-secret-of-length", time.Hour)
	require.NoError(t, err)

	token, _, err := a.Issue(access.Actor{ID: "usr-1", Role: access.RoleAdmin})
	require.NoError(t, err)
	_, err = b.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	claims := Claims{Role: access.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "usr-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidate_Garbage(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	_, err = iss.Validate("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.True(t, errors.Is(CheckPassword(hash, "battery staple"), ErrInvalidCredentials))
	assert.True(t, errors.Is(CheckPassword("", "anything"), ErrInvalidCredentials))
}

type fakeCreds map[string]struct {
	user store.User
	hash string
}

func (f fakeCreds) Credentials(ctx context.Context, email string) (store.User, string, error) {
	c, ok := f[email]
	if !ok {
		return store.User{}, "", store.ErrNotFound
	}
	return c.user, c.hash, nil
}

func TestLogin(t *testing.T) {
	iss, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	creds := fakeCreds{}
	creds["ana@example.com"] = struct {
		user store.User
		hash string
	}{store.User{ID: "usr-1", Role: access.RoleWorker, Active: true}, hash}
	creds["old@example.com"] = struct {
		user store.User
		hash string
	}{store.User{ID: "usr-2", Role: access.RoleWorker}, hash}

	sess, err := Login(context.Background(), creds, iss, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	actor, err := iss.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", actor.ID)

	_, err = Login(context.Background(), creds, iss, "ana@example.com", "wrong-pass")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = Login(context.Background(), creds, iss, "old@example.com", "s3cret-pass")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = Login(context.Background(), creds, iss, "nobody@example.com", "s3cret-pass")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}
