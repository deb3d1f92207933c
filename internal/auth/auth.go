// Package auth provides the authentication capability that scripting
// sessions expose to user scripts. The core never calls it directly; it only
// makes login/logout available inside the interpreter's namespace.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidCredentials indicates a login with an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal identifies an authenticated user for the duration of a session.
type Principal struct {
	ID   string
	Name string
}

// Authenticator validates credentials and terminates authenticated principals.
type Authenticator interface {
	// Login authenticates user/password and returns the resulting principal.
	Login(ctx context.Context, user, password string) (*Principal, error)

	// Logout terminates the principal's authentication.
	Logout(ctx context.Context, principal *Principal) error
}

// StaticAuthenticator authenticates against a fixed user/password table.
// It backs the script-visible auth object when no external identity system
// is wired in.
type StaticAuthenticator struct {
	users map[string]string
}

// NewStaticAuthenticator creates an authenticator over the given table.
// A nil or empty table rejects every login.
func NewStaticAuthenticator(users map[string]string) *StaticAuthenticator {
	return &StaticAuthenticator{users: users}
}

// Login implements Authenticator.Login.
func (a *StaticAuthenticator) Login(_ context.Context, user, password string) (*Principal, error) {
	expected, ok := a.users[user]
	if !ok || expected != password {
		return nil, ErrInvalidCredentials
	}

	return &Principal{
		ID:   uuid.NewString(),
		Name: user,
	}, nil
}

// Logout implements Authenticator.Logout. Static principals hold no server
// state, so there is nothing to release.
func (a *StaticAuthenticator) Logout(_ context.Context, _ *Principal) error {
	return nil
}
