package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbotio/jabberops/internal/auth"
)

var _ auth.Authenticator = (*auth.StaticAuthenticator)(nil)

func TestStaticAuthenticator_Login(t *testing.T) {
	authenticator := auth.NewStaticAuthenticator(map[string]string{"alice": "secret"})

	principal, err := authenticator.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Name)
	assert.NotEmpty(t, principal.ID)

	require.NoError(t, authenticator.Logout(context.Background(), principal))
}

func TestStaticAuthenticator_Login_Rejected(t *testing.T) {
	authenticator := auth.NewStaticAuthenticator(map[string]string{"alice": "secret"})

	_, err := authenticator.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = authenticator.Login(context.Background(), "mallory", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestStaticAuthenticator_EmptyTableRejectsEveryone(t *testing.T) {
	authenticator := auth.NewStaticAuthenticator(nil)

	_, err := authenticator.Login(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
