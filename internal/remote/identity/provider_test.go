package identity

import (
	"context"
	"testing"

	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/remote/docstore"
	"github.com/bassista/snapgram/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestProvider() *Provider {
	return NewProvider(docstore.NewMemoryStore(testutil.FixedClock()),
		WithBcryptCost(bcrypt.MinCost),
		WithIDGenerator(testutil.NewPrefixedIDGenerator("acct")),
	)
}

func TestProvider_CreateIdentity(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	id, err := p.CreateIdentity(ctx, " Ada@Example.com ", "correct horse", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id.ID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.Name)

	_, err = p.CreateIdentity(ctx, "ada@example.com", "another password", "Someone Else")
	assert.ErrorIs(t, err, remote.ErrIdentityConflict)
	assert.Equal(t, "IdentityConflict", remote.KindOf(err))

	_, err = p.CreateIdentity(ctx, "", "pw", "x")
	assert.ErrorIs(t, err, remote.ErrInvalidArgument)
}

func TestProvider_SessionLifecycle(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	created, err := p.CreateIdentity(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	session, err := p.CreateSession(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, created.ID, session.IdentityID)

	current, err := p.GetCurrentIdentity(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, current.ID)
	assert.Equal(t, "ada@example.com", current.Email)

	require.NoError(t, p.DeleteSession(ctx, session.Token))

	_, err = p.GetCurrentIdentity(ctx, session.Token)
	assert.ErrorIs(t, err, remote.ErrNoSession)
	assert.ErrorIs(t, p.DeleteSession(ctx, session.Token), remote.ErrNoSession)
}

func TestProvider_InvalidCredentials(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	_, err := p.CreateIdentity(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ada@example.com", "battery staple"},
		{"unknown email", "bob@example.com", "correct horse"},
		{"empty password", "ada@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.CreateSession(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, remote.ErrInvalidCredentials)
		})
	}
}

func TestProvider_GetCurrentIdentity_NoToken(t *testing.T) {
	p := newTestProvider()
	_, err := p.GetCurrentIdentity(context.Background(), "")
	assert.ErrorIs(t, err, remote.ErrNoSession)
}
