package app

import (
	"context"
	"testing"

	"drive-service/internal/domain/block"
	apperrors "drive-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountFixture() (*AccountService, *fakeUserRepo, *plainHasher, *fakeTokens) {
	users := newFakeUserRepo()
	hasher := &plainHasher{}
	tokens := &fakeTokens{}
	return NewAccountService(users, hasher, tokens, nil), users, hasher, tokens
}

func TestRegister(t *testing.T) {
	svc, users, _, _ := newAccountFixture()
	ctx := context.Background()

	session, err := svc.Register(ctx, "  Alice ", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, "alice", session.User.Username)
	assert.Equal(t, "hashed:correct-horse", users.users["alice"].PasswordHash)
	require.NotNil(t, session.Root)
	assert.Equal(t, block.TypeRoot, session.Root.Type)
	assert.Equal(t, session.User.ID, session.Root.OwnerID)
	assert.Contains(t, session.Token, session.User.ID.String())
}

func TestRegister_Rejections(t *testing.T) {
	svc, _, _, _ := newAccountFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{name: "taken", username: "ALICE", password: "another-pass", want: apperrors.ErrConflict},
		{name: "short username", username: "al", password: "correct-horse", want: apperrors.ErrValidation},
		{name: "bad characters", username: "al ice", password: "correct-horse", want: apperrors.ErrValidation},
		{name: "short password", username: "bob", password: "short", want: apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password)
			assert.True(t, apperrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRegister_TokenFailure(t *testing.T) {
	svc, _, _, tokens := newAccountFixture()
	tokens.err = assert.AnError

	_, err := svc.Register(context.Background(), "alice", "correct-horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrInternalServer))
}

func TestLogin(t *testing.T) {
	svc, _, hasher, _ := newAccountFixture()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "Alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Login(ctx, "alice", "wrong-password")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	assert.Zero(t, hasher.dummyCalls)

	_, err = svc.Login(ctx, "nobody", "correct-horse")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	assert.Equal(t, 1, hasher.dummyCalls, "unknown users still pay for a hash")
}

func TestUsernameAvailable(t *testing.T) {
	svc, _, _, _ := newAccountFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	free, err := svc.UsernameAvailable(ctx, "ALICE")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.UsernameAvailable(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = svc.UsernameAvailable(ctx, "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
