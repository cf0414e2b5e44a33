package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*Session, *UserDirectory, *auth.TokenService) {
	users := newUserDirectory(t)
	tokens := auth.NewTokenService("secret")
	return NewSession(tokens, users, logger.Nop()), users, tokens
}

func TestLoginIssuesTokenWithHashkey(t *testing.T) {
	session, _, tokens := newSession(t)

	token, user, err := session.Login(context.Background(), auth.ExternalIdentity{ID: "g-1", Email: "a@example.com", Name: "Ana"})
	require.NoError(t, err)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Hashkey, claims.Hashkey)
	assert.Equal(t, "g-1", claims.ExternalID)
}

func TestRefreshAddsHashkeyToLegacyToken(t *testing.T) {
	ctx := context.Background()
	session, users, tokens := newSession(t)

	googleID := "g-legacy"
	user, err := users.Create(ctx, NewUser{Email: "old@example.com", GoogleID: &googleID})
	require.NoError(t, err)

	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    googleID,
		"email": "old@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := legacy.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	require.Empty(t, claims.Hashkey)

	refreshed, _, err := session.Refresh(ctx, claims)
	require.NoError(t, err)

	next, err := tokens.Verify(refreshed)
	require.NoError(t, err)
	assert.Equal(t, user.Hashkey, next.Hashkey)
	assert.Equal(t, user.ID, next.UserID)
}

func TestResolveHashkeyFallsBackToDirectory(t *testing.T) {
	ctx := context.Background()
	session, users, _ := newSession(t)

	user, err := users.Create(ctx, NewUser{Email: "e@example.com"})
	require.NoError(t, err)

	key, err := session.ResolveHashkey(ctx, &auth.IdentityClaims{ExternalID: "e@example.com", Email: "e@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.Hashkey, key)

	key, err = session.ResolveHashkey(ctx, &auth.IdentityClaims{Hashkey: "0badc0de"})
	require.NoError(t, err)
	assert.Equal(t, "0badc0de", key)

	_, err = session.ResolveHashkey(ctx, &auth.IdentityClaims{UserID: user.ID + 50})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
