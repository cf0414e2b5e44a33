package services

import (
	"context"
	"errors"

	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
)

// Session resolves identities in two tiers: the verified token claims, which
// may be stale or predate hashkeys, and the user directory record, which is
// authoritative.
type Session struct {
	tokens *auth.TokenService
	users  *UserDirectory
	log    *logger.Logger
}

func NewSession(tokens *auth.TokenService, users *UserDirectory, log *logger.Logger) *Session {
	return &Session{tokens: tokens, users: users, log: log.With("service", "Session")}
}

// Login records the provider identity and issues a session token for it.
func (s *Session) Login(ctx context.Context, identity auth.ExternalIdentity) (string, *models.User, error) {
	user, err := s.users.UpsertFromExternalIdentity(ctx, identity)

	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(auth.ClaimsForUser(user))

	if err != nil {
		return "", nil, err
	}

	s.log.Info("user logged in", "user_id", user.ID)

	return token, user, nil
}

// ResolveUser loads the directory record behind the claims, by internal id
// when present, otherwise by provider id and then email.
func (s *Session) ResolveUser(ctx context.Context, claims *auth.IdentityClaims) (*models.User, error) {
	if claims.UserID != 0 {
		return s.users.FindByID(ctx, claims.UserID)
	}

	if claims.ExternalID != "" && claims.ExternalID != claims.Email {
		user, err := s.users.FindByGoogleID(ctx, claims.ExternalID)

		if !errors.Is(err, ErrUserNotFound) {
			return user, err
		}
	}

	if claims.Email == "" {
		return nil, ErrUserNotFound
	}

	return s.users.FindByEmail(ctx, claims.Email)
}

// ResolveHashkey prefers the hashkey claim and falls back to the directory.
func (s *Session) ResolveHashkey(ctx context.Context, claims *auth.IdentityClaims) (string, error) {
	if claims.Hashkey != "" {
		return claims.Hashkey, nil
	}

	user, err := s.ResolveUser(ctx, claims)

	if err != nil {
		return "", err
	}

	return user.Hashkey, nil
}

// Refresh reissues a token from the current directory record, so the new
// token always carries the latest hashkey.
func (s *Session) Refresh(ctx context.Context, claims *auth.IdentityClaims) (string, *models.User, error) {
	user, err := s.ResolveUser(ctx, claims)

	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(auth.ClaimsForUser(user))

	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
