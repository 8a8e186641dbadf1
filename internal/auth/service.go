// Package auth implements the authentication flows: signup, login and token
// refresh, plus the per-request gate that resolves bearer tokens into a
// request-scoped principal.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/password"
	"github.com/nimbus-stack/nimbus/internal/shared"
	"github.com/nimbus-stack/nimbus/internal/token"
)

// IdentityStore is the slice of the identity service the auth flows need.
type IdentityStore interface {
	Create(ctx context.Context, email, plainPassword, name string) (*identity.User, error)
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
}

// WelcomeEnqueuer submits the post-signup welcome email job. May be nil.
type WelcomeEnqueuer interface {
	EnqueueWelcome(ctx context.Context, email, name string) error
}

// TokenPair is the client-facing result of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service orchestrates the authentication flows. Both token kinds share the
// same signing key and claim shape, differing only in TTL; refresh does not
// invalidate the previous refresh token (stateless tokens cannot be revoked
// before expiry).
type Service struct {
	identities IdentityStore
	hasher     *password.Hasher
	codec      *token.Codec
	welcome    WelcomeEnqueuer
	logger     *slog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService constructs a Service.
func NewService(identities IdentityStore, hasher *password.Hasher, codec *token.Codec, welcome WelcomeEnqueuer, logger *slog.Logger, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		identities: identities,
		hasher:     hasher,
		codec:      codec,
		welcome:    welcome,
		logger:     logger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Signup registers a new account. The welcome email is enqueued best-effort;
// a queue failure never fails the signup.
func (s *Service) Signup(ctx context.Context, email, plainPassword, name string) (*identity.User, error) {
	user, err := s.identities.Create(ctx, email, plainPassword, name)
	if err != nil {
		return nil, err
	}
	if s.welcome != nil {
		if err := s.welcome.EnqueueWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}
	return user, nil
}

// Login verifies credentials and mints a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*TokenPair, error) {
	user, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(plainPassword, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}
	return s.issuePair(user.Email)
}

// Refresh validates a refresh token exactly as the gate would and issues a
// brand-new access/refresh pair. Expired and structurally invalid tokens
// collapse to the same failure.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := s.codec.Subject(refreshToken)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	user, err := s.identities.GetByEmail(ctx, subject)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	if !s.TokenValid(refreshToken, user) {
		return nil, shared.ErrInvalidToken
	}
	return s.issuePair(user.Email)
}

// TokenValid reports whether the token's subject matches the user's login
// handle and the token has not expired.
func (s *Service) TokenValid(tokenString string, user *identity.User) bool {
	subject, err := s.codec.Subject(tokenString)
	if err != nil {
		return false
	}
	return subject == user.Email && !s.codec.IsExpired(tokenString)
}

// AccessTokenTTLSeconds returns the expiresIn value advertised to clients.
func (s *Service) AccessTokenTTLSeconds() int64 {
	return int64(s.accessTTL / time.Second)
}

func (s *Service) issuePair(subject string) (*TokenPair, error) {
	access, err := s.codec.Issue(subject, s.accessTTL, nil)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(subject, s.refreshTTL, nil)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTokenTTLSeconds(),
	}, nil
}
