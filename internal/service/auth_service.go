package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/order-insights/internal/auth"
	"github.com/spec-kit/order-insights/internal/config"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/identity"
	"github.com/spec-kit/order-insights/internal/repository"
	"github.com/spec-kit/order-insights/internal/roles"
)

// AuthService coordinates sign-in and sign-out for roster members and the
// team leader. It is also the in-process identity provider: every login and
// logout is announced to identity subscribers, which is how the role
// resolver and the aggregation engine learn about session changes.
type AuthService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	resolver   *roles.Resolver
	hub        *identity.Hub
	bcryptCost int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	Resolver    *roles.Resolver
	Hub         *identity.Hub
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts:   deps.AccountRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		resolver:   deps.Resolver,
		hub:        deps.Hub,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Login authenticates an account and returns a role-bearing token. The
// resulting identity is announced to subscribers.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, domain.Role, string, time.Time, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", "", time.Time{}, errors.New("invalid credentials")
		}
		return nil, "", "", time.Time{}, err
	}
	if !account.Active {
		return nil, "", "", time.Time{}, errors.New("account disabled")
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", "", time.Time{}, errors.New("invalid credentials")
	}

	role := s.resolver.Resolve(account.Email)
	token, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Email, role)
	if err != nil {
		return nil, "", "", time.Time{}, err
	}

	s.hub.Announce(&domain.Identity{Email: account.Email})
	return account, role, token, exp, nil
}

// Logout announces the signed-out state. Tokens are stateless; the cached
// session role is dropped by the resolver on the announcement.
func (s *AuthService) Logout(_ context.Context) error {
	s.hub.Announce(nil)
	return nil
}

// ChangePassword verifies the current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return errors.New("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	return s.accounts.Update(ctx, account)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
