package auth

import (
	"context"

	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/auth"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/security"
)

// Service handles credential checks and token issuance. Tokens are
// stateless; logout is client-side discard.
type Service interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type service struct {
	users  repository.UserRepository
	tokens auth.JWTService
	hasher security.PasswordHasher
}

func NewService(users repository.UserRepository, tokens auth.JWTService, hasher security.PasswordHasher) Service {
	return &service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
	}
}

func (s *service) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.LoginResponse{Token: token, User: user}, nil
}

func (s *service) Me(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.Get(ctx, userID)
}
