package usecase

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, email, password, fullName string) (*model.User, error)
	// Authenticate returns the user on a correct email/password pair,
	// domain.ErrNotFound otherwise (identical for unknown email and wrong
	// password).
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, fullName, password *string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
}

func NewUserUseCase(users repository.UserRepository) *userUC {
	return &userUC{users: users}
}

func (u *userUC) Register(ctx context.Context, email, password, fullName string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidArgument
	}
	if existing, err := u.users.FindByEmail(ctx, repository.NoTX, email); err == nil && !existing.IsZero() {
		return nil, domain.ErrAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := model.NewUser(email, string(hash), fullName)
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := u.users.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (u *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) UpdateProfile(ctx context.Context, userID string, fullName, password *string) (*model.User, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	if password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
		return nil, err
	}
	return user, nil
}
