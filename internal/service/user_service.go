package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

type UserService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	hasher PasswordHasher
	log    *slog.Logger
}

func NewUserService(users repository.UserRepository, tokens TokenIssuer, hasher PasswordHasher, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, tokens: tokens, hasher: hasher, log: log}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	const op = "service.user.register"
	log := s.log.With(slog.String("op", op))

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%s: %w: username, email and password are required", op, ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%s: %w: malformed email", op, ErrValidation)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := domain.NewUser(username, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrUserExists) {
			log.Error("failed to create user", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Login returns repository.ErrUserNotFound for an unknown email and
// ErrInvalidCredentials for a wrong password.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "service.user.login"
	log := s.log.With(slog.String("op", op))

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Info("wrong password", slog.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		log.Error("failed to issue token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Session{Token: token, User: user}, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "service.user.get"

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
