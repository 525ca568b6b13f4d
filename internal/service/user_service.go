package service

import (
	"context"
	"errors"
	"strings"

	"miniblog/internal/auth"
	dom "miniblog/internal/domain"
	"miniblog/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrEmailTaken = errors.New("user already registered")

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
	Age      int
}

// Session is an authenticated user together with their freshly issued token.
type Session struct {
	User  dom.User
	Token string
}

// UserService handles registration and login.
type UserService struct {
	repo   repo.UserRepo
	hasher *auth.Hasher
	tokens *auth.Tokens
}

// NewUserService returns a new UserService.
func NewUserService(repo repo.UserRepo, hasher *auth.Hasher, tokens *auth.Tokens) *UserService {
	return &UserService{repo: repo, hasher: hasher, tokens: tokens}
}

// Register creates a new user with a hashed password and opens a session for them.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Password == "" {
		return Session{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	u, err := s.repo.Create(ctx, dom.User{
		Username:     in.Username,
		Name:         strings.TrimSpace(in.Name),
		Age:          in.Age,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	return s.open(u)
}

// Login checks email and password. Unknown email and wrong password are the same error.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.open(u)
}

func (s *UserService) open(u dom.User) (Session, error) {
	token, err := s.tokens.Issue(u.Email, u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

// Emails are stored lowercased so every store matches them case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
