package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chandabaz/internal/auth"
	"chandabaz/internal/cache"
	"chandabaz/internal/config"
	"chandabaz/internal/models"
	"chandabaz/internal/repository"
	"chandabaz/pkg/validator"
)

// RegisterInput is the body of a registration request
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginInput is the body of a login request. Email takes precedence over phone.
type LoginInput struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Session is an authenticated account with its bearer token
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo repository.UserStore
	authSvc  *auth.Service
	accounts *cache.AccountCache
	audit    *AuditService
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo repository.UserStore,
	authSvc *auth.Service,
	accounts *cache.AccountCache,
	audit *AuditService,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		authSvc:  authSvc,
		accounts: accounts,
		audit:    audit,
	}
}

// Register creates a citizen account and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = validator.SanitizeString(in.Name)
	in.Email = validator.SanitizeEmail(in.Email)
	in.Phone = validator.SanitizePhone(in.Phone)

	if in.Email == "" && in.Phone == "" {
		return nil, invalid("either email or phone is required")
	}
	if err := validate(&in); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByContact(ctx, in.Email, in.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		return nil, repository.ErrUserExists
	}

	passwordHash, err := s.authSvc.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         in.Name,
		PasswordHash: passwordHash,
		Role:         models.RoleCitizen,
		IsActive:     true,
	}
	if in.Email != "" {
		user.Email = &in.Email
	}
	if in.Phone != "" {
		user.Phone = &in.Phone
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID)
	return s.issue(user)
}

// Login verifies credentials and issues a token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := validator.SanitizeEmail(in.Email)
	phone := validator.SanitizePhone(in.Phone)
	if (email == "" && phone == "") || in.Password == "" {
		return nil, invalid("please provide email or phone and password")
	}

	var (
		user *models.User
		err  error
	)
	if email != "" {
		user, err = s.userRepo.GetByEmail(ctx, email)
	} else {
		user, err = s.userRepo.GetByPhone(ctx, phone)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, in.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	s.accounts.Set(user)
	return s.issue(user)
}

// ResolveCurrentUser verifies a bearer token and loads its account
func (s *AuthService) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.GetOrLoad(ctx, claims.UserID, s.userRepo.GetByID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// SeedAdmin creates the configured administrator if no account uses its contact yet
func (s *AuthService) SeedAdmin(ctx context.Context, cfg config.AdminConfig) error {
	email := validator.SanitizeEmail(cfg.Email)
	phone := validator.SanitizePhone(cfg.Phone)
	if email == "" && phone == "" {
		return nil
	}

	exists, err := s.userRepo.ExistsByContact(ctx, email, phone)
	if err != nil {
		return fmt.Errorf("failed to check admin account: %w", err)
	}
	if exists {
		slog.Debug("Admin account already present")
		return nil
	}

	hash, err := s.authSvc.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Name:         strings.TrimSpace(cfg.Name),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if admin.Name == "" {
		admin.Name = "Administrator"
	}
	if email != "" {
		admin.Email = &email
	}
	if phone != "" {
		admin.Phone = &phone
	}

	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	s.audit.Log(ctx, admin.ID, ActionAdminSeeded, "user", admin.ID, "seeded at "+time.Now().UTC().Format(time.RFC3339))
	slog.Info("Admin account created", "user_id", admin.ID)
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, err := s.authSvc.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}
