package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/repository"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Compared against when the email is unknown so both login failures take as long.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("finsync-dummy-password"), bcryptCost)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidSession     = "Invalid session"
)

type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	Company   string
	Phone     string
	SessionID string
}

// AuthResult carries the password-free user and the issued session.
type AuthResult struct {
	User    *models.User `json:"user"`
	Session Session      `json:"session"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password, sessionID string) (*AuthResult, error)
	ValidateSession(ctx context.Context, userID, token string) (*models.User, error)
	Logout(ctx context.Context, userID string) error
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenIssuer) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// ValidateEmail trims email and checks its shape.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", appErr.Invalid("Email is required")
	}
	if !emailPattern.MatchString(email) {
		return "", appErr.Invalid(fmt.Sprintf("Please enter a valid email address. You entered: %q", email))
	}
	return email, nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email, err := ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErr.Invalid("Name is required")
	}
	if in.Password == "" {
		return nil, appErr.Invalid("Password is required")
	}

	var existing models.User
	switch err := s.userRepo.GetByEmail(ctx, email, &existing); {
	case err == nil:
		return nil, appErr.Conflict("User already exists")
	case !appErr.IsCode(err, appErr.CodeNotFound):
		return nil, err
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "hash password")
	}

	user := &models.User{
		Email:    email,
		Password: string(ph),
		Name:     name,
		Company:  models.StringPtr(strings.TrimSpace(in.Company)),
		Phone:    models.StringPtr(strings.TrimSpace(in.Phone)),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if appErr.IsCode(err, appErr.CodeConflict) {
			return nil, appErr.Wrap(err, appErr.CodeConflict, "User already exists")
		}
		return nil, err
	}

	logger.Named("auth").Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user, in.SessionID)
}

func (s *authService) Login(ctx context.Context, email, password, sessionID string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, appErr.Invalid("Email and password are required")
	}

	var user models.User
	if err := s.userRepo.GetByEmail(ctx, email, &user); err != nil {
		if !appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, appErr.Unauthorized(msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, appErr.Unauthorized(msgInvalidCredentials)
	}

	logger.Named("auth").Info("user logged in", zap.String("user_id", user.ID))
	return s.issue(&user, sessionID)
}

func (s *authService) ValidateSession(ctx context.Context, userID, token string) (*models.User, error) {
	if userID == "" {
		return nil, appErr.Unauthorized("No user ID provided")
	}
	if token != "" {
		claims, err := s.tokens.Verify(token)
		if err != nil || claims.Subject != userID {
			return nil, appErr.Unauthorized(msgInvalidSession)
		}
	}

	var user models.User
	if err := s.userRepo.GetByID(ctx, userID, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.Unauthorized(msgInvalidSession)
		}
		return nil, err
	}
	return sanitize(&user), nil
}

func (s *authService) Logout(ctx context.Context, userID string) error {
	if userID != "" {
		logger.Named("auth").Info("user logged out", zap.String("user_id", userID))
	}
	return nil
}

func (s *authService) issue(user *models.User, sessionID string) (*AuthResult, error) {
	sess, err := s.tokens.Issue(user.ID, sessionID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "issue session")
	}
	return &AuthResult{User: sanitize(user), Session: sess}, nil
}

// sanitize drops the hash before a user leaves the service layer.
func sanitize(u *models.User) *models.User {
	out := *u
	out.Password = ""
	return &out
}
