package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"financegpt/internal/model"
	"financegpt/internal/pkg/jwtutil"
	"financegpt/internal/repository"
)

const (
	minPasswordLength = 6
	// bcrypt only looks at the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailExists       = errors.New("user already exists with this email")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrOAuthOnlyAccount  = errors.New("account uses an external login provider")
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes")
)

type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	userRepo      *repository.UserRepository
	denylist      TokenDenylist
	jwtSecret     string
	jwtExpiration time.Duration
	bcryptCost    int
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(
	userRepo *repository.UserRepository,
	denylist TokenDenylist,
	jwtSecret string,
	jwtExpiration time.Duration,
	bcryptCost int,
) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:      userRepo,
		denylist:      denylist,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		bcryptCost:    bcryptCost,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)

	if len([]rune(name)) < 2 || !validEmail(email) || len(input.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     name,
		Email:    email,
		Password: &hash,
		Provider: model.ProviderLocal,
		Theme:    model.ThemeDark,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidEmail
	}

	if !user.HasPassword() {
		if user.Provider != model.ProviderLocal {
			return nil, fmt.Errorf("%w: %s", ErrOAuthOnlyAccount, user.Provider)
		}
		return nil, ErrInvalidCredential
	}

	if !checkPassword(*user.Password, input.Password) {
		return nil, ErrInvalidPassword
	}

	return s.issue(user)
}

// Logout revokes the token identified by claims for the rest of its life.
// Without a denylist tokens simply run to expiry.
func (s *AuthService) Logout(ctx context.Context, claims *jwtutil.Claims) error {
	if s.denylist == nil || claims == nil {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.Remaining())
}

// Authenticate parses a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*jwtutil.Claims, error) {
	claims, err := jwtutil.ParseToken(s.jwtSecret, token)
	if err != nil {
		return nil, err
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, jwtutil.ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password failed: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
