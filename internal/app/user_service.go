package app

import (
	"context"
	"errors"
	"strings"

	"financegpt/internal/model"
	"financegpt/internal/repository"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrWrongPassword    = errors.New("current password is incorrect")
	ErrInvalidTheme     = errors.New("theme must be dark or light")
)

// UserService backs the settings panel.
type UserService struct {
	userRepo *repository.UserRepository
	auth     *AuthService
}

type UpdateProfileInput struct {
	Name  *string
	Email *string
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

func NewUserService(userRepo *repository.UserRepository, auth *AuthService) *UserService {
	return &UserService{userRepo: userRepo, auth: auth}
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var columns []string
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len([]rune(name)) < 2 {
			return nil, ErrInvalidInput
		}
		if name != user.Name {
			user.Name = name
			columns = append(columns, "name")
		}
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if !validEmail(email) {
			return nil, ErrInvalidInput
		}
		if email != user.Email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, ErrEmailExists
			}
			user.Email = email
			columns = append(columns, "email")
		}
	}

	if err := s.userRepo.Update(ctx, user, columns...); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the local password. Accounts created through an
// OAuth provider have none yet and may set one without a current password.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input ChangePasswordInput) error {
	if len(input.NewPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(input.NewPassword) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		if input.CurrentPassword == "" {
			return ErrInvalidInput
		}
		if !checkPassword(*user.Password, input.CurrentPassword) {
			return ErrWrongPassword
		}
	}

	hash, err := s.auth.hashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	user.Password = &hash
	return s.userRepo.Update(ctx, user, "password")
}

func (s *UserService) UpdateTheme(ctx context.Context, userID uint, theme string) (*model.User, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != model.ThemeDark && theme != model.ThemeLight {
		return nil, ErrInvalidTheme
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Theme == theme {
		return user, nil
	}
	user.Theme = theme
	if err := s.userRepo.Update(ctx, user, "theme"); err != nil {
		return nil, err
	}
	return user, nil
}
