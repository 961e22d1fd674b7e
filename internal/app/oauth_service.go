package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"financegpt/internal/model"
	"financegpt/internal/platform/google"
	"financegpt/internal/repository"
)

var (
	ErrOAuthDisabled = errors.New("google login is not configured")
	ErrOAuthState    = errors.New("oauth state is invalid or expired")
)

type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*google.Identity, error)
}

type OAuthStateStore interface {
	Save(ctx context.Context, state string) error
	Consume(ctx context.Context, state string) (bool, error)
}

type OAuthService struct {
	provider GoogleProvider
	states   OAuthStateStore
	userRepo *repository.UserRepository
	auth     *AuthService
}

func NewOAuthService(
	provider GoogleProvider,
	states OAuthStateStore,
	userRepo *repository.UserRepository,
	auth *AuthService,
) *OAuthService {
	return &OAuthService{
		provider: provider,
		states:   states,
		userRepo: userRepo,
		auth:     auth,
	}
}

func (s *OAuthService) Enabled() bool {
	return s != nil && s.provider != nil && s.states != nil
}

// BeginGoogle returns the consent URL to redirect the browser to and the
// state it carries. Callers bind the state to the browser.
func (s *OAuthService) BeginGoogle(ctx context.Context) (string, string, error) {
	if !s.Enabled() {
		return "", "", ErrOAuthDisabled
	}
	state := uuid.NewString()
	if err := s.states.Save(ctx, state); err != nil {
		return "", "", err
	}
	return s.provider.AuthCodeURL(state), state, nil
}

func (s *OAuthService) CompleteGoogle(ctx context.Context, state, code string) (*AuthResult, error) {
	if !s.Enabled() {
		return nil, ErrOAuthDisabled
	}
	if state == "" || code == "" {
		return nil, ErrInvalidInput
	}

	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOAuthState
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.LinkGoogleUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.auth.issue(user)
}

// LinkGoogleUser finds or creates the account for a Google identity. An
// existing account with the same email is linked and switched to the google
// provider; its password, if any, keeps working.
func (s *OAuthService) LinkGoogleUser(ctx context.Context, identity *google.Identity) (*model.User, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrInvalidInput
	}
	email := normalizeEmail(identity.Email)
	if !validEmail(email) {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByGoogleID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	googleID := identity.ID
	if user != nil {
		user.GoogleID = &googleID
		columns := []string{"google_id"}
		if user.Provider == model.ProviderLocal {
			user.Provider = model.ProviderGoogle
			columns = append(columns, "provider")
		}
		if err := s.userRepo.Update(ctx, user, columns...); err != nil {
			return nil, err
		}
		return user, nil
	}

	name := strings.TrimSpace(identity.Name)
	if len([]rune(name)) < 2 {
		name = email[:strings.Index(email, "@")]
	}
	user = &model.User{
		Name:     name,
		Email:    email,
		Provider: model.ProviderGoogle,
		GoogleID: &googleID,
		Theme:    model.ThemeDark,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
