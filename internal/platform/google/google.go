package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	googleendpoint "golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrEmailNotVerified = errors.New("google account email is not verified")

// Identity is the subset of the Google userinfo document the app keeps.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewProvider(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     googleendpoint.Endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a token and loads the profile
// it grants access to.
func (p *Provider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange google code failed: %w", err)
	}

	httpClient := p.oauth.Client(ctx, token)
	httpClient.Timeout = 10 * time.Second

	var identity Identity
	resp, err := resty.NewWithClient(httpClient).R().
		SetContext(ctx).
		SetResult(&identity).
		Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("google userinfo status %d: %s", resp.StatusCode(), resp.String())
	}

	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.ID == "" || identity.Email == "" {
		return nil, fmt.Errorf("google userinfo is missing id or email")
	}
	if !identity.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}
	return &identity, nil
}
