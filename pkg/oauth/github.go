package oauth

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Source: https://docs.github.com/en/apps/oauth-apps/building-oauth-apps/authorizing-oauth-apps
const (
	githubAuthURL    = "https://github.com/login/oauth/authorize"
	githubTokenURL   = "https://github.com/login/oauth/access_token"
	githubProfileURL = "https://api.github.com/user"
)

// NewGithub instantiates the GitHub provider. GitHub is not an OIDC issuer, so
// identity comes from its user API using the access token.
func NewGithub(clientID, clientSecret, callbackURL string) *OAuth2 {
	return NewOAuth2(OAuth2Options{
		ID:           "github",
		DisplayName:  "GitHub",
		AuthURL:      githubAuthURL,
		TokenURL:     githubTokenURL,
		ProfileURL:   githubProfileURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  callbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Mapper:       githubProfileMapper,
	})
}

// githubProfile is the shape of GitHub's user API response.
type githubProfile struct {
	// ID is numeric in GitHub's API.
	ID        int64  `mapstructure:"id"`
	Email     string `mapstructure:"email"`
	Name      string `mapstructure:"name"`
	AvatarURL string `mapstructure:"avatar_url"`
}

func githubProfileMapper(raw map[string]any) (AccountInfo, error) {
	var profile githubProfile
	// JSON numbers decode as float64, so decode weakly.
	if err := mapstructure.WeakDecode(raw, &profile); err != nil {
		return AccountInfo{}, fmt.Errorf("failed to decode github profile: %w", err)
	}

	if profile.ID == 0 || profile.Email == "" {
		return AccountInfo{}, fmt.Errorf("%w: id and email are required", ErrProfileIncomplete)
	}

	return AccountInfo{
		Subject: strconv.FormatInt(profile.ID, 10),
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.AvatarURL,
	}, nil
}
