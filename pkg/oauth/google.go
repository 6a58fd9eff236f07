package oauth

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Source: https://developers.google.com/identity/openid-connect/openid-connect
const googleIssuerURL = "https://accounts.google.com"

// NewGoogle instantiates the Google provider. Google is a regular OIDC issuer,
// so this is discovery plus a profile mapper.
func NewGoogle(ctx context.Context, clientID, clientSecret, callbackURL string) (*OIDC, error) {
	return NewOIDC(ctx, OIDCOptions{
		ID:           "google",
		DisplayName:  "Google",
		IssuerURL:    googleIssuerURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
		Mapper:       googleProfileMapper,
	})
}

// googleProfile is the shape of the claims Google puts on its ID tokens.
type googleProfile struct {
	Sub             string `mapstructure:"sub"`
	Email           string `mapstructure:"email"`
	Name            string `mapstructure:"name"`
	Picture         string `mapstructure:"picture"`
	RedirectAction  string `mapstructure:"redirect_action"`
	RedirectContext string `mapstructure:"redirect_context"`
}

func googleProfileMapper(raw map[string]any) (AccountInfo, error) {
	var profile googleProfile
	if err := mapstructure.Decode(raw, &profile); err != nil {
		return AccountInfo{}, fmt.Errorf("failed to decode google profile: %w", err)
	}

	if profile.Sub == "" || profile.Email == "" {
		return AccountInfo{}, fmt.Errorf("%w: sub and email are required", ErrProfileIncomplete)
	}

	return AccountInfo{
		Subject:         profile.Sub,
		Email:           profile.Email,
		Name:            profile.Name,
		Picture:         profile.Picture,
		RedirectAction:  profile.RedirectAction,
		RedirectContext: profile.RedirectContext,
	}, nil
}
