package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// OAuth2 implements the CodeProvider interface for plain (non-OIDC) OAuth2
// providers. There is no ID token; identity comes from the provider's profile
// endpoint using the access token.
type OAuth2 struct {
	id          string
	displayName string

	conf       oauth2.Config
	profileURL string
	mapper     ProfileMapper
	httpClient *http.Client
}

// OAuth2Options hold the constructor parameters of an OAuth2 provider.
type OAuth2Options struct {
	ID           string
	DisplayName  string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
	Mapper       ProfileMapper

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewOAuth2 returns a provider with statically configured endpoints.
func NewOAuth2(opts OAuth2Options) *OAuth2 {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: outboundTimeout}
	}

	return &OAuth2{
		id:          opts.ID,
		displayName: opts.DisplayName,
		conf: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.CallbackURL,
			Endpoint:     oauth2.Endpoint{AuthURL: opts.AuthURL, TokenURL: opts.TokenURL},
			Scopes:       opts.Scopes,
		},
		profileURL: opts.ProfileURL,
		mapper:     opts.Mapper,
		httpClient: client,
	}
}

func (o *OAuth2) ID() string { return o.id }

func (o *OAuth2) DisplayName() string { return o.displayName }

func (o *OAuth2) Algorithm() Algorithm { return AlgorithmOAuth2 }

func (o *OAuth2) AuthRequest(ctx context.Context, state string) (AuthRequest, error) {
	// Same PKCE binding as OIDC. No nonce as there is no ID token to protect.
	verifier := oauth2.GenerateVerifier()
	return AuthRequest{
		URL:          o.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		CodeVerifier: verifier,
	}, nil
}

func (o *OAuth2) Exchange(ctx context.Context, code, verifier, _ string) (AccountInfo, string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	token, err := o.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return AccountInfo{}, "", fmt.Errorf("%w: code exchange: %w", ErrTokenValidation, err)
	}

	raw, err := o.fetchProfile(ctx, token)
	if err != nil {
		return AccountInfo{}, "", err
	}

	account, err := o.mapper(raw)
	if err != nil {
		return AccountInfo{}, "", err
	}

	return account, grantedScope(token, o.conf.Scopes), nil
}

// fetchProfile calls the provider's profile endpoint with the access token.
func (o *OAuth2) fetchProfile(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error in http.NewRequestWithContext call: %w", err)
	}
	token.SetAuthHeader(req)

	res, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error in httpClient.Do call: %w", err)
	}
	// Close response body upon return.
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Decode response body only for logging.
		resBody, err := io.ReadAll(res.Body)
		if err != nil {
			resBody = []byte("error in io.ReadAll call: " + err.Error())
		}
		slog.ErrorContext(ctx, "profile request failed", "code", res.StatusCode, "body", string(resBody))
		return nil, fmt.Errorf("profile request failed with status code: %d", res.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error in json Decode call: %w", err)
	}

	return raw, nil
}
