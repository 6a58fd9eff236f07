package oauth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDC implements the CodeProvider interface for any spec-compliant OpenID
// Connect issuer. Endpoint locations come from the issuer's discovery document.
type OIDC struct {
	id          string
	displayName string

	provider   *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	conf       oauth2.Config
	mapper     ProfileMapper
	httpClient *http.Client

	// s256Supported reflects the issuer's advertised PKCE methods. Issuers that
	// don't advertise S256 get a nonce bound for ID-token replay protection.
	s256Supported bool
}

// OIDCOptions hold the constructor parameters of an OIDC provider.
type OIDCOptions struct {
	ID          string
	DisplayName string
	// IssuerURL is the discovery base, e.g. https://accounts.google.com
	IssuerURL    string
	ClientID     string
	ClientSecret string
	// CallbackURL is where the issuer redirects after authentication.
	CallbackURL string
	Scopes      []string
	Mapper      ProfileMapper
}

// NewOIDC performs issuer discovery and returns a ready provider.
//
// Discovery happens once here; the returned provider reuses the resolved
// endpoints for every request. A malformed or unreachable issuer fails fast.
func NewOIDC(ctx context.Context, opts OIDCOptions) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("error in oidc.NewProvider call: %w", err)
	}

	// The base discovery struct doesn't expose PKCE support, so decode it
	// from the raw discovery document.
	var discovery struct {
		CodeChallengeMethods []string `json:"code_challenge_methods_supported"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	return &OIDC{
		id:          opts.ID,
		displayName: opts.DisplayName,
		provider:    provider,
		verifier:    provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		conf: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.CallbackURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       opts.Scopes,
		},
		mapper:        opts.Mapper,
		httpClient:    &http.Client{Timeout: outboundTimeout},
		s256Supported: slices.Contains(discovery.CodeChallengeMethods, "S256"),
	}, nil
}

func (o *OIDC) ID() string { return o.id }

func (o *OIDC) DisplayName() string { return o.displayName }

func (o *OIDC) Algorithm() Algorithm { return AlgorithmOIDC }

func (o *OIDC) AuthRequest(ctx context.Context, state string) (AuthRequest, error) {
	verifier := oauth2.GenerateVerifier()
	authOpts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}

	// Issuers that don't commit to S256 verification get nonce-based replay
	// protection on the ID token instead.
	var nonce string
	if !o.s256Supported {
		nonce = randomToken()
		authOpts = append(authOpts, oidc.Nonce(nonce))
	}

	return AuthRequest{
		URL:          o.conf.AuthCodeURL(state, authOpts...),
		CodeVerifier: verifier,
		Nonce:        nonce,
	}, nil
}

func (o *OIDC) Exchange(ctx context.Context, code, verifier, nonce string) (AccountInfo, string, error) {
	if o.httpClient != nil {
		// Both libraries read their client from the context.
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
		ctx = oidc.ClientContext(ctx, o.httpClient)
	}

	token, err := o.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return AccountInfo{}, "", fmt.Errorf("%w: code exchange: %w", ErrTokenValidation, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return AccountInfo{}, "", fmt.Errorf("%w: token response has no id_token", ErrTokenValidation)
	}

	// Verifies signature, issuer, audience and expiry.
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return AccountInfo{}, "", fmt.Errorf("%w: id_token verification: %w", ErrTokenValidation, err)
	}

	// Nonce equality is an exact match and a hard failure on mismatch.
	if nonce != "" && idToken.Nonce != nonce {
		return AccountInfo{}, "", fmt.Errorf("%w: id_token nonce mismatch", ErrTokenValidation)
	}

	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return AccountInfo{}, "", fmt.Errorf("failed to decode id_token claims: %w", err)
	}

	// Some issuers keep profile claims off the ID token. Fall back to the
	// userinfo endpoint before declaring the profile incomplete.
	if raw["email"] == nil {
		userInfo, err := o.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return AccountInfo{}, "", fmt.Errorf("error in UserInfo call: %w", err)
		}
		if err := userInfo.Claims(&raw); err != nil {
			return AccountInfo{}, "", fmt.Errorf("failed to decode userinfo claims: %w", err)
		}
	}

	account, err := o.mapper(raw)
	if err != nil {
		return AccountInfo{}, "", err
	}

	return account, grantedScope(token, o.conf.Scopes), nil
}

// grantedScope returns the scope granted by the provider, falling back to the
// requested scopes when the token response omits it.
func grantedScope(token *oauth2.Token, requested []string) string {
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		return scope
	}
	return strings.Join(requested, " ")
}
