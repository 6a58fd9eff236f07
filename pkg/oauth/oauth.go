// Package oauth implements the identity provider side of the login flow:
// building authorization redirects, exchanging callback codes and normalizing
// provider profiles into a canonical account shape.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// outboundTimeout bounds every call to a provider's token or profile endpoint,
// independently of the inbound request context.
const outboundTimeout = 10 * time.Second

// Algorithm is the closed set of provider kinds. Adding a kind is a deliberate
// extension of this enum, not an open-ended string comparison.
type Algorithm int

const (
	AlgorithmOIDC Algorithm = iota
	AlgorithmOAuth2
	AlgorithmPasskey
)

// String returns the config-facing name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmOIDC:
		return "oidc"
	case AlgorithmOAuth2:
		return "oauth2"
	case AlgorithmPasskey:
		return "passkey"
	default:
		return "unknown"
	}
}

var (
	// ErrTokenValidation is returned when the code exchange or the ID token checks fail.
	ErrTokenValidation = errors.New("token exchange or validation failed")
	// ErrProfileIncomplete is returned when the provider profile lacks the required fields.
	ErrProfileIncomplete = errors.New("provider profile is missing required fields")
)

// AccountInfo is the canonical, provider-agnostic identity produced by a
// provider's profile mapper. It is transient and never persisted directly.
type AccountInfo struct {
	// Subject is the issuer-scoped unique ID of the identity.
	Subject string
	Email   string
	Name    string
	Picture string

	// RedirectAction optionally names a host-registered redirect hook.
	RedirectAction  string
	RedirectContext string

	// Passkey carries the WebAuthn credential when the provider algorithm is passkey.
	Passkey *webauthn.Credential
}

// ProfileMapper converts a raw provider claim payload into the canonical AccountInfo.
// Implementations must return ErrProfileIncomplete when subject or email cannot be mapped.
type ProfileMapper func(raw map[string]any) (AccountInfo, error)

// Provider is the common surface of all configured identity providers.
type Provider interface {
	// ID is the path-parameter identifier of the provider, e.g. "google".
	ID() string

	// DisplayName is the issuer name stored on account records, e.g. "Google".
	DisplayName() string

	// Algorithm tells which login flow the provider uses.
	Algorithm() Algorithm
}

// CodeProvider is implemented by providers that use the authorization-code
// flow, i.e. the oidc and oauth2 algorithms.
type CodeProvider interface {
	Provider

	// AuthRequest builds the provider redirect along with the correlation
	// material (PKCE verifier and, for some OIDC issuers, a nonce) that must
	// travel to the callback via cookies.
	AuthRequest(ctx context.Context, state string) (AuthRequest, error)

	// Exchange converts the callback code into the canonical account info and
	// the granted scope string. The verifier and nonce must be the exact values
	// recovered from the correlation cookies.
	Exchange(ctx context.Context, code, verifier, nonce string) (AccountInfo, string, error)
}

// AuthRequest is the output of building an authorization redirect.
type AuthRequest struct {
	// URL of the provider's authentication page.
	URL string
	// CodeVerifier is the PKCE verifier whose S256 challenge is embedded in URL.
	CodeVerifier string
	// Nonce is non-empty only when ID-token replay protection was bound.
	Nonce string
}

// Registry holds all configured providers. It is built once at startup and
// shared read-only across requests.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.ID()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider with the given ID, or nil if none is configured.
func (r *Registry) Get(id string) Provider {
	return r.providers[id]
}

// randomToken returns a base64url encoded, cryptographically random string.
func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("error in rand.Read call: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
