package oauth

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// passkeyDisplayName is the issuer name stored on passkey-backed account records.
const passkeyDisplayName = "Passkey"

// Passkey implements the Provider interface for WebAuthn passkey logins.
// Unlike the code-based algorithms there is no redirect; the browser answers a
// challenge directly and the challenge travels in a correlation cookie.
type Passkey struct {
	wa *webauthn.WebAuthn
}

// NewPasskey builds the WebAuthn relying party for passkey logins.
func NewPasskey(rpID, rpDisplayName string, origins []string) (*Passkey, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          rpID,
		RPDisplayName: rpDisplayName,
		RPOrigins:     origins,
	})
	if err != nil {
		return nil, fmt.Errorf("error in webauthn.New call: %w", err)
	}
	return &Passkey{wa: wa}, nil
}

func (p *Passkey) ID() string { return "passkey" }

func (p *Passkey) DisplayName() string { return passkeyDisplayName }

func (p *Passkey) Algorithm() Algorithm { return AlgorithmPasskey }

// BeginLogin generates assertion options for a discoverable credential login.
// It returns the options to send to the browser and the serialized session
// data that must round-trip via the challenge cookie.
func (p *Passkey) BeginLogin() (*protocol.CredentialAssertion, string, error) {
	assertion, session, err := p.wa.BeginDiscoverableLogin()
	if err != nil {
		return nil, "", fmt.Errorf("error in BeginDiscoverableLogin call: %w", err)
	}

	sessionBytes, err := json.Marshal(session)
	if err != nil {
		return nil, "", fmt.Errorf("error in json.Marshal call: %w", err)
	}

	return assertion, string(sessionBytes), nil
}

// FinishLogin verifies the browser's assertion against the challenge from the
// cookie. The handler resolves the asserted credential to a known user.
// It returns the credential used, with its authenticator state updated.
func (p *Passkey) FinishLogin(
	body io.Reader, sessionData string, handler webauthn.DiscoverableUserHandler,
) (*webauthn.Credential, error) {
	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return nil, fmt.Errorf("failed to decode webauthn session data: %w", err)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed assertion: %w", ErrTokenValidation, err)
	}

	credential, err := p.wa.ValidateDiscoverableLogin(handler, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: assertion validation: %w", ErrTokenValidation, err)
	}

	return credential, nil
}
