package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gorilla/mux"

	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/utils/errutils"
	"github.com/shivanshkc/signon/internal/utils/httputils"
	"github.com/shivanshkc/signon/pkg/oauth"
)

// Session is the session creation entry point for non-redirect flows.
//
// Passkey logins land here: the browser answers the challenge from the
// authorization stage and this handler verifies the assertion against the
// challenge cookie before issuing a session. The cookie contract is the same
// as the callback's.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providerID := mux.Vars(r)["provider"]

	if err := validateProvider(providerID); err != nil {
		slog.ErrorContext(ctx, "invalid provider in session request", "value", providerID, "error", err)
		httputils.WriteErr(w, errutils.BadRequest().WithReasonErr(err))
		return
	}

	provider := h.providers.Get(providerID)
	if provider == nil {
		slog.ErrorContext(ctx, "session request for unconfigured provider", "provider", providerID)
		httputils.WriteErr(w, errUnsupportedProvider)
		return
	}

	// Only passkey uses the session resource; code flows go through the callback.
	passkeyProvider, ok := provider.(*oauth.Passkey)
	if !ok {
		slog.ErrorContext(ctx, "session request for non-passkey provider", "provider", providerID)
		httputils.WriteErr(w, errInvalidResource)
		return
	}

	// The challenge bound during the authorization stage must be present.
	sessionData, err := h.correlation.Get(r, correlation.CookieChallenge)
	if err != nil {
		slog.ErrorContext(ctx, "challenge cookie unusable", "error", err)
		h.failureRedirect(w, errCorrelationMissing)
		return
	}

	credential, err := passkeyProvider.FinishLogin(r.Body, sessionData, h.passkeyUserHandler(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "error in FinishLogin call", "error", err)
		h.failureRedirect(w, errLoginFailed)
		return
	}

	// Resolve the asserted credential back to its account and user.
	account, err := h.repo.FindAccountByCredentialID(ctx, credential.ID)
	if err != nil {
		slog.ErrorContext(ctx, "error in FindAccountByCredentialID call", "error", err)
		h.failureRedirect(w, errLoginFailed)
		return
	}
	user, err := h.repo.FindUserByID(ctx, account.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "error in FindUserByID call", "error", err)
		h.failureRedirect(w, errLoginFailed)
		return
	}

	// The credential carries updated authenticator state (sign count etc)
	// which the session stage persists back onto the account record.
	info := oauth.AccountInfo{
		Subject: account.Subject,
		Email:   user.Email,
		Name:    account.Name,
		Picture: account.Picture,
		Passkey: credential,
	}

	h.finishSession(ctx, w, info, account.Scope, passkeyProvider.DisplayName())
}

// passkeyUserHandler resolves a discoverable credential assertion to the user
// that owns it, using the account store.
func (h *Handler) passkeyUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		account, err := h.repo.FindAccountByCredentialID(ctx, rawID)
		if err != nil {
			return nil, fmt.Errorf("error in FindAccountByCredentialID call: %w", err)
		}

		user, err := h.repo.FindUserByID(ctx, account.UserID)
		if err != nil {
			return nil, fmt.Errorf("error in FindUserByID call: %w", err)
		}

		var credential webauthn.Credential
		if err := json.Unmarshal(account.Passkey, &credential); err != nil {
			return nil, fmt.Errorf("failed to decode stored passkey credential: %w", err)
		}

		return &passkeyUser{
			id:          userHandle,
			email:       user.Email,
			displayName: account.Name,
			credentials: []webauthn.Credential{credential},
		}, nil
	}
}

// passkeyUser adapts a stored user/account pair to the webauthn.User interface.
type passkeyUser struct {
	id          []byte
	email       string
	displayName string
	credentials []webauthn.Credential
}

func (p *passkeyUser) WebAuthnID() []byte { return p.id }

func (p *passkeyUser) WebAuthnName() string { return p.email }

func (p *passkeyUser) WebAuthnDisplayName() string { return p.displayName }

func (p *passkeyUser) WebAuthnCredentials() []webauthn.Credential { return p.credentials }

// Check performs an authentication check on the given request.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Get cookie for authentication.
	cookie, err := r.Cookie(h.config.Session.CookieName)
	if err != nil {
		// Known error.
		if errors.Is(err, http.ErrNoCookie) {
			slog.ErrorContext(ctx, "no session cookie in the request")
			httputils.WriteErr(w, errutils.Unauthorized())
			return
		}
		// Unexpected error.
		slog.ErrorContext(ctx, "failed to get cookie from request", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	// Verify the session credential and obtain its claims.
	claims, err := h.issuer.Verify(cookie.Value)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify session credential", "error", err)
		httputils.WriteErr(w, errutils.Unauthorized())
		return
	}

	headers := map[string]string{
		"X-Auth-User":       claims.UserID,
		"X-Auth-Email":      claims.Email,
		"X-Auth-Collection": claims.Collection,
	}

	httputils.Write(w, http.StatusOK, headers, nil)
}
