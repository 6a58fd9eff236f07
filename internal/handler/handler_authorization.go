package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/utils/errutils"
	"github.com/shivanshkc/signon/internal/utils/httputils"
	"github.com/shivanshkc/signon/pkg/oauth"
)

var (
	errUnsupportedProvider = errutils.BadRequest().WithReasonStr("provider is not supported")
	errInvalidResource     = errutils.BadRequest().WithReasonStr("resource is not valid for this provider")
	errProviderUnreachable = errutils.BadGateway().WithReasonStr("provider is unreachable")
)

// Authorization starts the login flow for the specified provider.
//
// For code-based providers it responds with a redirect to the provider's
// authentication page; for passkey it responds with WebAuthn assertion options.
// Either way, the correlation material the callback will need is bound to the
// browser via signed cookies.
func (h *Handler) Authorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Provider is a path parameter and so it will always be present.
	providerID := mux.Vars(r)["provider"]

	// Provider ID validation.
	if err := validateProvider(providerID); err != nil {
		slog.ErrorContext(ctx, "invalid provider", "value", providerID, "error", err)
		httputils.WriteErr(w, errutils.BadRequest().WithReasonErr(err))
		return
	}

	// Select provider as per the given ID.
	provider := h.providers.Get(providerID)
	if provider == nil {
		slog.ErrorContext(ctx, "provider is not configured", "provider", providerID)
		httputils.WriteErr(w, errUnsupportedProvider)
		return
	}

	switch provider.Algorithm() {
	case oauth.AlgorithmOIDC, oauth.AlgorithmOAuth2:
		h.beginCodeFlow(ctx, w, provider.(oauth.CodeProvider))
	case oauth.AlgorithmPasskey:
		h.beginPasskeyFlow(ctx, w, provider.(*oauth.Passkey))
	default:
		slog.ErrorContext(ctx, "provider has unknown algorithm", "provider", providerID)
		httputils.WriteErr(w, errutils.InternalServerError())
	}
}

// beginCodeFlow builds the provider redirect and binds the PKCE verifier,
// state and optional nonce to the browser.
func (h *Handler) beginCodeFlow(ctx context.Context, w http.ResponseWriter, provider oauth.CodeProvider) {
	// The state parameter correlates the callback with this redirect.
	state := uuid.NewString()

	authReq, err := provider.AuthRequest(ctx, state)
	if err != nil {
		// No correlation cookies are set on failure; there is no flow to correlate.
		slog.ErrorContext(ctx, "error in AuthRequest call", "provider", provider.ID(), "error", err)
		httputils.WriteErr(w, errProviderUnreachable)
		return
	}

	h.correlation.Set(w, correlation.CookieState, state)
	h.correlation.Set(w, correlation.CookieCodeVerifier, authReq.CodeVerifier)
	if authReq.Nonce != "" {
		h.correlation.Set(w, correlation.CookieNonce, authReq.Nonce)
	}

	headers := map[string]string{
		"Location": authReq.URL,
		// The following headers make sure that the browser is not allowed to render the page
		// in a <frame>, <iframe>, <embed> or <object> tag.
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "frame-ancestors 'none'",
	}

	// Redirect.
	httputils.Write(w, http.StatusFound, headers, nil)
}

// beginPasskeyFlow generates WebAuthn assertion options and binds the
// challenge to the browser. No redirect; the browser answers directly.
func (h *Handler) beginPasskeyFlow(ctx context.Context, w http.ResponseWriter, provider *oauth.Passkey) {
	assertion, sessionData, err := provider.BeginLogin()
	if err != nil {
		slog.ErrorContext(ctx, "error in BeginLogin call", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	h.correlation.Set(w, correlation.CookieChallenge, sessionData)
	httputils.Write(w, http.StatusOK, nil, assertion)
}
