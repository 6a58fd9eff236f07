package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/session"
	"github.com/shivanshkc/signon/internal/utils/errutils"
	"github.com/shivanshkc/signon/internal/utils/httputils"
	"github.com/shivanshkc/signon/pkg/oauth"
)

var (
	errAuthorizationDenied = errors.New("authorization was denied by the provider")
	errCorrelationMissing  = errors.New("login flow has expired or was not started by this browser")
	errCorrelationMismatch = errors.New("state does not match the original authorization request")
	errLoginFailed         = errors.New("login failed")
	errProfileIncomplete   = errors.New("provider profile is missing required fields")
	errUserNotFound        = errors.New("no user exists for this email")
)

// Callback handles the provider's redirect back after authentication.
//
// Every outcome past provider validation is terminal for the flow, so the
// correlation cookies are always cleared, success or failure. A replayed
// callback therefore finds no correlation material and its code is already
// consumed at the provider; it can never re-issue a session.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Obtain params from the request.
	providerID := mux.Vars(r)["provider"]
	state, errAuth, code := r.URL.Query().Get("state"),
		r.URL.Query().Get("error"),
		r.URL.Query().Get("code")

	// Provider ID validation. An unrecognized provider is a bad request with
	// no side effects, not a failed flow.
	if err := validateProvider(providerID); err != nil {
		slog.ErrorContext(ctx, "invalid provider in callback", "value", providerID, "error", err)
		httputils.WriteErr(w, errutils.BadRequest().WithReasonErr(err))
		return
	}

	provider := h.providers.Get(providerID)
	if provider == nil {
		slog.ErrorContext(ctx, "callback for unconfigured provider", "provider", providerID)
		httputils.WriteErr(w, errUnsupportedProvider)
		return
	}

	// Passkey flows never hit the callback resource.
	codeProvider, ok := provider.(oauth.CodeProvider)
	if !ok {
		slog.ErrorContext(ctx, "callback for non-code provider", "provider", providerID)
		httputils.WriteErr(w, errInvalidResource)
		return
	}

	// If this error is not empty, the flow has failed from the provider's side.
	// Fail fast, no token exchange is attempted.
	if errAuth != "" {
		slog.ErrorContext(ctx, "provider called back with error", "provider", providerID, "error", errAuth)
		h.failureRedirect(w, errAuthorizationDenied)
		return
	}

	// Recover the correlation material bound during the authorization redirect.
	// Absence means an expired, replayed or cross-origin flow. Never proceed.
	cookieState, err := h.correlation.Get(r, correlation.CookieState)
	if err != nil {
		slog.ErrorContext(ctx, "state cookie unusable", "provider", providerID, "error", err)
		h.failureRedirect(w, errCorrelationMissing)
		return
	}

	// State comparison is exact-match, nothing fuzzy.
	if err := validateState(state); err != nil ||
		subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		slog.ErrorContext(ctx, "state mismatch in callback", "provider", providerID)
		h.failureRedirect(w, errCorrelationMismatch)
		return
	}

	verifier, err := h.correlation.Get(r, correlation.CookieCodeVerifier)
	if err != nil {
		slog.ErrorContext(ctx, "verifier cookie unusable", "provider", providerID, "error", err)
		h.failureRedirect(w, errCorrelationMissing)
		return
	}

	// The nonce cookie only exists when the authorization stage bound one.
	nonce, err := h.correlation.Get(r, correlation.CookieNonce)
	if err != nil && !errors.Is(err, correlation.ErrMissing) {
		slog.ErrorContext(ctx, "nonce cookie unusable", "provider", providerID, "error", err)
		h.failureRedirect(w, errCorrelationMismatch)
		return
	}

	// Authorization code validation.
	if err := validateAuthCode(code); err != nil {
		slog.ErrorContext(ctx, "invalid code in callback", "provider", providerID, "error", err)
		h.failureRedirect(w, errLoginFailed)
		return
	}

	// Exchange the code and normalize the provider profile.
	account, scope, err := codeProvider.Exchange(ctx, code, verifier, nonce)
	if err != nil {
		slog.ErrorContext(ctx, "error in Exchange call", "provider", providerID, "error", err)
		if errors.Is(err, oauth.ErrProfileIncomplete) {
			h.failureRedirect(w, errProfileIncomplete)
		} else {
			h.failureRedirect(w, errLoginFailed)
		}
		return
	}

	h.finishSession(ctx, w, account, scope, provider.DisplayName())
}

// finishSession runs the session stage and writes the terminal response.
// It is shared by the callback and the passkey session resource.
func (h *Handler) finishSession(
	ctx context.Context, w http.ResponseWriter, account oauth.AccountInfo, scope, issuerName string,
) {
	sess, err := h.issuer.Issue(ctx, account, scope, issuerName)
	if err != nil {
		slog.ErrorContext(ctx, "error in Issue call", "issuer", issuerName, "error", err)
		switch {
		case errors.Is(err, session.ErrUserNotFound):
			h.failureRedirect(w, errUserNotFound)
		case errors.Is(err, session.ErrRedirectHook):
			h.failureRedirect(w, session.ErrRedirectHook)
		default:
			h.failureRedirect(w, errLoginFailed)
		}
		return
	}

	// No stale correlation material survives a completed login.
	h.correlation.Clear(w)

	// Set the session cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(session.TTL.Seconds()),
		Expires:  time.Now().Add(session.TTL),
		Secure:   strings.HasPrefix(h.config.Application.BaseURL, "https://"),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect priority: hook redirect > configured success path > admin root.
	path := "/admin"
	if sess.HookRedirect != "" {
		path = sess.HookRedirect
	} else if h.config.Session.SuccessPath != "" {
		path = h.config.Session.SuccessPath
	}

	headers := map[string]string{"Location": h.config.Application.BaseURL + path}
	httputils.Write(w, http.StatusFound, headers, nil)
}

// failureRedirect clears the correlation cookies and redirects the browser to
// the configured failure page with the error attached as a query parameter.
func (h *Handler) failureRedirect(w http.ResponseWriter, err error) {
	h.correlation.Clear(w)

	path := h.config.Session.FailurePath
	if path == "" {
		path = "/admin/login"
	}

	redirectURL := fmt.Sprintf("%s%s?error=%s",
		h.config.Application.BaseURL, path, url.QueryEscape(err.Error()))
	headers := map[string]string{"Location": redirectURL}
	httputils.Write(w, http.StatusFound, headers, nil)
}
