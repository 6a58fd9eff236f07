package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/repository"
	"github.com/shivanshkc/signon/internal/session"
	"github.com/shivanshkc/signon/pkg/oauth"
)

// callbackRequest builds a mock provider callback carrying the given query
// parameters and the cookies a previous response bound to the browser.
func callbackRequest(providerID string, query url.Values, cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/oauth2/callback/"+providerID+"?"+query.Encode(), nil)
	for _, cookie := range cookies {
		r.AddCookie(cookie)
	}
	return mux.SetURLVars(r, map[string]string{"provider": providerID})
}

// beginFlow runs the authorization stage and returns the cookies it bound and
// the state it passed to the provider.
func beginFlow(t *testing.T, mHandler *Handler, mProvider *mockProvider) ([]*http.Cookie, string) {
	t.Helper()

	rr := httptest.NewRecorder()
	mHandler.Authorization(rr, authorizationRequest(mProvider.id))
	require.Equal(t, http.StatusFound, rr.Code, "Authorization stage failed")

	return rr.Result().Cookies(), mProvider.argState
}

// requireFailureRedirect asserts the terminal failure response: a redirect to
// the failure page carrying the error, with all correlation cookies cleared.
func requireFailureRedirect(t *testing.T, rr *httptest.ResponseRecorder, conf failureConf, cause error) {
	t.Helper()

	require.Equal(t, http.StatusFound, rr.Code)

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err, "Expected Location header to be a valid URL")
	require.Equal(t, conf.path, location.Path)
	require.Equal(t, cause.Error(), location.Query().Get("error"))

	requireCorrelationCleared(t, rr)
}

type failureConf struct{ path string }

// requireCorrelationCleared asserts that every correlation cookie is expired.
func requireCorrelationCleared(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()

	cleared := map[string]bool{}
	for _, cookie := range rr.Result().Cookies() {
		switch cookie.Name {
		case correlation.CookieState, correlation.CookieCodeVerifier,
			correlation.CookieNonce, correlation.CookieChallenge:
			require.Empty(t, cookie.Value, "Expected cleared cookie to carry no value")
			require.Negative(t, cookie.MaxAge, "Expected cleared cookie to be expired")
			cleared[cookie.Name] = true
		}
	}
	require.Len(t, cleared, 4, "Expected all four correlation cookies to be cleared")
}

// sessionCookie returns the session cookie from the response, or nil.
func sessionCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestHandler_Callback_InvalidRequest(t *testing.T) {
	mProvider := &mockProvider{id: "google", algorithm: oauth.AlgorithmOIDC}
	mHandler, _ := newTestHandler(mProvider)

	for _, tc := range []struct {
		name          string
		inputProvider string
	}{
		{name: "Invalid provider ID", inputProvider: "goo$$gle"},
		{name: "Unknown provider", inputProvider: "google-random"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mHandler.Callback(rr, callbackRequest(tc.inputProvider, url.Values{}, nil))

			// An unrecognized provider is a plain bad request, not a failed
			// flow. No redirect and no cookie mutation.
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Empty(t, rr.Result().Cookies(), "Expected no cookies on invalid request")
		})
	}
}

func TestHandler_Callback_NonCodeProvider(t *testing.T) {
	passkey, err := oauth.NewPasskey("localhost", "mock-app", []string{"http://localhost:8080"})
	require.NoError(t, err)
	mHandler, _ := newTestHandler(passkey)

	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest("passkey", url.Values{}, nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), errInvalidResource.Reason)
}

func TestHandler_Callback_ProviderDenied(t *testing.T) {
	mProvider := &mockProvider{
		id:        "google",
		algorithm: oauth.AlgorithmOIDC,
		authReq:   oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
	}
	mHandler, _ := newTestHandler(mProvider)
	cookies, state := beginFlow(t, mHandler, mProvider)

	query := url.Values{"state": {state}, "error": {"access_denied"}}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))

	requireFailureRedirect(t, rr, failureConf{path: "/admin/login"}, errAuthorizationDenied)
	// Fail-fast on denial, no exchange is attempted.
	require.Empty(t, mProvider.argCode, "Expected no Exchange call after denial")
}

func TestHandler_Callback_CorrelationMissing(t *testing.T) {
	mProvider := &mockProvider{
		id:        "google",
		algorithm: oauth.AlgorithmOIDC,
		authReq:   oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
	}
	mHandler, _ := newTestHandler(mProvider)
	_, state := beginFlow(t, mHandler, mProvider)

	// Callback arrives with no cookies at all, as on an expired or replayed flow.
	query := url.Values{"state": {state}, "code": {"mock-code"}}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, nil))

	requireFailureRedirect(t, rr, failureConf{path: "/admin/login"}, errCorrelationMissing)
	require.Empty(t, mProvider.argCode, "Expected no Exchange call without correlation")
}

func TestHandler_Callback_StateMismatch(t *testing.T) {
	mProvider := &mockProvider{
		id:        "google",
		algorithm: oauth.AlgorithmOIDC,
		authReq:   oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
	}
	mHandler, _ := newTestHandler(mProvider)
	cookies, _ := beginFlow(t, mHandler, mProvider)

	// A different, well-formed state that does not match the cookie.
	query := url.Values{
		"state": {"d8b5b4a1-3f5e-4b6a-9a2a-111111111111"},
		"code":  {"mock-code"},
	}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))

	requireFailureRedirect(t, rr, failureConf{path: "/admin/login"}, errCorrelationMismatch)
	require.Empty(t, mProvider.argCode, "Expected no Exchange call on state mismatch")
}

func TestHandler_Callback_Success(t *testing.T) {
	mProvider := &mockProvider{
		id:          "google",
		displayName: "Google",
		algorithm:   oauth.AlgorithmOIDC,
		authReq: oauth.AuthRequest{
			URL:          "https://idp.example.com/auth",
			CodeVerifier: "mock-verifier",
			Nonce:        "mock-nonce",
		},
		account: oauth.AccountInfo{Subject: "mock-sub", Email: "mock@example.com", Name: "Mock User"},
		scope:   "openid email profile",
	}

	mHandler, _ := newTestHandler(mProvider)
	mRepo := &mockRepository{}
	mHandler.issuer = session.NewIssuer(mRepo, mHandler.config.Session.Secret,
		mHandler.config.Session.UserCollection, false)

	mUser := repository.User{ID: "mock-user-id", Email: "mock@example.com"}
	mAccount := repository.Account{ID: "mock-account-id", IssuerName: "Google", Subject: "mock-sub"}
	mRepo.On("FindUser", mock.Anything, "mock@example.com").Return(mUser, nil)
	mRepo.On("FindAccount", mock.Anything, "Google", "mock-sub").Return(mAccount, nil)
	mRepo.On("UpdateAccount", mock.Anything, "mock-account-id", mock.Anything).Return(mAccount, nil)

	cookies, state := beginFlow(t, mHandler, mProvider)

	query := url.Values{"state": {state}, "code": {"mock-auth-code"}}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))

	// The exchange received exactly the correlation material from the cookies.
	require.Equal(t, "mock-auth-code", mProvider.argCode)
	require.Equal(t, "mock-verifier", mProvider.argVerifier)
	require.Equal(t, "mock-nonce", mProvider.argNonce)

	// Terminal success response.
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, mHandler.config.Application.BaseURL+mHandler.config.Session.SuccessPath,
		rr.Header().Get("Location"))
	requireCorrelationCleared(t, rr)

	// The session cookie carries a verifiable credential.
	cookie := sessionCookie(rr, mHandler.config.Session.CookieName)
	require.NotNil(t, cookie, "Expected the session cookie to be set")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, int(session.TTL.Seconds()), cookie.MaxAge)

	claims, err := mHandler.issuer.Verify(cookie.Value)
	require.NoError(t, err, "Expected the session credential to verify")
	require.Equal(t, mUser.ID, claims.UserID)
	require.Equal(t, mUser.Email, claims.Email)
	require.Equal(t, mHandler.config.Session.UserCollection, claims.Collection)

	mRepo.AssertExpectations(t)
}

func TestHandler_Callback_SignUpDisabled(t *testing.T) {
	mProvider := &mockProvider{
		id:          "google",
		displayName: "Google",
		algorithm:   oauth.AlgorithmOIDC,
		authReq:     oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
		account:     oauth.AccountInfo{Subject: "mock-sub", Email: "unknown@example.com"},
	}

	mHandler, _ := newTestHandler(mProvider)
	mRepo := &mockRepository{}
	mHandler.issuer = session.NewIssuer(mRepo, mHandler.config.Session.Secret,
		mHandler.config.Session.UserCollection, false)

	mRepo.On("FindUser", mock.Anything, "unknown@example.com").
		Return(repository.User{}, repository.ErrNotFound)

	cookies, state := beginFlow(t, mHandler, mProvider)
	query := url.Values{"state": {state}, "code": {"mock-auth-code"}}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))

	requireFailureRedirect(t, rr, failureConf{path: "/admin/login"}, errUserNotFound)

	// No session cookie and no records created.
	require.Nil(t, sessionCookie(rr, mHandler.config.Session.CookieName))
	mRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mRepo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestHandler_Callback_ProfileIncomplete(t *testing.T) {
	mProvider := &mockProvider{
		id:          "github",
		algorithm:   oauth.AlgorithmOAuth2,
		authReq:     oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
		errExchange: oauth.ErrProfileIncomplete,
	}
	mHandler, _ := newTestHandler(mProvider)

	cookies, state := beginFlow(t, mHandler, mProvider)
	query := url.Values{"state": {state}, "code": {"mock-auth-code"}}
	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))

	requireFailureRedirect(t, rr, failureConf{path: "/admin/login"}, errProfileIncomplete)
}

// TestHandler_Callback_Replay replays a callback after a completed flow. The
// browser no longer holds correlation cookies, so the replay must die at the
// correlation stage without reaching the provider.
func TestHandler_Callback_Replay(t *testing.T) {
	mProvider := &mockProvider{
		id:          "google",
		displayName: "Google",
		algorithm:   oauth.AlgorithmOIDC,
		authReq:     oauth.AuthRequest{URL: "https://idp.example.com/auth", CodeVerifier: "mock-verifier"},
		account:     oauth.AccountInfo{Subject: "mock-sub", Email: "mock@example.com"},
	}

	mHandler, _ := newTestHandler(mProvider)
	mRepo := &mockRepository{}
	mHandler.issuer = session.NewIssuer(mRepo, mHandler.config.Session.Secret,
		mHandler.config.Session.UserCollection, false)

	mUser := repository.User{ID: "mock-user-id", Email: "mock@example.com"}
	mAccount := repository.Account{ID: "mock-account-id"}
	mRepo.On("FindUser", mock.Anything, mock.Anything).Return(mUser, nil)
	mRepo.On("FindAccount", mock.Anything, mock.Anything, mock.Anything).Return(mAccount, nil)
	mRepo.On("UpdateAccount", mock.Anything, mock.Anything, mock.Anything).Return(mAccount, nil)

	cookies, state := beginFlow(t, mHandler, mProvider)
	query := url.Values{"state": {state}, "code": {"mock-auth-code"}}

	rr := httptest.NewRecorder()
	mHandler.Callback(rr, callbackRequest(mProvider.id, query, cookies))
	require.Equal(t, http.StatusFound, rr.Code)
	requireCorrelationCleared(t, rr)

	// Replay with only the cookies the browser would still hold, which after
	// the clear excludes all correlation material.
	exchangeCalls := mProvider.argCode
	var survivors []*http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge > 0 {
			survivors = append(survivors, cookie)
		}
	}

	rrReplay := httptest.NewRecorder()
	mHandler.Callback(rrReplay, callbackRequest(mProvider.id, query, survivors))

	requireFailureRedirect(t, rrReplay, failureConf{path: "/admin/login"}, errCorrelationMissing)
	require.Equal(t, exchangeCalls, mProvider.argCode, "Expected no second Exchange call")
}
