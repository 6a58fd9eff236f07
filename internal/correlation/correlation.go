// Package correlation manages the short-lived cookies that link an authorization
// redirect to its callback. All values are signed so a callback can trust them
// without any server-side session storage.
package correlation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Cookie names used to carry per-flow material between the authorization
// redirect and the callback.
const (
	CookieCodeVerifier = "__session-code-verifier"
	CookieState        = "__session-oauth-state"
	CookieNonce        = "__session-oauth-nonce"
	CookieChallenge    = "__session-webpk-challenge"
)

// cookieTTL is the max allowed time for a provider to invoke the callback API.
// If the provider is too late, the cookies will be expired and the flow will fail.
const cookieTTL = 300 * time.Second

// allCookieNames is used by Clear so no correlation material survives a
// completed flow, regardless of which cookies were actually set.
var allCookieNames = []string{CookieCodeVerifier, CookieState, CookieNonce, CookieChallenge}

var (
	// ErrMissing is returned when the requested cookie is absent or expired.
	ErrMissing = errors.New("correlation cookie is missing or expired")
	// ErrBadSignature is returned when the cookie value fails signature verification.
	ErrBadSignature = errors.New("correlation cookie has an invalid signature")
)

// Store encodes and decodes signed correlation cookies.
type Store struct {
	secret []byte
	secure bool
}

// NewStore returns a Store that signs cookie values with the given secret.
// Secure mode marks all cookies as HTTPS-only.
func NewStore(secret string, secure bool) *Store {
	return &Store{secret: []byte(secret), secure: secure}
}

// Set attaches the given value to the response as a signed, short-lived cookie.
func (s *Store) Set(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    s.encode(value),
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get recovers and verifies the value of the named cookie from the request.
func (s *Store) Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrMissing
		}
		return "", err
	}

	value, err := s.decode(cookie.Value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// Clear expires every correlation cookie in the past. It is called on every
// terminal outcome of a flow, success or failure.
func (s *Store) Clear(w http.ResponseWriter) {
	for _, name := range allCookieNames {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   s.secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// encode produces "<value>.<signature>", both segments base64url encoded.
func (s *Store) encode(value string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(value))
	return encoded + "." + s.sign(encoded)
}

// decode verifies the signature and returns the original value.
func (s *Store) decode(raw string) (string, error) {
	encoded, signature, found := strings.Cut(raw, ".")
	if !found {
		return "", ErrBadSignature
	}

	// Constant-time comparison. Cookie values are untrusted input.
	if !hmac.Equal([]byte(signature), []byte(s.sign(encoded))) {
		return "", ErrBadSignature
	}

	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadSignature
	}
	return string(value), nil
}

func (s *Store) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
