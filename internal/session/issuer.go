// Package session reconciles a provider identity against the user store and
// issues the application session credential.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/shivanshkc/signon/internal/repository"
	"github.com/shivanshkc/signon/pkg/oauth"
)

// TTL is the lifetime of a session credential and its cookie.
const TTL = 7200 * time.Second

var (
	// ErrUserNotFound is returned when no user exists for the account's email
	// and sign-up is disabled. Nothing is created in that case.
	ErrUserNotFound = errors.New("no user exists for this email")
	// ErrRedirectHook is returned when a registered redirect hook vetoes the login.
	ErrRedirectHook = errors.New("redirect hook rejected the login")
)

// HookResult is the outcome of a redirect hook invocation.
type HookResult struct {
	Success  bool
	Redirect string
}

// HookFunc is a host-registered hook invoked when an account's redirect action
// matches its registration name. Hooks run before the account upsert and must
// be side-effect-free on identity.
type HookFunc func(ctx context.Context, redirectContext string, account oauth.AccountInfo) (HookResult, error)

// Session is the output of a successful issuance.
type Session struct {
	// Token is the signed session credential.
	Token string
	// HookRedirect is the hook-provided redirect path, empty when no hook ran.
	HookRedirect string
}

// Claims are the fields bound into a session credential.
type Claims struct {
	UserID     string
	Email      string
	Collection string
}

// Issuer signs session credentials and keeps the user/account store in sync
// with the identities that log in.
type Issuer struct {
	repo           repository.Repository
	secret         []byte
	allowSignUp    bool
	userCollection string
	hooks          map[string]HookFunc
}

// NewIssuer returns a ready Issuer.
func NewIssuer(repo repository.Repository, secret, userCollection string, allowSignUp bool) *Issuer {
	return &Issuer{
		repo:           repo,
		secret:         []byte(secret),
		allowSignUp:    allowSignUp,
		userCollection: userCollection,
		hooks:          map[string]HookFunc{},
	}
}

// RegisterHook makes the given hook available under the given action name.
// Registration happens at startup, before any request is served.
func (i *Issuer) RegisterHook(action string, hook HookFunc) {
	i.hooks[action] = hook
}

// Issue runs the full session stage: redirect hook, account reconciliation and
// credential signing. Any error means no session credential exists.
func (i *Issuer) Issue(ctx context.Context, account oauth.AccountInfo, scope, issuerName string) (Session, error) {
	// Hooks run before persistence. A vetoed login leaves no records behind
	// beyond what previous logins already created.
	var hookRedirect string
	if hook, found := i.hooks[account.RedirectAction]; account.RedirectAction != "" && found {
		result, err := hook(ctx, account.RedirectContext, account)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %w", ErrRedirectHook, err)
		}
		if !result.Success {
			return Session{}, ErrRedirectHook
		}
		hookRedirect = result.Redirect
	}

	user, err := i.upsert(ctx, account, scope, issuerName)
	if err != nil {
		return Session{}, err
	}

	token, err := i.sign(user)
	if err != nil {
		return Session{}, err
	}

	return Session{Token: token, HookRedirect: hookRedirect}, nil
}

// upsert finds or creates the user and account records for the given identity.
func (i *Issuer) upsert(ctx context.Context, account oauth.AccountInfo, scope, issuerName string) (repository.User, error) {
	user, err := i.repo.FindUser(ctx, account.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		if !i.allowSignUp {
			return repository.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, account.Email)
		}
		user, err = i.createUser(ctx, account.Email)
		if err != nil {
			return repository.User{}, err
		}
	default:
		return repository.User{}, fmt.Errorf("error in FindUser call: %w", err)
	}

	fields := repository.AccountFields{
		IssuerName: issuerName,
		Subject:    account.Subject,
		UserID:     user.ID,
		Scope:      scope,
		Name:       account.Name,
		Picture:    account.Picture,
	}

	if account.Passkey != nil {
		passkeyBytes, err := json.Marshal(account.Passkey)
		if err != nil {
			return repository.User{}, fmt.Errorf("error in json.Marshal call: %w", err)
		}
		fields.Passkey = passkeyBytes
		fields.CredentialID = account.Passkey.ID
	}

	existing, err := i.repo.FindAccount(ctx, issuerName, account.Subject)
	switch {
	case err == nil:
		if _, err := i.repo.UpdateAccount(ctx, existing.ID, fields); err != nil {
			return repository.User{}, fmt.Errorf("error in UpdateAccount call: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		if err := i.createAccount(ctx, fields); err != nil {
			return repository.User{}, err
		}
	default:
		return repository.User{}, fmt.Errorf("error in FindAccount call: %w", err)
	}

	return user, nil
}

// createUser creates a user with a deterministic placeholder credential.
// A concurrent create for the same email falls back to a lookup.
func (i *Issuer) createUser(ctx context.Context, email string) (repository.User, error) {
	user, err := i.repo.CreateUser(ctx, email, true, i.placeholderCredential(email))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return repository.User{}, fmt.Errorf("error in CreateUser call: %w", err)
	}

	slog.InfoContext(ctx, "user created concurrently, retrying lookup", "email", email)
	user, err = i.repo.FindUser(ctx, email)
	if err != nil {
		return repository.User{}, fmt.Errorf("error in FindUser call after conflict: %w", err)
	}
	return user, nil
}

// createAccount creates an account record, falling back to an update when a
// concurrent login created it first.
func (i *Issuer) createAccount(ctx context.Context, fields repository.AccountFields) error {
	_, err := i.repo.CreateAccount(ctx, fields)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("error in CreateAccount call: %w", err)
	}

	slog.InfoContext(ctx, "account created concurrently, retrying lookup",
		"issuer", fields.IssuerName, "sub", fields.Subject)
	existing, err := i.repo.FindAccount(ctx, fields.IssuerName, fields.Subject)
	if err != nil {
		return fmt.Errorf("error in FindAccount call after conflict: %w", err)
	}
	if _, err := i.repo.UpdateAccount(ctx, existing.ID, fields); err != nil {
		return fmt.Errorf("error in UpdateAccount call: %w", err)
	}
	return nil
}

// sign produces the session credential for the given user.
func (i *Issuer) sign(user repository.User) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(TTL)).
		Claim("id", user.ID).
		Claim("email", user.Email).
		Claim("collection", i.userCollection).
		Build()
	if err != nil {
		return "", fmt.Errorf("error in jwt Build call: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), i.secret))
	if err != nil {
		return "", fmt.Errorf("error in jwt.Sign call: %w", err)
	}

	return string(signed), nil
}

// Verify validates a session credential and returns its claims.
func (i *Issuer) Verify(token string) (Claims, error) {
	parsed, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256(), i.secret), jwt.WithValidate(true))
	if err != nil {
		return Claims{}, fmt.Errorf("error in jwt.Parse call: %w", err)
	}

	var claims Claims
	if err := parsed.Get("id", &claims.UserID); err != nil {
		return Claims{}, fmt.Errorf("failed to decode id claim: %w", err)
	}
	if err := parsed.Get("email", &claims.Email); err != nil {
		return Claims{}, fmt.Errorf("failed to decode email claim: %w", err)
	}
	if err := parsed.Get("collection", &claims.Collection); err != nil {
		return Claims{}, fmt.Errorf("failed to decode collection claim: %w", err)
	}

	return claims, nil
}

// placeholderCredential derives a non-guessable credential for users created
// through federated sign-up. It is never used for interactive login.
func (i *Issuer) placeholderCredential(email string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}
