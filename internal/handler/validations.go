package handler

import (
	"errors"
	"regexp"

	"github.com/google/uuid"
)

var (
	errInvalidProvider = errors.New("provider must be upto 20 characters and must include only a-z, 0-9, - and _")
	errInvalidAuthCode = errors.New("code must be present, upto 400 characters and of valid format")
	errInvalidState    = errors.New("state must be a valid UUID string")
)

var (
	providerRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)
	authCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9-._~%/+=]+$`)
)

// validateProvider validates the provider ID parameter when received from an external user.
func validateProvider(p string) error {
	if len(p) == 0 || len(p) > 20 {
		return errInvalidProvider
	}

	if !providerRegex.MatchString(p) {
		return errInvalidProvider
	}

	return nil
}

// validateAuthCode validates the authorization code sent by the provider.
func validateAuthCode(code string) error {
	if len(code) == 0 || len(code) > 400 {
		return errInvalidAuthCode
	}

	if !authCodeRegex.MatchString(code) {
		return errInvalidAuthCode
	}

	return nil
}

// validateState validates the state parameter sent back by the provider.
// States generated by this application are always UUID strings.
func validateState(state string) error {
	if err := uuid.Validate(state); err != nil {
		return errInvalidState
	}
	return nil
}
