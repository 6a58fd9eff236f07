package handler

import (
	"context"

	"github.com/shivanshkc/signon/pkg/oauth"
)

// mockProvider is a mock implementation of the oauth.CodeProvider interface.
type mockProvider struct {
	id          string
	displayName string
	algorithm   oauth.Algorithm

	// To mock the AuthRequest method.
	argState   string
	authReq    oauth.AuthRequest
	errAuthReq error

	// To mock the Exchange method.
	argCode     string
	argVerifier string
	argNonce    string
	account     oauth.AccountInfo
	scope       string
	errExchange error
}

func (m *mockProvider) ID() string {
	return m.id
}

func (m *mockProvider) DisplayName() string {
	return m.displayName
}

func (m *mockProvider) Algorithm() oauth.Algorithm {
	return m.algorithm
}

func (m *mockProvider) AuthRequest(_ context.Context, state string) (oauth.AuthRequest, error) {
	m.argState = state
	if m.errAuthReq != nil {
		return oauth.AuthRequest{}, m.errAuthReq
	}
	return m.authReq, nil
}

func (m *mockProvider) Exchange(_ context.Context, code, verifier, nonce string) (oauth.AccountInfo, string, error) {
	m.argCode, m.argVerifier, m.argNonce = code, verifier, nonce
	if m.errExchange != nil {
		return oauth.AccountInfo{}, "", m.errExchange
	}
	return m.account, m.scope, nil
}
