package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shivanshkc/signon/internal/repository"
)

// mockRepository is a mock implementation of repository.Repository.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) FindUser(ctx context.Context, email string) (repository.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockRepository) FindUserByID(ctx context.Context, id string) (repository.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockRepository) CreateUser(ctx context.Context, email string, verified bool, credential string) (repository.User, error) {
	args := m.Called(ctx, email, verified, credential)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockRepository) FindAccount(ctx context.Context, issuerName, subject string) (repository.Account, error) {
	args := m.Called(ctx, issuerName, subject)
	return args.Get(0).(repository.Account), args.Error(1)
}

func (m *mockRepository) FindAccountByCredentialID(ctx context.Context, credentialID []byte) (repository.Account, error) {
	args := m.Called(ctx, credentialID)
	return args.Get(0).(repository.Account), args.Error(1)
}

func (m *mockRepository) CreateAccount(ctx context.Context, fields repository.AccountFields) (repository.Account, error) {
	args := m.Called(ctx, fields)
	return args.Get(0).(repository.Account), args.Error(1)
}

func (m *mockRepository) UpdateAccount(ctx context.Context, id string, fields repository.AccountFields) (repository.Account, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(repository.Account), args.Error(1)
}
