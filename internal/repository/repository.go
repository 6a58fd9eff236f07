package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the Postgres error code for unique constraint violations.
const uniqueViolationCode = "23505"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a create hits a unique constraint. Callers
	// should treat it as "record already exists" and retry the lookup.
	ErrConflict = errors.New("record already exists")
)

// User represents a single user in the database.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Account represents a provider identity linked to a user. Accounts are unique
// per (issuer_name, sub) pair.
type Account struct {
	ID         string    `json:"id"`
	IssuerName string    `json:"issuer_name"`
	Subject    string    `json:"sub"`
	UserID     string    `json:"user_id"`
	Scope      string    `json:"scope"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture"`
	Passkey    []byte    `json:"passkey,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AccountFields are the writable fields of an account record.
type AccountFields struct {
	IssuerName string
	Subject    string
	UserID     string
	Scope      string
	Name       string
	Picture    string
	// Passkey is the serialized WebAuthn credential, nil for non-passkey accounts.
	Passkey []byte
	// CredentialID indexes passkey accounts for discoverable logins.
	CredentialID []byte
}

// Repository encapsulates all operations available on the user and account stores.
type Repository interface {
	FindUser(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, email string, verified bool, credential string) (User, error)

	FindAccount(ctx context.Context, issuerName, subject string) (Account, error)
	FindAccountByCredentialID(ctx context.Context, credentialID []byte) (Account, error)
	CreateAccount(ctx context.Context, fields AccountFields) (Account, error)
	UpdateAccount(ctx context.Context, id string, fields AccountFields) (Account, error)
}

// repository implements Repository over Postgres.
type repository struct {
	database *sql.DB
}

// NewRepository returns a new implementation of Repository.
func NewRepository(database *sql.DB) Repository {
	return &repository{database: database}
}

func (r *repository) FindUser(ctx context.Context, email string) (User, error) {
	query, args := findUserQuery(email)
	return scanUser(r.database.QueryRowContext(ctx, query, args...))
}

func (r *repository) FindUserByID(ctx context.Context, id string) (User, error) {
	query, args := findUserByIDQuery(id)
	return scanUser(r.database.QueryRowContext(ctx, query, args...))
}

func (r *repository) CreateUser(ctx context.Context, email string, verified bool, credential string) (User, error) {
	query, args := createUserQuery(uuid.NewString(), email, verified, credential)
	user, err := scanUser(r.database.QueryRowContext(ctx, query, args...))
	if err != nil {
		return User{}, translateErr(err)
	}
	return user, nil
}

func (r *repository) FindAccount(ctx context.Context, issuerName, subject string) (Account, error) {
	query, args := findAccountQuery(issuerName, subject)
	return scanAccount(r.database.QueryRowContext(ctx, query, args...))
}

func (r *repository) FindAccountByCredentialID(ctx context.Context, credentialID []byte) (Account, error) {
	query, args := findAccountByCredentialIDQuery(credentialID)
	return scanAccount(r.database.QueryRowContext(ctx, query, args...))
}

func (r *repository) CreateAccount(ctx context.Context, fields AccountFields) (Account, error) {
	query, args := createAccountQuery(uuid.NewString(), fields)
	account, err := scanAccount(r.database.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Account{}, translateErr(err)
	}
	return account, nil
}

func (r *repository) UpdateAccount(ctx context.Context, id string, fields AccountFields) (Account, error) {
	query, args := updateAccountQuery(id, fields)
	return scanAccount(r.database.QueryRowContext(ctx, query, args...))
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("error in row.Scan call: %w", err)
	}
	return user, nil
}

func scanAccount(row *sql.Row) (Account, error) {
	var account Account
	err := row.Scan(&account.ID, &account.IssuerName, &account.Subject, &account.UserID,
		&account.Scope, &account.Name, &account.Picture, &account.Passkey,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("error in row.Scan call: %w", err)
	}
	return account, nil
}

// translateErr maps unique constraint violations to ErrConflict.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrConflict
	}
	return err
}
