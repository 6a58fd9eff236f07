package repository

// userColumns are the columns every user query returns, in scan order.
const userColumns = "id, email, email_verified, created_at, updated_at"

// accountColumns are the columns every account query returns, in scan order.
const accountColumns = "id, issuer_name, sub, user_id, scope, name, picture, passkey, created_at, updated_at"

func findUserQuery(email string) (string, []any) {
	return `SELECT ` + userColumns + ` FROM users WHERE email = $1`, []any{email}
}

func findUserByIDQuery(id string) (string, []any) {
	return `SELECT ` + userColumns + ` FROM users WHERE id = $1`, []any{id}
}

func createUserQuery(id, email string, verified bool, credential string) (string, []any) {
	return `INSERT INTO users (id, email, email_verified, credential) VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns, []any{id, email, verified, credential}
}

func findAccountQuery(issuerName, subject string) (string, []any) {
	return `SELECT ` + accountColumns + ` FROM accounts WHERE issuer_name = $1 AND sub = $2`,
		[]any{issuerName, subject}
}

func findAccountByCredentialIDQuery(credentialID []byte) (string, []any) {
	return `SELECT ` + accountColumns + ` FROM accounts WHERE credential_id = $1`, []any{credentialID}
}

func createAccountQuery(id string, f AccountFields) (string, []any) {
	return `INSERT INTO accounts (id, issuer_name, sub, user_id, scope, name, picture, passkey, credential_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + accountColumns,
		[]any{id, f.IssuerName, f.Subject, f.UserID, f.Scope, f.Name, f.Picture, f.Passkey, f.CredentialID}
}

func updateAccountQuery(id string, f AccountFields) (string, []any) {
	// Passkey material is only replaced when the new fields carry it.
	return `UPDATE accounts SET
	scope = $2,
	name = $3,
	picture = $4,
	passkey = COALESCE($5, passkey),
	credential_id = COALESCE($6, credential_id),
	updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns,
		[]any{id, f.Scope, f.Name, f.Picture, f.Passkey, f.CredentialID}
}
