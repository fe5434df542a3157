package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

const credentialColumns = `id, user_id, name, auth_type, username, password,
	private_key, key_passphrase, created_at, updated_at`

// SQLiteCredentialRepository stores reusable SSH credentials. Secret columns
// hold ciphertext.
type SQLiteCredentialRepository struct {
	db *sql.DB
}

func NewSQLiteCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db}
}

func (r *SQLiteCredentialRepository) Create(ctx context.Context, credential *hostsDomain.Credential) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO credentials (` + credentialColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		credential.ID.String(),
		credential.UserID.String(),
		credential.Name,
		string(credential.AuthType),
		credential.Username,
		credential.Password,
		credential.PrivateKey,
		credential.KeyPassphrase,
		credential.CreatedAt,
		credential.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

func (r *SQLiteCredentialRepository) Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Credential, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id.String())
	return scanCredential(row)
}

func (r *SQLiteCredentialRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*hostsDomain.Credential, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = ? ORDER BY name`, userID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer func() { _ = rows.Close() }()

	credentials := make([]*hostsDomain.Credential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate credentials")
	}
	return credentials, nil
}

func (r *SQLiteCredentialRepository) Update(ctx context.Context, credential *hostsDomain.Credential) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE credentials
			  SET name = ?, auth_type = ?, username = ?, password = ?,
			      private_key = ?, key_passphrase = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		credential.Name,
		string(credential.AuthType),
		credential.Username,
		credential.Password,
		credential.PrivateKey,
		credential.KeyPassphrase,
		credential.UpdatedAt,
		credential.ID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check credential update")
	}
	if affected == 0 {
		return hostsDomain.ErrCredentialNotFound
	}
	return nil
}

// Delete removes the credential. Hosts referencing it fall back to a null
// credential through ON DELETE SET NULL.
func (r *SQLiteCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete credential")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check credential delete")
	}
	if affected == 0 {
		return hostsDomain.ErrCredentialNotFound
	}
	return nil
}

// DeleteByUser removes every credential owned by a user. Used by the
// destructive reset path.
func (r *SQLiteCredentialRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete credentials for user")
	}
	return nil
}

func scanCredential(row rowScanner) (*hostsDomain.Credential, error) {
	var (
		credential  hostsDomain.Credential
		rawID       string
		rawUserID   string
		rawAuthType string
	)
	err := row.Scan(
		&rawID,
		&rawUserID,
		&credential.Name,
		&rawAuthType,
		&credential.Username,
		&credential.Password,
		&credential.PrivateKey,
		&credential.KeyPassphrase,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, hostsDomain.ErrCredentialNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan credential")
	}

	credential.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse credential id")
	}
	credential.UserID, err = uuid.Parse(rawUserID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse credential user id")
	}
	credential.AuthType = hostsDomain.AuthType(rawAuthType)
	return &credential, nil
}
