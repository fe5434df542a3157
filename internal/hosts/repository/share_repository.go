package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

const sharedSecretColumns = `id, grant_id, host_id, grantee_user_id, entity_kind,
	record_id, field, ciphertext, created_at, updated_at`

const pendingShareColumns = `id, grant_id, host_id, grantee_user_id, entity_kind,
	record_id, field, ciphertext, created_at`

// SQLiteSharedSecretRepository stores fields re-encrypted under grantee
// DEKs.
type SQLiteSharedSecretRepository struct {
	db *sql.DB
}

func NewSQLiteSharedSecretRepository(db *sql.DB) *SQLiteSharedSecretRepository {
	return &SQLiteSharedSecretRepository{db: db}
}

// Upsert writes a shared-secret row, replacing any previous ciphertext for
// the same grant, record, and field. Re-sharing and pending-flush retries
// are idempotent through this.
func (r *SQLiteSharedSecretRepository) Upsert(ctx context.Context, secret *hostsDomain.SharedSecret) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO shared_secrets (` + sharedSecretColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT (grant_id, record_id, field)
			  DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.ID.String(),
		secret.GrantID.String(),
		secret.HostID.String(),
		secret.GranteeUserID.String(),
		secret.EntityKind,
		secret.RecordID,
		secret.Field,
		secret.Ciphertext,
		secret.CreatedAt,
		secret.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert shared secret")
	}
	return nil
}

// ListByGranteeAndHost returns the grantee's shared-secret rows for one host.
func (r *SQLiteSharedSecretRepository) ListByGranteeAndHost(ctx context.Context, granteeID, hostID uuid.UUID) ([]*hostsDomain.SharedSecret, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+sharedSecretColumns+` FROM shared_secrets
		 WHERE grantee_user_id = ? AND host_id = ?`,
		granteeID.String(), hostID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list shared secrets")
	}
	defer func() { _ = rows.Close() }()

	secrets := make([]*hostsDomain.SharedSecret, 0)
	for rows.Next() {
		secret, err := scanSharedSecret(rows)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate shared secrets")
	}
	return secrets, nil
}

// DeleteByGrantee removes every shared-secret row addressed to a user. Used
// when the user's DEK is destroyed.
func (r *SQLiteSharedSecretRepository) DeleteByGrantee(ctx context.Context, granteeID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM shared_secrets WHERE grantee_user_id = ?`, granteeID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete shared secrets for grantee")
	}
	return nil
}

func scanSharedSecret(row rowScanner) (*hostsDomain.SharedSecret, error) {
	var (
		secret     hostsDomain.SharedSecret
		rawID      string
		rawGrantID string
		rawHostID  string
		rawGrantee string
	)
	err := row.Scan(
		&rawID,
		&rawGrantID,
		&rawHostID,
		&rawGrantee,
		&secret.EntityKind,
		&secret.RecordID,
		&secret.Field,
		&secret.Ciphertext,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "shared secret not found")
		}
		return nil, apperrors.Wrap(err, "failed to scan shared secret")
	}

	if secret.ID, err = uuid.Parse(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse shared secret id")
	}
	if secret.GrantID, err = uuid.Parse(rawGrantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse shared secret grant id")
	}
	if secret.HostID, err = uuid.Parse(rawHostID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse shared secret host id")
	}
	if secret.GranteeUserID, err = uuid.Parse(rawGrantee); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse shared secret grantee id")
	}
	return &secret, nil
}

// SQLitePendingShareRepository stores fields wrapped under the system
// pending-share key, waiting for their grantee's next unlock.
type SQLitePendingShareRepository struct {
	db *sql.DB
}

func NewSQLitePendingShareRepository(db *sql.DB) *SQLitePendingShareRepository {
	return &SQLitePendingShareRepository{db: db}
}

// Upsert writes a pending row, replacing any previous ciphertext for the
// same grant, record, and field.
func (r *SQLitePendingShareRepository) Upsert(ctx context.Context, pending *hostsDomain.PendingShare) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO pending_shares (` + pendingShareColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT (grant_id, record_id, field)
			  DO UPDATE SET ciphertext = excluded.ciphertext`

	_, err := querier.ExecContext(
		ctx,
		query,
		pending.ID.String(),
		pending.GrantID.String(),
		pending.HostID.String(),
		pending.GranteeUserID.String(),
		pending.EntityKind,
		pending.RecordID,
		pending.Field,
		pending.Ciphertext,
		pending.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert pending share")
	}
	return nil
}

// ListByGrantee returns every pending row addressed to a user.
func (r *SQLitePendingShareRepository) ListByGrantee(ctx context.Context, granteeID uuid.UUID) ([]*hostsDomain.PendingShare, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+pendingShareColumns+` FROM pending_shares WHERE grantee_user_id = ?`,
		granteeID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending shares")
	}
	defer func() { _ = rows.Close() }()

	pendings := make([]*hostsDomain.PendingShare, 0)
	for rows.Next() {
		pending, err := scanPendingShare(rows)
		if err != nil {
			return nil, err
		}
		pendings = append(pendings, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate pending shares")
	}
	return pendings, nil
}

// Delete removes one pending row after its promotion.
func (r *SQLitePendingShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM pending_shares WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete pending share")
	}
	return nil
}

// DeleteByGrantee removes every pending row addressed to a user.
func (r *SQLitePendingShareRepository) DeleteByGrantee(ctx context.Context, granteeID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM pending_shares WHERE grantee_user_id = ?`, granteeID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete pending shares for grantee")
	}
	return nil
}

func scanPendingShare(row rowScanner) (*hostsDomain.PendingShare, error) {
	var (
		pending    hostsDomain.PendingShare
		rawID      string
		rawGrantID string
		rawHostID  string
		rawGrantee string
	)
	err := row.Scan(
		&rawID,
		&rawGrantID,
		&rawHostID,
		&rawGrantee,
		&pending.EntityKind,
		&pending.RecordID,
		&pending.Field,
		&pending.Ciphertext,
		&pending.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "pending share not found")
		}
		return nil, apperrors.Wrap(err, "failed to scan pending share")
	}

	if pending.ID, err = uuid.Parse(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse pending share id")
	}
	if pending.GrantID, err = uuid.Parse(rawGrantID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse pending share grant id")
	}
	if pending.HostID, err = uuid.Parse(rawHostID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse pending share host id")
	}
	if pending.GranteeUserID, err = uuid.Parse(rawGrantee); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse pending share grantee id")
	}
	return &pending, nil
}
