// Package repository implements SQLite persistence for key material: the
// per-user KDF salts and the sealed (wrapped) data encryption keys.
//
// All repositories are transaction-aware via database.GetTx, so callers can
// compose them inside TxManager.WithTx for atomic operations such as
// password change (salt replace + DEK rewrap in one transaction).
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// SQLiteKekSaltRepository stores one KDF salt row per user, keyed by user id.
type SQLiteKekSaltRepository struct {
	db *sql.DB
}

func NewSQLiteKekSaltRepository(db *sql.DB) *SQLiteKekSaltRepository {
	return &SQLiteKekSaltRepository{db: db}
}

func (r *SQLiteKekSaltRepository) Create(ctx context.Context, salt *cryptoDomain.KekSalt) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO kek_salts (user_id, salt, kdf_memory_kib, kdf_iterations, kdf_parallelism, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		salt.UserID.String(),
		salt.Salt,
		salt.Params.MemoryKiB,
		salt.Params.Iterations,
		salt.Params.Parallelism,
		salt.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create kek salt")
	}
	return nil
}

func (r *SQLiteKekSaltRepository) Get(ctx context.Context, userID uuid.UUID) (*cryptoDomain.KekSalt, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT user_id, salt, kdf_memory_kib, kdf_iterations, kdf_parallelism, created_at
			  FROM kek_salts WHERE user_id = ?`

	var (
		salt  cryptoDomain.KekSalt
		rawID string
	)
	err := querier.QueryRowContext(ctx, query, userID.String()).Scan(
		&rawID,
		&salt.Salt,
		&salt.Params.MemoryKiB,
		&salt.Params.Iterations,
		&salt.Params.Parallelism,
		&salt.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "kek salt not found")
		}
		return nil, apperrors.Wrap(err, "failed to get kek salt")
	}

	salt.UserID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse kek salt user id")
	}
	return &salt, nil
}

// Replace overwrites the user's salt and parameters. Used by password change
// and destructive reset, which both mint a fresh salt.
func (r *SQLiteKekSaltRepository) Replace(ctx context.Context, salt *cryptoDomain.KekSalt) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE kek_salts
			  SET salt = ?, kdf_memory_kib = ?, kdf_iterations = ?, kdf_parallelism = ?, created_at = ?
			  WHERE user_id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		salt.Salt,
		salt.Params.MemoryKiB,
		salt.Params.Iterations,
		salt.Params.Parallelism,
		salt.CreatedAt,
		salt.UserID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to replace kek salt")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check kek salt replace")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "kek salt not found")
	}
	return nil
}

func (r *SQLiteKekSaltRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM kek_salts WHERE user_id = ?`, userID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete kek salt")
	}
	return nil
}
