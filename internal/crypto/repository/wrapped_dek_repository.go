package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// SQLiteWrappedDekRepository stores the sealed form of each user's DEK.
// One row per user; rewrapping replaces the row in place.
type SQLiteWrappedDekRepository struct {
	db *sql.DB
}

func NewSQLiteWrappedDekRepository(db *sql.DB) *SQLiteWrappedDekRepository {
	return &SQLiteWrappedDekRepository{db: db}
}

func (r *SQLiteWrappedDekRepository) Create(ctx context.Context, dek *cryptoDomain.WrappedDek) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO wrapped_deks (user_id, ciphertext, nonce, wrap_kind, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		dek.UserID.String(),
		dek.Ciphertext,
		dek.Nonce,
		string(dek.WrapKind),
		dek.CreatedAt,
		dek.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create wrapped dek")
	}
	return nil
}

func (r *SQLiteWrappedDekRepository) Get(ctx context.Context, userID uuid.UUID) (*cryptoDomain.WrappedDek, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT user_id, ciphertext, nonce, wrap_kind, created_at, updated_at
			  FROM wrapped_deks WHERE user_id = ?`

	var (
		dek      cryptoDomain.WrappedDek
		rawID    string
		wrapKind string
	)
	err := querier.QueryRowContext(ctx, query, userID.String()).Scan(
		&rawID,
		&dek.Ciphertext,
		&dek.Nonce,
		&wrapKind,
		&dek.CreatedAt,
		&dek.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "wrapped dek not found")
		}
		return nil, apperrors.Wrap(err, "failed to get wrapped dek")
	}

	dek.WrapKind = cryptoDomain.WrapKind(wrapKind)
	dek.UserID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse wrapped dek user id")
	}
	return &dek, nil
}

// Replace swaps the sealed bytes for a user, keeping the same underlying DEK
// wrapped under a new KEK. Runs inside the password-change transaction.
func (r *SQLiteWrappedDekRepository) Replace(ctx context.Context, dek *cryptoDomain.WrappedDek) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE wrapped_deks
			  SET ciphertext = ?, nonce = ?, wrap_kind = ?, updated_at = ?
			  WHERE user_id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		dek.Ciphertext,
		dek.Nonce,
		string(dek.WrapKind),
		dek.UpdatedAt,
		dek.UserID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to replace wrapped dek")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check wrapped dek replace")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "wrapped dek not found")
	}
	return nil
}

func (r *SQLiteWrappedDekRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM wrapped_deks WHERE user_id = ?`, userID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete wrapped dek")
	}
	return nil
}
