package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// SQLiteUserDataRepository wipes the ancillary per-user tables whose rows
// carry ciphertext under the user's DEK. The destructive reset path runs
// this in the same transaction that mints the new key.
type SQLiteUserDataRepository struct {
	db *sql.DB
}

func NewSQLiteUserDataRepository(db *sql.DB) *SQLiteUserDataRepository {
	return &SQLiteUserDataRepository{db: db}
}

// WipeByUser deletes every row encrypted under the user's DEK outside the
// host and credential tables.
func (r *SQLiteUserDataRepository) WipeByUser(ctx context.Context, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	tables := []string{
		"session_recordings",
		"command_history",
		"file_bookmarks",
		"snippets",
		"folders",
		"settings",
		"external_tokens",
		"dashboard_prefs",
	}

	for _, table := range tables {
		if _, err := querier.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE user_id = ?`, userID.String()); err != nil {
			return apperrors.Wrapf(err, "failed to wipe %s", table)
		}
	}
	return nil
}
