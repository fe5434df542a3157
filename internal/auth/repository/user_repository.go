// Package repository implements SQLite persistence for users and sessions.
// All repositories honor transaction context via database.GetTx.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

const userColumns = `id, name, verifier, is_admin, is_external, external_subject,
	totp_enabled, totp_secret, totp_backup_codes, created_at, updated_at`

// SQLiteUserRepository stores user accounts.
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *authDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		user.ID.String(),
		user.Name,
		user.Verifier,
		user.IsAdmin,
		user.IsExternal,
		user.ExternalSubject,
		user.TOTPEnabled,
		user.TOTPSecret,
		user.TOTPBackupCodes,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return authDomain.ErrUserNameTaken
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

func (r *SQLiteUserRepository) Get(ctx context.Context, id uuid.UUID) (*authDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (r *SQLiteUserRepository) GetByName(ctx context.Context, name string) (*authDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
	return scanUser(row)
}

func (r *SQLiteUserRepository) GetByExternalSubject(ctx context.Context, subject string) (*authDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_external = 1 AND external_subject = ?`, subject)
	return scanUser(row)
}

func (r *SQLiteUserRepository) List(ctx context.Context, limit, offset int) ([]*authDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	defer func() { _ = rows.Close() }()

	users := make([]*authDomain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate users")
	}
	return users, nil
}

func (r *SQLiteUserRepository) Update(ctx context.Context, user *authDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users
			  SET name = ?, verifier = ?, is_admin = ?, is_external = ?, external_subject = ?,
			      totp_enabled = ?, totp_secret = ?, totp_backup_codes = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		user.Name,
		user.Verifier,
		user.IsAdmin,
		user.IsExternal,
		user.ExternalSubject,
		user.TOTPEnabled,
		user.TOTPSecret,
		user.TOTPBackupCodes,
		user.UpdatedAt,
		user.ID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check user update")
	}
	if affected == 0 {
		return authDomain.ErrUserNotFound
	}
	return nil
}

// Delete removes the user row. Key material, sessions, hosts, and everything
// else hanging off the user goes with it through foreign key cascades.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check user delete")
	}
	if affected == 0 {
		return authDomain.ErrUserNotFound
	}
	return nil
}

// CountAdmins returns the number of administrator accounts.
func (r *SQLiteUserRepository) CountAdmins(ctx context.Context) (int, error) {
	querier := database.GetTx(ctx, r.db)

	var count int
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count admins")
	}
	return count, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*authDomain.User, error) {
	var (
		user  authDomain.User
		rawID string
	)
	err := row.Scan(
		&rawID,
		&user.Name,
		&user.Verifier,
		&user.IsAdmin,
		&user.IsExternal,
		&user.ExternalSubject,
		&user.TOTPEnabled,
		&user.TOTPSecret,
		&user.TOTPBackupCodes,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authDomain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan user")
	}

	user.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse user id")
	}
	return &user, nil
}
