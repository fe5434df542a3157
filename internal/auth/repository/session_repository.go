package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

const sessionColumns = `id, user_id, device_class, device_desc, created_at, expires_at, last_activity_at, revoked_at`

// SQLiteSessionRepository stores login sessions.
type SQLiteSessionRepository struct {
	db *sql.DB
}

func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, session *authDomain.Session) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO sessions (` + sessionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		session.ID.String(),
		session.UserID.String(),
		string(session.DeviceClass),
		session.DeviceDesc,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastActivityAt,
		session.RevokedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create session")
	}
	return nil
}

func (r *SQLiteSessionRepository) Get(ctx context.Context, id uuid.UUID) (*authDomain.Session, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String())
	return scanSession(row)
}

// ListByUser returns the user's live sessions ordered oldest first, so the
// session cap can evict from the front.
func (r *SQLiteSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*authDomain.Session, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at ASC`,
		userID.String(), time.Now().UTC())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sessions")
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*authDomain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate sessions")
	}
	return sessions, nil
}

// ListAll returns every live session. Admin surface.
func (r *SQLiteSessionRepository) ListAll(ctx context.Context) ([]*authDomain.Session, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at ASC`,
		time.Now().UTC())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list all sessions")
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*authDomain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate sessions")
	}
	return sessions, nil
}

func (r *SQLiteSessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE id = ?`, at, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to touch session")
	}
	return nil
}

func (r *SQLiteSessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, at, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke session")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check session revoke")
	}
	if affected == 0 {
		return authDomain.ErrSessionNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`, at, userID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke user sessions")
	}
	return nil
}

// DeleteDead removes expired and revoked rows. The sweeper calls this; live
// sessions are never touched.
func (r *SQLiteSessionRepository) DeleteDead(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? OR revoked_at IS NOT NULL`, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete dead sessions")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted sessions")
	}
	return affected, nil
}

func scanSession(row rowScanner) (*authDomain.Session, error) {
	var (
		session     authDomain.Session
		rawID       string
		rawUserID   string
		deviceClass string
		revokedAt   sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&rawUserID,
		&deviceClass,
		&session.DeviceDesc,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&revokedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authDomain.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan session")
	}

	session.DeviceClass = authDomain.DeviceClass(deviceClass)
	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}

	session.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse session id")
	}
	session.UserID, err = uuid.Parse(rawUserID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse session user id")
	}
	return &session, nil
}
