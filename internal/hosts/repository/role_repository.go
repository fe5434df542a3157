package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

// SQLiteRoleRepository stores roles and role memberships.
type SQLiteRoleRepository struct {
	db *sql.DB
}

func NewSQLiteRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

func (r *SQLiteRoleRepository) Create(ctx context.Context, role *hostsDomain.Role) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		role.ID.String(), role.Name, role.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return hostsDomain.ErrRoleNameTaken
		}
		return apperrors.Wrap(err, "failed to create role")
	}
	return nil
}

func (r *SQLiteRoleRepository) Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Role, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM roles WHERE id = ?`, id.String())
	return scanRole(row)
}

func (r *SQLiteRoleRepository) List(ctx context.Context) ([]*hostsDomain.Role, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list roles")
	}
	defer func() { _ = rows.Close() }()

	roles := make([]*hostsDomain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate roles")
	}
	return roles, nil
}

// Delete removes the role. Memberships cascade; grants held by the role are
// removed by the use case before this call.
func (r *SQLiteRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete role")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check role delete")
	}
	if affected == 0 {
		return hostsDomain.ErrRoleNotFound
	}
	return nil
}

// AssignUser adds a user to a role. Assigning twice is a no-op.
func (r *SQLiteRoleRepository) AssignUser(ctx context.Context, roleID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`,
		userID.String(), roleID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to assign role")
	}
	return nil
}

// UnassignUser removes a user from a role.
func (r *SQLiteRoleRepository) UnassignUser(ctx context.Context, roleID, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID.String(), roleID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to unassign role")
	}
	return nil
}

// ListRoleIDsForUser returns the roles a user belongs to.
func (r *SQLiteRoleRepository) ListRoleIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list roles for user")
	}
	defer func() { _ = rows.Close() }()

	return collectUUIDs(rows, "role id")
}

// ListMemberIDs returns the users belonging to a role.
func (r *SQLiteRoleRepository) ListMemberIDs(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT user_id FROM user_roles WHERE role_id = ?`, roleID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list role members")
	}
	defer func() { _ = rows.Close() }()

	return collectUUIDs(rows, "user id")
}

func collectUUIDs(rows *sql.Rows, what string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, apperrors.Wrapf(err, "failed to scan %s", what)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to parse %s", what)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(err, "failed to iterate %s rows", what)
	}
	return ids, nil
}

func scanRole(row rowScanner) (*hostsDomain.Role, error) {
	var (
		role  hostsDomain.Role
		rawID string
	)
	err := row.Scan(&rawID, &role.Name, &role.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, hostsDomain.ErrRoleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan role")
	}

	role.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse role id")
	}
	return &role, nil
}
