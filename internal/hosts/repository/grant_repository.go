package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

const grantColumns = `id, host_id, principal_kind, principal_id, level, expires_at, created_at`

// SQLiteGrantRepository stores host share grants.
type SQLiteGrantRepository struct {
	db *sql.DB
}

func NewSQLiteGrantRepository(db *sql.DB) *SQLiteGrantRepository {
	return &SQLiteGrantRepository{db: db}
}

func (r *SQLiteGrantRepository) Create(ctx context.Context, grant *hostsDomain.HostGrant) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO host_grants (` + grantColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		grant.ID.String(),
		grant.HostID.String(),
		string(grant.PrincipalKind),
		grant.PrincipalID.String(),
		string(grant.Level),
		grant.ExpiresAt,
		grant.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create grant")
	}
	return nil
}

func (r *SQLiteGrantRepository) Get(ctx context.Context, id uuid.UUID) (*hostsDomain.HostGrant, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM host_grants WHERE id = ?`, id.String())
	return scanGrant(row)
}

func (r *SQLiteGrantRepository) ListByHost(ctx context.Context, hostID uuid.UUID) ([]*hostsDomain.HostGrant, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM host_grants WHERE host_id = ? ORDER BY created_at`, hostID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list grants")
	}
	defer func() { _ = rows.Close() }()

	return collectGrants(rows)
}

// ListActiveForPrincipals returns the unexpired grants on a host held by any
// of the given principals. The permission resolver passes the user plus the
// user's role memberships.
func (r *SQLiteGrantRepository) ListActiveForPrincipals(
	ctx context.Context,
	hostID uuid.UUID,
	userID uuid.UUID,
	roleIDs []uuid.UUID,
	now time.Time,
) ([]*hostsDomain.HostGrant, error) {
	querier := database.GetTx(ctx, r.db)

	conditions := []string{`(principal_kind = 'user' AND principal_id = ?)`}
	args := []any{hostID.String(), userID.String()}
	if len(roleIDs) > 0 {
		placeholders := make([]string, len(roleIDs))
		for i, roleID := range roleIDs {
			placeholders[i] = "?"
			args = append(args, roleID.String())
		}
		conditions = append(conditions,
			`(principal_kind = 'role' AND principal_id IN (`+strings.Join(placeholders, ", ")+`))`)
	}
	args = append(args, now)

	query := `SELECT ` + grantColumns + ` FROM host_grants
			  WHERE host_id = ? AND (` + strings.Join(conditions, " OR ") + `)
			    AND (expires_at IS NULL OR expires_at > ?)
			  ORDER BY created_at`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active grants")
	}
	defer func() { _ = rows.Close() }()

	return collectGrants(rows)
}

// ListHostIDsForPrincipals returns the distinct hosts with an unexpired
// grant held by any of the given principals, for shared host listings.
func (r *SQLiteGrantRepository) ListHostIDsForPrincipals(
	ctx context.Context,
	userID uuid.UUID,
	roleIDs []uuid.UUID,
	now time.Time,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	conditions := []string{`(principal_kind = 'user' AND principal_id = ?)`}
	args := []any{userID.String()}
	if len(roleIDs) > 0 {
		placeholders := make([]string, len(roleIDs))
		for i, roleID := range roleIDs {
			placeholders[i] = "?"
			args = append(args, roleID.String())
		}
		conditions = append(conditions,
			`(principal_kind = 'role' AND principal_id IN (`+strings.Join(placeholders, ", ")+`))`)
	}
	args = append(args, now)

	query := `SELECT DISTINCT host_id FROM host_grants
			  WHERE (` + strings.Join(conditions, " OR ") + `)
			    AND (expires_at IS NULL OR expires_at > ?)`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list shared host ids")
	}
	defer func() { _ = rows.Close() }()

	hostIDs := make([]uuid.UUID, 0)
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan host id")
		}
		hostID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse host id")
		}
		hostIDs = append(hostIDs, hostID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate host ids")
	}
	return hostIDs, nil
}

// ListForPrincipal returns every grant held directly by a principal.
func (r *SQLiteGrantRepository) ListForPrincipal(ctx context.Context, kind hostsDomain.PrincipalKind, principalID uuid.UUID) ([]*hostsDomain.HostGrant, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM host_grants
		 WHERE principal_kind = ? AND principal_id = ? ORDER BY created_at`,
		string(kind), principalID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list grants for principal")
	}
	defer func() { _ = rows.Close() }()

	return collectGrants(rows)
}

// Delete removes the grant. Its shared-secret and pending rows go with it
// through foreign key cascades.
func (r *SQLiteGrantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM host_grants WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete grant")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check grant delete")
	}
	if affected == 0 {
		return hostsDomain.ErrGrantNotFound
	}
	return nil
}

// DeleteForPrincipal removes every grant held directly by a principal. Used
// when a user or role is destroyed.
func (r *SQLiteGrantRepository) DeleteForPrincipal(ctx context.Context, kind hostsDomain.PrincipalKind, principalID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		`DELETE FROM host_grants WHERE principal_kind = ? AND principal_id = ?`,
		string(kind), principalID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete grants for principal")
	}
	return nil
}

func collectGrants(rows *sql.Rows) ([]*hostsDomain.HostGrant, error) {
	grants := make([]*hostsDomain.HostGrant, 0)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate grants")
	}
	return grants, nil
}

func scanGrant(row rowScanner) (*hostsDomain.HostGrant, error) {
	var (
		grant            hostsDomain.HostGrant
		rawID            string
		rawHostID        string
		rawPrincipalKind string
		rawPrincipalID   string
		rawLevel         string
		expiresAt        sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&rawHostID,
		&rawPrincipalKind,
		&rawPrincipalID,
		&rawLevel,
		&expiresAt,
		&grant.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, hostsDomain.ErrGrantNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan grant")
	}

	grant.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse grant id")
	}
	grant.HostID, err = uuid.Parse(rawHostID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse grant host id")
	}
	grant.PrincipalID, err = uuid.Parse(rawPrincipalID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse grant principal id")
	}
	grant.PrincipalKind = hostsDomain.PrincipalKind(rawPrincipalKind)
	grant.Level = hostsDomain.GrantLevel(rawLevel)
	if expiresAt.Valid {
		grant.ExpiresAt = &expiresAt.Time
	}
	return &grant, nil
}
