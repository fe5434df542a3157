// Package repository implements SQLite persistence for the host inventory:
// hosts, credentials, roles, grants, and shared-secret rows. All
// repositories honor transaction context via database.GetTx.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

const hostColumns = `id, user_id, name, address, port, username, auth_type, credential_id,
	password, private_key, key_passphrase, sudo_password,
	proxy_host, proxy_port, proxy_username, proxy_password,
	autostart, autostart_password, autostart_private_key, autostart_key_passphrase,
	created_at, updated_at`

// SQLiteHostRepository stores hosts. Secret columns hold ciphertext; the
// repository never sees plaintext.
type SQLiteHostRepository struct {
	db *sql.DB
}

func NewSQLiteHostRepository(db *sql.DB) *SQLiteHostRepository {
	return &SQLiteHostRepository{db: db}
}

func (r *SQLiteHostRepository) Create(ctx context.Context, host *hostsDomain.Host) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO hosts (` + hostColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		host.ID.String(),
		host.UserID.String(),
		host.Name,
		host.Address,
		host.Port,
		host.Username,
		string(host.AuthType),
		uuidPtrToString(host.CredentialID),
		host.Password,
		host.PrivateKey,
		host.KeyPassphrase,
		host.SudoPassword,
		host.ProxyHost,
		host.ProxyPort,
		host.ProxyUsername,
		host.ProxyPassword,
		host.Autostart,
		host.AutostartPassword,
		host.AutostartPrivateKey,
		host.AutostartKeyPassphrase,
		host.CreatedAt,
		host.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create host")
	}
	return nil
}

func (r *SQLiteHostRepository) Get(ctx context.Context, id uuid.UUID) (*hostsDomain.Host, error) {
	querier := database.GetTx(ctx, r.db)

	row := querier.QueryRowContext(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = ?`, id.String())
	return scanHost(row)
}

func (r *SQLiteHostRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*hostsDomain.Host, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE user_id = ? ORDER BY name`, userID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list hosts")
	}
	defer func() { _ = rows.Close() }()

	return collectHosts(rows)
}

// ListByIDs returns the hosts with the given IDs, for resolving shared host
// views. Missing IDs are silently absent from the result.
func (r *SQLiteHostRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*hostsDomain.Host, error) {
	if len(ids) == 0 {
		return []*hostsDomain.Host{}, nil
	}

	querier := database.GetTx(ctx, r.db)

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	rows, err := querier.QueryContext(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE id IN (`+strings.Join(placeholders, ", ")+`) ORDER BY name`,
		args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list hosts by ids")
	}
	defer func() { _ = rows.Close() }()

	return collectHosts(rows)
}

func (r *SQLiteHostRepository) Update(ctx context.Context, host *hostsDomain.Host) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE hosts
			  SET name = ?, address = ?, port = ?, username = ?, auth_type = ?, credential_id = ?,
			      password = ?, private_key = ?, key_passphrase = ?, sudo_password = ?,
			      proxy_host = ?, proxy_port = ?, proxy_username = ?, proxy_password = ?,
			      autostart = ?, autostart_password = ?, autostart_private_key = ?,
			      autostart_key_passphrase = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		host.Name,
		host.Address,
		host.Port,
		host.Username,
		string(host.AuthType),
		uuidPtrToString(host.CredentialID),
		host.Password,
		host.PrivateKey,
		host.KeyPassphrase,
		host.SudoPassword,
		host.ProxyHost,
		host.ProxyPort,
		host.ProxyUsername,
		host.ProxyPassword,
		host.Autostart,
		host.AutostartPassword,
		host.AutostartPrivateKey,
		host.AutostartKeyPassphrase,
		host.UpdatedAt,
		host.ID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update host")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check host update")
	}
	if affected == 0 {
		return hostsDomain.ErrHostNotFound
	}
	return nil
}

// Delete removes the host row. Grants, shared secrets, and pending shares
// referencing it go with it through foreign key cascades.
func (r *SQLiteHostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete host")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check host delete")
	}
	if affected == 0 {
		return hostsDomain.ErrHostNotFound
	}
	return nil
}

// DeleteByUser removes every host owned by a user. Used by the destructive
// reset path.
func (r *SQLiteHostRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM hosts WHERE user_id = ?`, userID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete hosts for user")
	}
	return nil
}

func collectHosts(rows *sql.Rows) ([]*hostsDomain.Host, error) {
	hosts := make([]*hostsDomain.Host, 0)
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate hosts")
	}
	return hosts, nil
}

func scanHost(row rowScanner) (*hostsDomain.Host, error) {
	var (
		host            hostsDomain.Host
		rawID           string
		rawUserID       string
		rawAuthType     string
		rawCredentialID sql.NullString
	)
	err := row.Scan(
		&rawID,
		&rawUserID,
		&host.Name,
		&host.Address,
		&host.Port,
		&host.Username,
		&rawAuthType,
		&rawCredentialID,
		&host.Password,
		&host.PrivateKey,
		&host.KeyPassphrase,
		&host.SudoPassword,
		&host.ProxyHost,
		&host.ProxyPort,
		&host.ProxyUsername,
		&host.ProxyPassword,
		&host.Autostart,
		&host.AutostartPassword,
		&host.AutostartPrivateKey,
		&host.AutostartKeyPassphrase,
		&host.CreatedAt,
		&host.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, hostsDomain.ErrHostNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan host")
	}

	host.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse host id")
	}
	host.UserID, err = uuid.Parse(rawUserID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse host user id")
	}
	host.AuthType = hostsDomain.AuthType(rawAuthType)

	if rawCredentialID.Valid && rawCredentialID.String != "" {
		credentialID, err := uuid.Parse(rawCredentialID.String)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse host credential id")
		}
		host.CredentialID = &credentialID
	}
	return &host, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func uuidPtrToString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
