// Package testutil provides helpers for database integration tests.
//
// Each test gets its own in-memory SQLite database with the full schema
// applied:
//
//	db := testutil.SetupDB(t)
//
// The connection is closed automatically when the test finishes. Fixture
// helpers exist for rows that foreign keys point at:
//
//	userID := testutil.CreateTestUser(t, db, "alice")
//	hostID := testutil.CreateTestHost(t, db, userID, "web-01")
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sshdeck/sshdeck/internal/database"
)

var dbCounter atomic.Int64

// SetupDB opens a fresh in-memory database, applies migrations, and
// registers cleanup on the test.
func SetupDB(t *testing.T) *sql.DB {
	t.Helper()

	name := fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), dbCounter.Add(1))
	db, err := database.Connect(database.Config{Name: name})
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		_ = db.Close()
	})

	err = database.Migrate(db)
	require.NoError(t, err, "failed to run migrations")

	return db
}

// Logger returns a discard logger for wiring components under test.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// CreateTestUser inserts a minimal active user and returns its id.
func CreateTestUser(t *testing.T, db *sql.DB, name string) uuid.UUID {
	t.Helper()

	userID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, name, verifier, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		userID.String(), name, "test-verifier", now, now,
	)
	require.NoError(t, err, "failed to create test user: "+name)
	return userID
}

// CreateTestHost inserts a minimal host owned by userID and returns its id.
func CreateTestHost(t *testing.T, db *sql.DB, userID uuid.UUID, name string) uuid.UUID {
	t.Helper()

	hostID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO hosts (id, user_id, name, address, port, created_at, updated_at)
		 VALUES (?, ?, ?, '127.0.0.1', 22, ?, ?)`,
		hostID.String(), userID.String(), name, now, now,
	)
	require.NoError(t, err, "failed to create test host: "+name)
	return hostID
}

// CreateTestGrant inserts a host grant for a user principal and returns its id.
func CreateTestGrant(t *testing.T, db *sql.DB, hostID, granteeID uuid.UUID, level string) uuid.UUID {
	t.Helper()

	grantID := uuid.Must(uuid.NewV7())
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO host_grants (id, host_id, principal_kind, principal_id, level, created_at)
		 VALUES (?, ?, 'user', ?, ?, ?)`,
		grantID.String(), hostID.String(), granteeID.String(), level, time.Now().UTC(),
	)
	require.NoError(t, err, "failed to create test grant")
	return grantID
}

// CreateTestRole inserts a role and returns its id.
func CreateTestRole(t *testing.T, db *sql.DB, name string) uuid.UUID {
	t.Helper()

	roleID := uuid.Must(uuid.NewV7())
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		roleID.String(), name, time.Now().UTC(),
	)
	require.NoError(t, err, "failed to create test role: "+name)
	return roleID
}

// AssignTestRole links a user to a role.
func AssignTestRole(t *testing.T, db *sql.DB, userID, roleID uuid.UUID) {
	t.Helper()

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`,
		userID.String(), roleID.String(),
	)
	require.NoError(t, err, "failed to assign test role")
}
