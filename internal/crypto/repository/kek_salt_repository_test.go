package repository

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/testutil"
)

func testSalt(t *testing.T, userID uuid.UUID) *cryptoDomain.KekSalt {
	t.Helper()

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	return &cryptoDomain.KekSalt{
		UserID: userID,
		Salt:   salt,
		Params: cryptoDomain.KDFParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: 4,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteKekSaltRepository_CreateGet(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteKekSaltRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	salt := testSalt(t, userID)

	require.NoError(t, repo.Create(ctx, salt))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, salt.UserID, got.UserID)
	assert.Equal(t, salt.Salt, got.Salt)
	assert.Equal(t, salt.Params, got.Params)
}

func TestSQLiteKekSaltRepository_GetNotFound(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteKekSaltRepository(db)

	_, err := repo.Get(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteKekSaltRepository_Replace(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteKekSaltRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	require.NoError(t, repo.Create(ctx, testSalt(t, userID)))

	next := testSalt(t, userID)
	next.Params.Iterations = 4
	require.NoError(t, repo.Replace(ctx, next))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, next.Salt, got.Salt)
	assert.Equal(t, uint32(4), got.Params.Iterations)
}

func TestSQLiteKekSaltRepository_ReplaceMissing(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteKekSaltRepository(db)

	userID := testutil.CreateTestUser(t, db, "alice")
	err := repo.Replace(context.Background(), testSalt(t, userID))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteKekSaltRepository_Delete(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteKekSaltRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	require.NoError(t, repo.Create(ctx, testSalt(t, userID)))
	require.NoError(t, repo.Delete(ctx, userID))

	_, err := repo.Get(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
