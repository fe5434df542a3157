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
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	"github.com/sshdeck/sshdeck/internal/testutil"
)

func testWrappedDek(t *testing.T, userID uuid.UUID) *cryptoDomain.WrappedDek {
	t.Helper()

	ciphertext := make([]byte, 48)
	_, err := rand.Read(ciphertext)
	require.NoError(t, err)

	nonce := make([]byte, 12)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	return &cryptoDomain.WrappedDek{
		UserID:     userID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		WrapKind:   cryptoDomain.WrapKindKEK,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLiteWrappedDekRepository_CreateGet(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	dek := testWrappedDek(t, userID)

	require.NoError(t, repo.Create(ctx, dek))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, dek.UserID, got.UserID)
	assert.Equal(t, dek.Ciphertext, got.Ciphertext)
	assert.Equal(t, dek.Nonce, got.Nonce)
	assert.Equal(t, cryptoDomain.WrapKindKEK, got.WrapKind)
}

func TestSQLiteWrappedDekRepository_GetNotFound(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)

	_, err := repo.Get(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteWrappedDekRepository_Replace(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	require.NoError(t, repo.Create(ctx, testWrappedDek(t, userID)))

	next := testWrappedDek(t, userID)
	next.WrapKind = cryptoDomain.WrapKindExternal
	require.NoError(t, repo.Replace(ctx, next))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, next.Ciphertext, got.Ciphertext)
	assert.Equal(t, cryptoDomain.WrapKindExternal, got.WrapKind)
}

func TestSQLiteWrappedDekRepository_ReplaceMissing(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)

	userID := testutil.CreateTestUser(t, db, "alice")
	err := repo.Replace(context.Background(), testWrappedDek(t, userID))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteWrappedDekRepository_Delete(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	require.NoError(t, repo.Create(ctx, testWrappedDek(t, userID)))
	require.NoError(t, repo.Delete(ctx, userID))

	_, err := repo.Get(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteWrappedDekRepository_TransactionRollback(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := NewSQLiteWrappedDekRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "alice")
	txManager := database.NewTxManager(db)

	err := txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, testWrappedDek(t, userID)); err != nil {
			return err
		}
		return apperrors.New("boom")
	})
	require.Error(t, err)

	_, err = repo.Get(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
