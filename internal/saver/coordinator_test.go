package saver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sshdeck/sshdeck/internal/testutil"
)

// The coordinator spawns a flush loop per test; none may outlive its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFlush_WritesSnapshot(t *testing.T) {
	db := testutil.SetupDB(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")
	c := New(db, path, 50*time.Millisecond, time.Second, testutil.Logger())

	_, err := db.Exec(`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		"00000000-0000-0000-0000-000000000001", "ops", time.Now())
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMarkDirty_DebouncedFlush(t *testing.T) {
	db := testutil.SetupDB(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")
	c := New(db, path, 20*time.Millisecond, time.Second, testutil.Logger())

	go func() { _ = c.Run(context.Background()) }()
	defer c.Close()

	c.MarkDirty()
	c.MarkDirty()
	c.MarkDirty()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMarkDirty_MaxDelayCeiling(t *testing.T) {
	db := testutil.SetupDB(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")

	// A quiet window longer than the ceiling: the ceiling must win.
	c := New(db, path, time.Hour, 50*time.Millisecond, testutil.Logger())

	go func() { _ = c.Run(context.Background()) }()
	defer c.Close()

	c.MarkDirty()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_FlushesPendingChanges(t *testing.T) {
	db := testutil.SetupDB(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")
	c := New(db, path, time.Hour, time.Hour, testutil.Logger())

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	c.MarkDirty()
	c.Close()

	require.NoError(t, <-done)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestMarkDirty_NoChangesNoSnapshot(t *testing.T) {
	db := testutil.SetupDB(t)
	path := filepath.Join(t.TempDir(), "snapshot.db")
	c := New(db, path, 10*time.Millisecond, time.Second, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
