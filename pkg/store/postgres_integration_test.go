package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/planbridge/pkg/errors"
)

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("PLANBRIDGE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("PLANBRIDGE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)
	require.NoError(t, ApplyMigrations(ctx, db, Migrations()))
	// Second run is a no-op.
	require.NoError(t, ApplyMigrations(ctx, db, Migrations()))

	s := NewPostgresStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStoreApplySnapshot(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	_, err := s.ApplySnapshot(ctx, testSnapshot(), ApplyOptions{})
	require.NoError(t, err)

	data, err := s.LoadSnapshotData(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot().Data.Counts(), data.Counts())
	assert.Equal(t, "2024-01-02T03:04:05Z", data.Workspaces[0].CreatedAt)

	_, err = s.ApplySnapshot(ctx, testSnapshot(), ApplyOptions{Mode: ModeInsert})
	assert.Equal(t, errors.ErrCodeConflict, errors.GetCode(err))

	snap := testSnapshot()
	snap.Data.Stories = append(snap.Data.Stories, story("st-5", "ws-2", "missing"))
	_, err = s.ApplySnapshot(ctx, snap, ApplyOptions{})
	assert.Equal(t, errors.ErrCodeReferential, errors.GetCode(err))

	stories, err := s.ListStories(ctx, "ws-2")
	require.NoError(t, err)
	assert.Len(t, stories, 1, "failed import must roll back")

	require.NoError(t, s.Ping(ctx))
}
