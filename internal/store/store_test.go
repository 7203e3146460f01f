package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20250601000001",
		"20250601000002",
		"20250601000003",
		"20250601000004",
	}, applied)

	for _, table := range []string{"user_profiles", "user_signups", "user_activity_log", "auth_users"} {
		var count int
		err := db.NewSelect().
			ColumnExpr("count(*)").
			TableExpr(table).
			Scan(ctx, &count)
		require.NoError(t, err, table)
		assert.Zero(t, count, table)
	}

	applied, err = Migrate(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("PostgreSQL://localhost/db"))
	assert.False(t, isPostgres("file:authflow.db?cache=shared"))
	assert.False(t, isPostgres(":memory:"))
}

func TestOpenRedisRequiresURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), "")
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
