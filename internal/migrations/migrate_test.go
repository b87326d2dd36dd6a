package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Simplici0/forma/internal/db"
)

func TestUpAndDown(t *testing.T) {
	ctx := context.Background()
	database, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, Up(ctx, database.DB))

	version, err := Version(ctx, database.DB)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)

	_, err = database.ExecContext(ctx, `INSERT INTO materials (material_key, name, base_cost) VALUES ('180', 'Flow', 399)`)
	require.NoError(t, err)

	require.NoError(t, Down(ctx, database.DB))
	version, err = Version(ctx, database.DB)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	_, err = database.ExecContext(ctx, `SELECT 1 FROM orders`)
	require.Error(t, err)
}
