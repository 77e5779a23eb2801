//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/menuchat/db"
	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/storage/menufile"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "menuchat",
				"POSTGRES_PASSWORD": "menuchat",
				"POSTGRES_DB":       "menuchat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://menuchat:menuchat@%s:%s/menuchat?sslmode=disable", host, port.Port())
	pool, err := NewPool(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestCatalogRepository_RoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewCatalogRepository(pool)

	want, err := menufile.NewBytes(db.Menu).Load(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Replace(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for ci := range want {
		assert.Equal(t, want[ci].Name, got[ci].Name)
		require.Len(t, got[ci].Items, len(want[ci].Items))
		for ii, w := range want[ci].Items {
			g := got[ci].Items[ii]
			assert.Equal(t, w.ID, g.ID)
			assert.Equal(t, w.Name, g.Name)
			assert.True(t, w.Price.Equal(g.Price), "%s price %s != %s", w.ID, w.Price, g.Price)
			assert.Equal(t, w.Calories, g.Calories)
			assert.Equal(t, w.Popular, g.Popular)
			assert.ElementsMatch(t, w.Tags, g.Tags)
		}
	}

	cat, err := catalog.Load(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 25, cat.Len())
}

func TestCatalogRepository_ReplaceOverwrites(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewCatalogRepository(pool)

	require.NoError(t, repo.Replace(ctx, []catalog.Category{
		{Name: "Old", Items: []catalog.Item{{ID: "old", Name: "Old Item", Price: decimal.NewFromInt(1)}}},
	}))
	require.NoError(t, repo.Replace(ctx, []catalog.Category{
		{Name: "Empty"},
		{Name: "New", Items: []catalog.Item{{ID: "new", Name: "New Item", Price: decimal.RequireFromString("2.50"), Calories: 10}}},
	}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Empty", got[0].Name)
	assert.Empty(t, got[0].Items)
	require.Len(t, got[1].Items, 1)
	assert.Equal(t, "new", got[1].Items[0].ID)
	assert.Empty(t, got[1].Items[0].Tags)
}
