package bootstrap

import (
	"context"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(redisURL string) *config.Config {
	return &config.Config{
		Env:      "test",
		DBDriver: "sqlite",
		DBPath:   ":memory:",
		RedisURL: redisURL,
	}
}

func TestInitRuntime_SeedsEmptyDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	db, rdb, err := InitRuntime(ctx, sqliteConfig(mr.Addr()), Options{SeedListings: 5, Seed: 42})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	var count int64
	require.NoError(t, db.Model(&models.Listing{}).Count(&count).Error)
	assert.EqualValues(t, 5, count)

	n, err := SeedIfEmpty(ctx, db, 5, 42)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated table is left alone")
}

func TestInitRuntime_WithoutSeeding(t *testing.T) {
	mr := miniredis.RunT(t)

	db, rdb, err := InitRuntime(context.Background(), sqliteConfig(mr.Addr()), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	var count int64
	require.NoError(t, db.Model(&models.Listing{}).Count(&count).Error)
	assert.Zero(t, count)
}
