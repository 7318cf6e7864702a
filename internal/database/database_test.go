package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"productapi/internal/audit"
	"productapi/internal/config"
	"productapi/internal/models"
	"productapi/internal/repositories"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, LogLevel("SILENT"))
	assert.Equal(t, gormlogger.Info, LogLevel("info"))
	assert.Equal(t, gormlogger.Warn, LogLevel("bogus"))
}

func TestOpen_RejectsMemoryDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: config.DriverMemory})
	assert.Error(t, err)
}

func TestMigrateEnsureAndSeed(t *testing.T) {
	ctx := context.Background()
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))

	store := repositories.NewStore(
		repositories.NewGORMProductRepository(db),
		repositories.NewGORMUserRepository(db),
		repositories.NewGORMCommitter(db),
		audit.New().Hook(),
	)

	require.NoError(t, EnsureSystemUser(ctx, store))
	require.NoError(t, EnsureSystemUser(ctx, store), "second call is a no-op")

	system, err := store.Users().GetByID(ctx, models.SystemActorID)
	require.NoError(t, err)
	assert.True(t, system.IsActive)

	n, err := Seed(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, len(SeedProducts), n)

	n, err = Seed(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := store.Products().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(SeedProducts))
	for _, p := range products {
		assert.Equal(t, models.SystemActorID, p.CreatedByID)
		assert.False(t, p.CreatedAtUtc.IsZero())
	}
}

func TestSeed_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryBackedStore(repositories.NewMemoryStore(), audit.New().Hook())

	n, err := Seed(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
