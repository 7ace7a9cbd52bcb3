//go:build container
// +build container

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ridebot/internal/testhelpers"
	"ridebot/pkg/logger"
	"ridebot/storage"
	"ridebot/storage/postgres"
	"ridebot/storage/storagetest"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	url := testhelpers.StartPostgres(t)

	stg, err := postgres.New(ctx, url, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(stg.Close)

	storagetest.Run(t, func(t *testing.T) storage.IStorage {
		require.NoError(t, stg.Reset(ctx))
		return stg
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	url := testhelpers.StartPostgres(t)

	require.NoError(t, postgres.Migrate(url, logger.NewNop()))
	require.NoError(t, postgres.Migrate(url, logger.NewNop()))
}
