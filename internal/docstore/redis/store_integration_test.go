//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vehicle-sanctions/internal/docstore"
	"vehicle-sanctions/internal/docstore/docstoretest"
	docredis "vehicle-sanctions/internal/docstore/redis"
	"vehicle-sanctions/pkg/platform/sentinel"
	"vehicle-sanctions/pkg/testutil/containers"
)

// sharedClient keeps the container client open between tests.
type sharedClient struct {
	*docredis.Store
}

func (sharedClient) Close() error { return nil }

func TestRedisStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	store := docredis.New(rc.Client)

	suite.Run(t, &docstoretest.Suite{NewStore: func() docstore.Store {
		require.NoError(t, rc.FlushAll(context.Background()))
		return sharedClient{store}
	}})
}

// TestQueryWatchesCollection verifies that a document added to a queried
// collection aborts the reading transaction.
func TestQueryWatchesCollection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(context.Background()))
	store := docredis.New(rc.Client)
	ctx := context.Background()

	require.NoError(t, store.RunBatch(ctx, func(b docstore.Batch) error {
		return b.Create("vehicles", "veh-1", docstore.Fields{"registrationStatus": "active"})
	}))

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Query(ctx, "violations", docstore.Where("vehicleId", docstore.OpEq, "veh-1")); err != nil {
			return err
		}
		if err := store.RunBatch(ctx, func(b docstore.Batch) error {
			return b.Create("violations", "vio-1", docstore.Fields{"vehicleId": "veh-1", "status": "confirmed"})
		}); err != nil {
			return err
		}
		return tx.Update("vehicles", "veh-1", docstore.Fields{"registrationStatus": "warned"})
	})
	require.ErrorIs(t, err, sentinel.ErrConflict)
}
