package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/repository"
	"github.com/medflow/medflow-warehouse/pkg/cache"
	"github.com/medflow/medflow-warehouse/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedFloor map[string]int64

func (f fixedFloor) Highest(ctx context.Context, prefix string, day time.Time) (int64, error) {
	return f[prefix], nil
}

func TestRedisSequencer_ResumesAfterStoredCodes(t *testing.T) {
	cfg := testutil.StartRedis(t)
	ctx := context.Background()

	client, err := cache.NewRedisClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	day := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	seq := repository.NewRedisSequencer(client).WithFloor(fixedFloor{"GR": 7})

	n, err := seq.Next(ctx, "GR", day)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	n, err = seq.Next(ctx, "GR", day)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	n, err = seq.Next(ctx, "GI", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// counters lost, e.g. after a Redis flush
	require.NoError(t, client.FlushDB(ctx).Err())
	seq.WithFloor(fixedFloor{"GR": 9})

	n, err = seq.Next(ctx, "GR", day)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	ttl, err := client.TTL(ctx, "warehouse:seq:GR:20250115").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
