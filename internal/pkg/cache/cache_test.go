package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryCache interface {
	Get(ctx context.Context, employeeID, key string) (report.SummaryStats, int64, bool, error)
	Set(ctx context.Context, employeeID, key string, gen int64, stats report.SummaryStats) error
	Invalidate(ctx context.Context, employeeID string) error
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedis(client, time.Minute)
}

func caches(t *testing.T) map[string]summaryCache {
	_, r := setupMiniredis(t)
	return map[string]summaryCache{
		"memory": NewMemory(time.Minute),
		"redis":  r,
	}
}

func sampleStats() report.SummaryStats {
	return report.SummaryStats{
		EmployeeID:         "emp-1",
		StartDate:          "2024-02-01",
		EndDate:            "2024-02-01",
		DaysWorked:         1,
		TotalHours:         8.5,
		AverageHoursPerDay: 8.5,
	}
}

func TestCache_ReadThrough(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, gen, hit, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)
			assert.False(t, hit)

			require.NoError(t, c.Set(ctx, "emp-1", "k", gen, sampleStats()))

			got, _, hit, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)
			assert.True(t, hit)
			assert.Equal(t, sampleStats(), got)
		})
	}
}

func TestCache_InvalidateDropsEntries(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, gen, _, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)
			require.NoError(t, c.Set(ctx, "emp-1", "k", gen, sampleStats()))
			require.NoError(t, c.Set(ctx, "emp-2", "k", 0, sampleStats()))

			require.NoError(t, c.Invalidate(ctx, "emp-1"))

			_, _, hit, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)
			assert.False(t, hit)

			// Other employees keep their entries.
			_, _, hit, err = c.Get(ctx, "emp-2", "k")
			require.NoError(t, err)
			assert.True(t, hit)
		})
	}
}

func TestCache_StaleSetIsNeverServed(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, staleGen, _, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)

			// A write lands between the read and the Set.
			require.NoError(t, c.Invalidate(ctx, "emp-1"))
			require.NoError(t, c.Set(ctx, "emp-1", "k", staleGen, sampleStats()))

			_, gen, hit, err := c.Get(ctx, "emp-1", "k")
			require.NoError(t, err)
			assert.False(t, hit)
			assert.Greater(t, gen, staleGen)
		})
	}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "emp-1", "k", 0, sampleStats()))
	_, _, hit, _ := m.Get(ctx, "emp-1", "k")
	assert.True(t, hit)

	now = now.Add(2 * time.Minute)
	_, _, hit, _ = m.Get(ctx, "emp-1", "k")
	assert.False(t, hit)
}

func TestRedis_TTL(t *testing.T) {
	mr, r := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "emp-1", "k", 0, sampleStats()))
	mr.FastForward(2 * time.Minute)

	_, _, hit, err := r.Get(ctx, "emp-1", "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
