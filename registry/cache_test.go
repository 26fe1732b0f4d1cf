package registry

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testTable() *Table {
	table := NewTable("abc", 24)
	table.Put("mean", "s/0", &timedataset.TimeDataset{
		T: timedataset.GenerateHours(testStart, 3),
		Y: []float64{math.NaN(), 0.25, 1.0 / 3.0},
	})
	return table
}

func assertTablesEqual(t *testing.T, exp, res *Table) {
	t.Helper()
	assert.Equal(t, exp.Fingerprint, res.Fingerprint)
	assert.Equal(t, exp.Horizon, res.Horizon)
	expSeries, ok := exp.Get("mean", "s/0")
	require.True(t, ok)
	resSeries, ok := res.Get("mean", "s/0")
	require.True(t, ok)
	assert.Equal(t, expSeries.T, resSeries.T)
	require.Len(t, resSeries.Y, len(expSeries.Y))
	assert.True(t, math.IsNaN(resSeries.Y[0]))
	assert.Equal(t, expSeries.Y[1:], resSeries.Y[1:])
}

func TestValuesJSON(t *testing.T) {
	testData := map[string]struct {
		values   Values
		expected string
	}{
		"nil":     {values: nil, expected: `null`},
		"empty":   {values: Values{}, expected: `[]`},
		"missing": {values: Values{math.NaN(), 0.5, 1}, expected: `[null,0.5,1]`},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(td.values)
			require.NoError(t, err)
			assert.JSONEq(t, td.expected, string(data))

			var res Values
			require.NoError(t, json.Unmarshal(data, &res))
			require.Len(t, res, len(td.values))
			for i, v := range td.values {
				if math.IsNaN(v) {
					assert.True(t, math.IsNaN(res[i]))
					continue
				}
				assert.Equal(t, v, res[i])
			}
		})
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "predictions.json")
	cache := NewFileCache(path)

	_, err := cache.Load(ctx)
	assert.ErrorIs(t, err, ErrCacheNotFound)

	exp := testTable()
	require.NoError(t, cache.Save(ctx, exp))
	res, err := cache.Load(ctx)
	require.NoError(t, err)
	assertTablesEqual(t, exp, res)

	require.NoError(t, os.WriteFile(path, []byte(`{"fingerprint":`), 0o644))
	_, err = cache.Load(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheNotFound)
}

func TestNopCache(t *testing.T) {
	var cache NopCache
	assert.NoError(t, cache.Save(context.Background(), testTable()))
	_, err := cache.Load(context.Background())
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping redis integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := DialRedis(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, "stationcast:predictions", time.Minute)
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, ErrCacheNotFound)

	exp := testTable()
	require.NoError(t, cache.Save(ctx, exp))
	res, err := cache.Load(ctx)
	require.NoError(t, err)
	assertTablesEqual(t, exp, res)

	ttl, err := client.TTL(ctx, "stationcast:predictions").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
