package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formset/pkg/record"
)

var teamMeta = &record.Meta{
	Name: "team",
	Columns: []record.Column{
		{Name: "name", Type: record.ColumnString},
		{Name: "department", Type: record.ColumnReference, References: "department"},
		{Name: "budget", Type: record.ColumnFloat, Nullable: true},
	},
	UniqueTogether: [][]string{{"department", "name"}},
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	s, err := New(ctx, Config{Client: client, KeyPrefix: "formset-test:"})
	require.NoError(t, err)
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	team := record.New(teamMeta)
	team.Set("name", "Platform")
	team.Set("department", int64(1))
	team.Set("budget", 12.5)
	require.NoError(t, s.Save(ctx, team))

	loaded, err := s.Get(ctx, teamMeta, team.PK())
	require.NoError(t, err)
	assert.Equal(t, "Platform", loaded.Get("name"))
	assert.Equal(t, int64(1), loaded.Get("department"))
	assert.Equal(t, 12.5, loaded.Get("budget"))

	loaded.Set("name", "Infra")
	require.NoError(t, s.Save(ctx, loaded))

	// the old unique slot must be free again
	again := record.New(teamMeta)
	again.Set("name", "Platform")
	again.Set("department", int64(1))
	require.NoError(t, s.Save(ctx, again))

	rows, err := s.List(ctx, teamMeta)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Infra", rows[0].Get("name"))

	require.NoError(t, s.Delete(ctx, rows[0]))
	_, err = s.Get(ctx, teamMeta, rows[0].PK())
	assert.True(t, errors.Is(err, record.ErrNotFound))
}

func TestRedisStoreUniqueTogether(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := record.New(teamMeta)
	first.Set("name", "Platform")
	first.Set("department", int64(7))
	require.NoError(t, s.Save(ctx, first))

	dup := record.New(teamMeta)
	dup.Set("name", "Platform")
	dup.Set("department", int64(7))
	err := s.Save(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, record.ErrIntegrity))
}
