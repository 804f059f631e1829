package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Redis tests need a live server; set PAYOFFCHECK_REDIS_ADDR to run them.
func testRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("PAYOFFCHECK_REDIS_ADDR")
	if addr == "" {
		t.Skip("PAYOFFCHECK_REDIS_ADDR not set")
	}
	s := NewRedisStore(addr, "payoffcheck-test:"+uuid.NewString()+":", quietLogger())
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Ping(context.Background()))
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := testRedisStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.Save(ctx, rec))
	t.Cleanup(func() { s.client.Del(context.Background(), s.Key(rec.ContractID)) })

	got, err := s.Load(ctx, rec.ContractID)
	require.NoError(t, err)
	assertRecordsEqual(t, rec, got)
}

func TestRedisStore_LoadMissingIsEmpty(t *testing.T) {
	s := testRedisStore(t)

	rec, err := s.Load(context.Background(), "DN-404")
	require.NoError(t, err)
	assert.Empty(t, rec.Rows)
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore("localhost:0", "payoffcheck:contract:", quietLogger())
	defer s.Close()
	assert.Equal(t, "payoffcheck:contract:DN-1042", s.Key("DN-1042"))
}
