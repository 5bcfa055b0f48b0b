package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-cli/internal/model"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func testProfile() model.CompanyProfile {
	return model.CompanyProfile{
		model.FieldCompanyName:      "Acme",
		model.FieldBusinessOverview: "Makes anvils",
		model.FieldFinancialOverview: map[string]any{
			"revenue": []any{map[string]any{"year": "2023", "value": 12.5}},
		},
	}
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	mr, s := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SaveProfile(ctx, "s-1", testProfile()))

	assert.True(t, mr.Exists("session:s-1:companyProfileData"))
	assert.Equal(t, time.Hour, mr.TTL("session:s-1:companyProfileData"))

	got, err := s.GetProfile(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, testProfile(), got)

	// Reads do not consume the slot.
	_, err = s.GetProfile(ctx, "s-1")
	require.NoError(t, err)
}

func TestRedisStore_NotFound(t *testing.T) {
	_, s := setupRedis(t)
	_, err := s.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expires(t *testing.T) {
	mr, s := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, "s-1", testProfile()))

	mr.FastForward(2 * time.Hour)
	_, err := s.GetProfile(ctx, "s-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Clear(t *testing.T) {
	_, s := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, "s-1", testProfile()))
	require.NoError(t, s.SaveProfile(ctx, "s-2", testProfile()))

	require.NoError(t, s.ClearProfile(ctx, "s-1"))
	_, err := s.GetProfile(ctx, "s-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetProfile(ctx, "s-2")
	assert.NoError(t, err)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, s := setupRedis(t)
	require.NoError(t, mr.Set("session:s-1:companyProfileData", "{not json"))

	_, err := s.GetProfile(context.Background(), "s-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Errors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, 0)
	assert.Equal(t, DefaultTTL, s.ttl)
	ctx := context.Background()

	data, err := json.Marshal(testProfile())
	require.NoError(t, err)
	mock.ExpectSet("session:s-1:companyProfileData", data, DefaultTTL).SetErr(errors.New("READONLY"))
	err = s.SaveProfile(ctx, "s-1", testProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")

	mock.ExpectGet("session:s-1:companyProfileData").SetErr(errors.New("connection lost"))
	_, err = s.GetProfile(ctx, "s-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectDel("session:s-1:companyProfileData").SetErr(errors.New("connection lost"))
	assert.Error(t, s.ClearProfile(ctx, "s-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
