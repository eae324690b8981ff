package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/jwebster45206/journey-engine/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T, opts Options) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rs, err := NewRedisStorage(mr.Addr(), testLogger(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestRedisStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, rng content.Rand) storagetest.Harness {
		rs, _ := setupTestRedis(t, Options{Rand: rng})
		return storagetest.Harness{
			Storage: rs,
			PutJourney: func(t *testing.T, j journey.Journey) {
				require.NoError(t, rs.putJourney(context.Background(), j))
			},
			GetJourney: func(t *testing.T, playerNumber int64, cityID int) *journey.Journey {
				j, err := rs.loadJourney(context.Background(), playerNumber, cityID)
				require.NoError(t, err)
				return j
			},
		}
	})
}

func TestNewRedisStorage_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	rs, err := NewRedisStorage("redis://"+mr.Addr(), testLogger(), Options{})
	require.NoError(t, err)
	defer rs.Close()
	assert.NoError(t, rs.Ping(context.Background()))

	_, err = NewRedisStorage("redis://:bad url", testLogger(), Options{})
	assert.Error(t, err)
}

func TestRedisStorage_Layout(t *testing.T) {
	started := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	rs, mr := setupTestRedis(t, Options{
		Rand: storagetest.NewSequenceRand(42),
		Now:  func() time.Time { return started },
	})
	ctx := context.Background()

	u, err := rs.CreateUser(ctx, "user-1", "device-9")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.PlayerNumber)
	assert.Equal(t, started, u.CreatedDate)

	owner, err := mr.Get("player:42")
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)
	assert.Equal(t, "42", mr.HGet("user:user-1", "player_number"))
	assert.Equal(t, "device-9", mr.HGet("user:user-1", "device_id"))

	_, err = rs.StartJourney(ctx, 42, 3)
	require.NoError(t, err)
	assert.Equal(t, "1", mr.HGet("journey:42:3", "active"))
	assert.Equal(t, "50", mr.HGet("journey:42:3", "money_level"))
	members, err := mr.SMembers("journeys:42")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, members)

	loaded, err := rs.FindActiveJourney(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.StartedDate.Equal(started))
}

func TestRedisStorage_BumpMaxTurnsUnknownUser(t *testing.T) {
	rs, _ := setupTestRedis(t, Options{})

	err := rs.BumpMaxTurns(context.Background(), &journey.User{UserID: "ghost"}, 3)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRedisStorage_SaveProgressMissing(t *testing.T) {
	rs, _ := setupTestRedis(t, Options{})

	j := journey.New(1, 1, time.Now())
	err := rs.SaveProgress(context.Background(), &j)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRedisStorage_CorruptRecord(t *testing.T) {
	rs, mr := setupTestRedis(t, Options{})

	mr.HSet("journey:5:1", "active", "1")
	mr.HSet("journey:5:1", "money_level", "lots")
	_, err := mr.SAdd("journeys:5", "1")
	require.NoError(t, err)

	_, err = rs.FindActiveJourney(context.Background(), 5)
	assert.Error(t, err)
}

func TestRedisStorage_Unavailable(t *testing.T) {
	rs, mr := setupTestRedis(t, Options{})
	mr.Close()

	ctx := context.Background()
	assert.Error(t, rs.Ping(ctx))

	_, err := rs.GetUser(ctx, "user-1")
	assert.Error(t, err)
	assert.Nil(t, apperror.Kind(err), "driver failures are not classified")
}

func TestRedisStorage_WaitForConnection(t *testing.T) {
	rs, _ := setupTestRedis(t, Options{})
	assert.NoError(t, rs.WaitForConnection(context.Background(), 3, time.Millisecond))

	down, mr := setupTestRedis(t, Options{})
	mr.Close()
	err := down.WaitForConnection(context.Background(), 2, time.Millisecond)
	assert.Error(t, err)
}
