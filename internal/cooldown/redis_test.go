package cooldown

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "")
	until := time.Date(2025, 6, 1, 12, 25, 0, 0, time.UTC)

	mock.ExpectGet("signalrun:cooldown:classic_v2:BTCUSDT").
		SetVal(strconv.FormatInt(until.UnixMilli(), 10))

	got, err := store.Get(context.Background(), "classic_v2:BTCUSDT")
	require.NoError(t, err)
	assert.True(t, got.Equal(until), "got %s want %s", got, until)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetMissIsZeroTime(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "")

	mock.ExpectGet("signalrun:cooldown:classic_v2:ETHUSDT").RedisNil()

	got, err := store.Get(context.Background(), "classic_v2:ETHUSDT")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetCorruptEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "")

	mock.ExpectGet("signalrun:cooldown:classic_v2:SOLUSDT").SetVal("not-a-number")

	_, err := store.Get(context.Background(), "classic_v2:SOLUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestRedisStoreSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "")
	until := time.Date(2025, 6, 1, 12, 25, 0, 0, time.UTC)

	mock.ExpectSet(
		"signalrun:cooldown:classic_v2:BTCUSDT",
		strconv.FormatInt(until.UnixMilli(), 10),
		25*time.Minute,
	).SetVal("OK")

	err := store.Set(context.Background(), "classic_v2:BTCUSDT", until, 25*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreCustomPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "alt:")

	mock.ExpectGet("alt:classic_v2:BTCUSDT").RedisNil()

	_, err := store.Get(context.Background(), "classic_v2:BTCUSDT")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
