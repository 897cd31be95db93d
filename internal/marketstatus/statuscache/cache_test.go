package statuscache

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devices "firewatch-cloud/internal/devices/domain"
	"firewatch-cloud/internal/marketstatus"
)

func setupMirror(t *testing.T) (*miniredis.Miniredis, *Mirror) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, NewMirror(client, time.Minute, log.Default())
}

func TestMirrorRoundTrip(t *testing.T) {
	_, mirror := setupMirror(t)
	ctx := context.Background()

	event := marketstatus.StatusEvent{
		MarketID:   "market-1",
		MarketName: "부평자유시장",
		Status:     devices.MarketFire,
		Severity:   "fire",
		At:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	mirror.NotifyStatusChanged(ctx, event)

	got, err := mirror.Get(ctx, "market-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, event.MarketID, got.MarketID)
	assert.Equal(t, devices.MarketFire, got.Status)
	assert.Equal(t, "fire", got.Severity)
}

func TestMirrorMissReturnsNil(t *testing.T) {
	_, mirror := setupMirror(t)

	got, err := mirror.Get(context.Background(), "market-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMirrorEntriesExpire(t *testing.T) {
	server, mirror := setupMirror(t)
	ctx := context.Background()

	mirror.NotifyStatusChanged(ctx, marketstatus.StatusEvent{
		MarketID: "market-1",
		Status:   devices.MarketError,
		Severity: "fault",
		At:       time.Now().UTC(),
	})

	server.FastForward(2 * time.Minute)

	got, err := mirror.Get(ctx, "market-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
