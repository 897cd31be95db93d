package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"firewatch-cloud/internal/marketstatus"
)

const keyPrefix = "firewatch:market:"

// Mirror pushes market status snapshots into Redis so dashboard
// instances other than the ingesting one can render the map without
// hitting the aggregator. The in-process aggregator stays the source
// of truth; the mirror is best-effort.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewMirror constructs a mirror.
func NewMirror(client *redis.Client, ttl time.Duration, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Mirror{client: client, ttl: ttl, logger: logger}
}

// NotifyStatusChanged implements marketstatus.Notifier.
func (m *Mirror) NotifyStatusChanged(ctx context.Context, event marketstatus.StatusEvent) {
	if m == nil || m.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		m.logger.Printf("statuscache: marshal failed for market %s: %v", event.MarketID, err)
		return
	}
	key := keyPrefix + event.MarketID + ":status"
	if err := m.client.Set(ctx, key, payload, m.ttl).Err(); err != nil {
		m.logger.Printf("statuscache: set failed for market %s: %v", event.MarketID, err)
	}
}

// Get reads a mirrored status. A missing key returns (nil, nil).
func (m *Mirror) Get(ctx context.Context, marketID string) (*marketstatus.StatusEvent, error) {
	if m == nil || m.client == nil {
		return nil, nil
	}
	key := keyPrefix + marketID + ":status"
	payload, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("statuscache: get %s: %w", marketID, err)
	}
	var event marketstatus.StatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("statuscache: decode %s: %w", marketID, err)
	}
	return &event, nil
}
