package marketstatus

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"firewatch-cloud/internal/codes"
	devices "firewatch-cloud/internal/devices/domain"
	"firewatch-cloud/internal/observability/metrics"
)

// StatusEvent describes a market status transition.
type StatusEvent struct {
	MarketID   string               `json:"market_id"`
	MarketName string               `json:"market_name"`
	Status     devices.MarketStatus `json:"status"`
	Severity   string               `json:"severity"`
	At         time.Time            `json:"at"`
}

// Notifier receives status transitions (SSE broker, cache mirror).
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, event StatusEvent)
}

// StatusWriter persists the derived status. devices.MarketRepository
// satisfies this; the aggregator is the only writer of that column.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status devices.MarketStatus, at time.Time) error
}

// Snapshot is one market's live status for the dashboard batch read.
type Snapshot struct {
	MarketID   string               `json:"market_id"`
	MarketName string               `json:"market_name"`
	Status     devices.MarketStatus `json:"status"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

type marketState struct {
	mu           sync.Mutex
	name         string
	status       devices.MarketStatus
	lastRaisedAt time.Time
	updatedAt    time.Time
}

// Aggregator folds classified events into per-market live status.
// Updates for different markets run concurrently; updates for one
// market serialize on its state mutex to keep the out-of-order
// recovery guard correct.
type Aggregator struct {
	mu       sync.RWMutex
	states   map[string]*marketState
	byName   map[string]string
	writer   StatusWriter
	notifier Notifier
	logger   *log.Logger
}

// AggregatorOption customizes the aggregator.
type AggregatorOption func(*Aggregator)

// WithStatusWriter enables write-back of derived status.
func WithStatusWriter(writer StatusWriter) AggregatorOption {
	return func(a *Aggregator) {
		a.writer = writer
	}
}

// WithNotifier assigns a transition notifier.
func WithNotifier(notifier Notifier) AggregatorOption {
	return func(a *Aggregator) {
		a.notifier = notifier
	}
}

// NewAggregator constructs an aggregator.
func NewAggregator(logger *log.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	aggregator := &Aggregator{
		states: make(map[string]*marketState),
		byName: make(map[string]string),
		logger: logger,
	}
	for _, opt := range opts {
		opt(aggregator)
	}
	return aggregator
}

// Update applies one classified event to a market's live status.
//
// Fire always wins. Fault escalates to Error unless Fire is active.
// Recovered clears Fire/Error only when its timestamp is later than the
// most recent Fire/Fault raise, so a stale out-of-order recovery can
// never mask an active incident. Normal is a no-op.
func (a *Aggregator) Update(ctx context.Context, marketID, marketName string, severity codes.Severity, at time.Time) error {
	if a == nil {
		return errors.New("marketstatus: nil aggregator")
	}
	if marketID == "" {
		return errors.New("marketstatus: empty market id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	at = at.UTC()

	state := a.stateFor(marketID, marketName)

	state.mu.Lock()
	previous := state.status
	switch severity {
	case codes.SeverityFire:
		state.status = devices.MarketFire
		if at.After(state.lastRaisedAt) {
			state.lastRaisedAt = at
		}
	case codes.SeverityFault:
		if state.status != devices.MarketFire {
			state.status = devices.MarketError
		}
		if at.After(state.lastRaisedAt) {
			state.lastRaisedAt = at
		}
	case codes.SeverityRecovered:
		if at.After(state.lastRaisedAt) && state.status != devices.MarketNormal {
			state.status = devices.MarketNormal
		}
	case codes.SeverityNormal:
		// No-op: normal events neither escalate nor clear.
	}
	changed := state.status != previous
	if changed {
		state.updatedAt = at
	}
	current := state.status
	state.mu.Unlock()

	if !changed {
		return nil
	}
	metrics.IncStatusTransition(string(current))
	if a.writer != nil {
		if err := a.writer.UpdateStatus(ctx, marketID, current, at); err != nil {
			a.logger.Printf("marketstatus: status write-back failed for market %s: %v", marketID, err)
		}
	}
	if a.notifier != nil {
		a.notifier.NotifyStatusChanged(ctx, StatusEvent{
			MarketID:   marketID,
			MarketName: marketName,
			Status:     current,
			Severity:   severity.String(),
			At:         at,
		})
	}
	return nil
}

// StatusOf returns the live status for a market ID. Unknown markets
// report Normal.
func (a *Aggregator) StatusOf(marketID string) devices.MarketStatus {
	if a == nil {
		return devices.MarketNormal
	}
	a.mu.RLock()
	state := a.states[marketID]
	a.mu.RUnlock()
	if state == nil {
		return devices.MarketNormal
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.status
}

// StatusByName returns the live status for a market display name.
func (a *Aggregator) StatusByName(marketName string) devices.MarketStatus {
	if a == nil {
		return devices.MarketNormal
	}
	a.mu.RLock()
	id := a.byName[marketName]
	a.mu.RUnlock()
	if id == "" {
		return devices.MarketNormal
	}
	return a.StatusOf(id)
}

// AllStatuses returns the full snapshot for the dashboard/map. The read
// never triggers re-classification and is cheap enough to poll.
func (a *Aggregator) AllStatuses() []Snapshot {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	ids := make([]string, 0, len(a.states))
	for id := range a.states {
		ids = append(ids, id)
	}
	states := make(map[string]*marketState, len(ids))
	for _, id := range ids {
		states[id] = a.states[id]
	}
	a.mu.RUnlock()

	sort.Strings(ids)
	snapshots := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		state := states[id]
		state.mu.Lock()
		snapshots = append(snapshots, Snapshot{
			MarketID:   id,
			MarketName: state.name,
			Status:     state.status,
			UpdatedAt:  state.updatedAt,
		})
		state.mu.Unlock()
	}
	return snapshots
}

func (a *Aggregator) stateFor(marketID, marketName string) *marketState {
	a.mu.RLock()
	state := a.states[marketID]
	a.mu.RUnlock()
	if state != nil {
		if marketName != "" {
			state.mu.Lock()
			state.name = marketName
			state.mu.Unlock()
			a.mu.Lock()
			a.byName[marketName] = marketID
			a.mu.Unlock()
		}
		return state
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if state = a.states[marketID]; state == nil {
		state = &marketState{name: marketName, status: devices.MarketNormal}
		a.states[marketID] = state
	}
	if marketName != "" {
		a.byName[marketName] = marketID
	}
	return state
}
