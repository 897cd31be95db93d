package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	firehistory "firewatch-cloud/internal/firehistory/domain"
)

// Repository is an in-memory fire history ledger.
type Repository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]firehistory.Item
}

// NewRepository constructs an empty ledger.
func NewRepository() *Repository {
	return &Repository{items: make(map[int64]firehistory.Item)}
}

// Append stores the item and assigns the next id.
func (r *Repository) Append(_ context.Context, item *firehistory.Item) error {
	if item == nil {
		return errors.New("firehistory memory: nil item")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = *item
	return nil
}

// GetByID loads one entry, (nil, nil) on miss.
func (r *Repository) GetByID(_ context.Context, id int64) (*firehistory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copy := item
	return &copy, nil
}

// List returns entries in [filter.Start, filter.End] inclusive, newest first.
func (r *Repository) List(_ context.Context, filter firehistory.Filter) ([]firehistory.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []firehistory.Item
	for _, item := range r.items {
		if item.RegisteredAt.Before(filter.Start) || item.RegisteredAt.After(filter.End) {
			continue
		}
		if filter.MarketName != "" && !strings.Contains(item.MarketName, filter.MarketName) {
			continue
		}
		if filter.FireOnly && item.Class != firehistory.ClassFire {
			continue
		}
		if filter.FaultOnly && item.Class != firehistory.ClassFault {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RegisteredAt.Equal(result[j].RegisteredAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].RegisteredAt.After(result[j].RegisteredAt)
	})
	return result, nil
}

// UpdateFalseAlarm overwrites the reconciliation status and note.
func (r *Repository) UpdateFalseAlarm(_ context.Context, id int64, status, note string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return false, nil
	}
	item.FalseAlarmStatus = status
	item.Note = note
	r.items[id] = item
	return true, nil
}

// Delete removes one entry.
func (r *Repository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}
