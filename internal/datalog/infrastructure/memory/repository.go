package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	datalog "firewatch-cloud/internal/datalog/domain"
)

// Repository is an in-memory reception log.
type Repository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]datalog.Item
}

// NewRepository constructs an empty log.
func NewRepository() *Repository {
	return &Repository{items: make(map[int64]datalog.Item)}
}

// Append stores the item and assigns the next id.
func (r *Repository) Append(_ context.Context, item *datalog.Item) error {
	if item == nil {
		return errors.New("datalog memory: nil item")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = *item
	return nil
}

// List returns entries in [filter.Start, filter.End] inclusive, newest first.
func (r *Repository) List(_ context.Context, filter datalog.Filter) ([]datalog.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []datalog.Item
	for _, item := range r.items {
		if item.RegisteredAt.Before(filter.Start) || item.RegisteredAt.After(filter.End) {
			continue
		}
		if filter.MarketName != "" && !strings.Contains(item.MarketName, filter.MarketName) {
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

// DeleteOlderThan removes entries registered before the cutoff.
func (r *Repository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, item := range r.items {
		if item.RegisteredAt.Before(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}
