package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	firehistory "firewatch-cloud/internal/firehistory/domain"
	"firewatch-cloud/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service exposes the fire history ledger operations.
type Service struct {
	repo   firehistory.Repository
	clock  Clock
	logger *log.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs a ledger service.
func NewService(repo firehistory.Repository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("firehistory: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{repo: repo, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Append stores a new ledger entry. New entries always start 등록.
func (s *Service) Append(ctx context.Context, item firehistory.Item) (*firehistory.Item, error) {
	if s == nil {
		return nil, errors.New("firehistory: nil service")
	}
	item.FalseAlarmStatus = firehistory.FalseAlarmRegistered
	if item.RegisteredAt.IsZero() {
		item.RegisteredAt = s.clock.Now().UTC()
	}
	if item.Registrar == "" {
		item.Registrar = "system"
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, &item); err != nil {
		return nil, err
	}
	metrics.IncLedgerAppend(item.Class)
	return &item, nil
}

// Query returns ledger entries in the requested window. The 31-day
// guard runs before any storage access.
func (s *Service) Query(ctx context.Context, filter firehistory.Filter) ([]firehistory.Item, error) {
	if s == nil {
		return nil, errors.New("firehistory: nil service")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Reconcile idempotently reclassifies an entry as 화재 or 오탐 and
// overwrites its note. Re-applying the same decision is allowed;
// last write wins.
func (s *Service) Reconcile(ctx context.Context, id int64, decision, note string) (*firehistory.Item, error) {
	if s == nil {
		return nil, errors.New("firehistory: nil service")
	}
	if decision != firehistory.FalseAlarmConfirmed && decision != firehistory.FalseAlarmFalse {
		return nil, fmt.Errorf("%w: %q", firehistory.ErrInvalidDecision, decision)
	}
	found, err := s.repo.UpdateFalseAlarm(ctx, id, decision, note)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("firehistory: entry %d: %w", id, firehistory.ErrNotFound)
	}
	metrics.IncLedgerReconcile(decision)
	return s.repo.GetByID(ctx, id)
}

// DeleteResult reports the per-id outcome of a bulk delete.
type DeleteResult struct {
	Deleted  []int64         `json:"deleted"`
	NotFound []int64         `json:"not_found"`
	Failed   map[int64]error `json:"-"`
}

// BulkDelete removes entries one by one, dispatched concurrently. Each
// deletion is independent: failures and misses are reported per id and
// never roll back completed deletions. Missing ids are not errors.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (DeleteResult, error) {
	result := DeleteResult{Failed: make(map[int64]error)}
	if s == nil {
		return result, errors.New("firehistory: nil service")
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			deleted, err := s.repo.Delete(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed[id] = err
				metrics.IncLedgerDelete("failed")
			case deleted:
				result.Deleted = append(result.Deleted, id)
				metrics.IncLedgerDelete("deleted")
			default:
				result.NotFound = append(result.NotFound, id)
				metrics.IncLedgerDelete("not_found")
			}
		}(id)
	}
	wg.Wait()

	sortIDs(result.Deleted)
	sortIDs(result.NotFound)
	for id, err := range result.Failed {
		s.logger.Printf("firehistory: delete %d failed: %v", id, err)
	}
	return result, nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
