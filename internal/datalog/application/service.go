package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	datalog "firewatch-cloud/internal/datalog/domain"
	"firewatch-cloud/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service exposes the raw reception log operations.
type Service struct {
	repo      datalog.Repository
	clock     Clock
	logger    *log.Logger
	retention time.Duration
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithRetention overrides the rolling retention window.
func WithRetention(window time.Duration) ServiceOption {
	return func(s *Service) {
		if window > 0 {
			s.retention = window
		}
	}
}

// NewService constructs a reception log service.
func NewService(repo datalog.Repository, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("datalog: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		repo:      repo,
		clock:     systemClock{},
		logger:    logger,
		retention: datalog.DefaultQuerySpan,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Append stores a raw packet record. Classification outcome is
// irrelevant here; the audit trail records every packet.
func (s *Service) Append(ctx context.Context, item datalog.Item) (*datalog.Item, error) {
	if s == nil {
		return nil, errors.New("datalog: nil service")
	}
	if item.RegisteredAt.IsZero() {
		item.RegisteredAt = s.clock.Now().UTC()
	}
	if item.LogType == "" {
		item.LogType = datalog.LogTypeReceiver
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, &item); err != nil {
		return nil, err
	}
	metrics.IncReceptionAppend()
	return &item, nil
}

// Query returns reception entries in the requested window. An omitted
// range defaults to the trailing 7 days.
func (s *Service) Query(ctx context.Context, filter datalog.Filter) ([]datalog.Item, error) {
	if s == nil {
		return nil, errors.New("datalog: nil service")
	}
	filter = filter.Normalize(s.clock.Now().UTC())
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// DeleteResult reports the per-id outcome of a bulk delete.
type DeleteResult struct {
	Deleted  []int64         `json:"deleted"`
	NotFound []int64         `json:"not_found"`
	Failed   map[int64]error `json:"-"`
}

// BulkDelete removes entries one by one, dispatched concurrently.
// Missing ids are reported, not errors; failures never roll back
// completed deletions.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (DeleteResult, error) {
	result := DeleteResult{Failed: make(map[int64]error)}
	if s == nil {
		return result, errors.New("datalog: nil service")
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
			case deleted:
				result.Deleted = append(result.Deleted, id)
			default:
				result.NotFound = append(result.NotFound, id)
			}
		}(id)
	}
	wg.Wait()

	sort.Slice(result.Deleted, func(i, j int) bool { return result.Deleted[i] < result.Deleted[j] })
	sort.Slice(result.NotFound, func(i, j int) bool { return result.NotFound[i] < result.NotFound[j] })
	for id, err := range result.Failed {
		s.logger.Printf("datalog: delete %d failed: %v", id, err)
	}
	return result, nil
}

// Sweep removes entries older than the retention window.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errors.New("datalog: nil service")
	}
	cutoff := s.clock.Now().UTC().Add(-s.retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		metrics.IncReceptionSweep(metrics.ResultError)
		return 0, err
	}
	metrics.IncReceptionSweep(metrics.ResultSuccess)
	if removed > 0 {
		s.logger.Printf("datalog: retention sweep removed %d entries before %s", removed, cutoff.Format(time.RFC3339))
	}
	return removed, nil
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Printf("datalog: retention sweep failed: %v", err)
			}
		}
	}
}
