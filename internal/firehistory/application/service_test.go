package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	firehistory "firewatch-cloud/internal/firehistory/domain"
	"firewatch-cloud/internal/firehistory/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	service, err := NewService(repo, log.Default(), WithClock(fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, repo
}

func fireItem(marketID string, at time.Time) firehistory.Item {
	return firehistory.Item{
		MarketID:       marketID,
		MarketName:     "부평깡시장",
		ReceiverMAC:    "00:1A:2B:3C:4D:5E",
		ReceiverStatus: "화재",
		RepeaterID:     "03",
		RepeaterStatus: "화재감지",
		Class:          firehistory.ClassFire,
		RegisteredAt:   at,
	}
}

func TestAppendForcesRegisteredState(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	item := fireItem("market-1", time.Time{})
	item.FalseAlarmStatus = firehistory.FalseAlarmFalse

	stored, err := service.Append(ctx, item)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if stored.FalseAlarmStatus != firehistory.FalseAlarmRegistered {
		t.Fatalf("new entries must start %s, got %s", firehistory.FalseAlarmRegistered, stored.FalseAlarmStatus)
	}
	if stored.RegisteredAt.IsZero() {
		t.Fatal("RegisteredAt not defaulted")
	}
	if stored.Registrar != "system" {
		t.Fatalf("Registrar not defaulted, got %q", stored.Registrar)
	}
	if stored.ID == 0 {
		t.Fatal("id not assigned")
	}
}

func TestDuplicatePacketsAppendDuplicateEntries(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	first, err := service.Append(ctx, fireItem("market-1", at))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := service.Append(ctx, fireItem("market-1", at))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("duplicate packets must create distinct entries")
	}
}

func TestQueryRejectsWideRangeBeforeStorage(t *testing.T) {
	failing := &failingRepo{err: errors.New("storage must not be touched")}
	service, err := NewService(failing, log.Default())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = service.Query(context.Background(), firehistory.Filter{
		Start: start,
		End:   start.Add(31*24*time.Hour + time.Second),
	})
	if !errors.Is(err, firehistory.ErrRangeTooWide) {
		t.Fatalf("want ErrRangeTooWide, got %v", err)
	}
	if failing.listCalls != 0 {
		t.Fatal("range guard must run before storage access")
	}
}

func TestQueryAcceptsExactly31Days(t *testing.T) {
	service, _ := newTestService(t)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := service.Query(context.Background(), firehistory.Filter{
		Start: start,
		End:   start.Add(31 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("exactly 31 days must be accepted: %v", err)
	}
}

func TestQueryBoundsAreInclusive(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{start, end, start.Add(-time.Second), end.Add(time.Second)} {
		if _, err := service.Append(ctx, fireItem("market-1", at)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	items, err := service.Query(ctx, firehistory.Filter{Start: start, End: end})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 entries on inclusive bounds, got %d", len(items))
	}
	if !items[0].RegisteredAt.After(items[1].RegisteredAt) {
		t.Fatal("entries must be ordered newest first")
	}
}

func TestReconcileIsIdempotentLastWriteWins(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	stored, err := service.Append(ctx, fireItem("market-1", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	first, err := service.Reconcile(ctx, stored.ID, firehistory.FalseAlarmFalse, "점검 중 오작동")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if first.FalseAlarmStatus != firehistory.FalseAlarmFalse || first.Note != "점검 중 오작동" {
		t.Fatalf("unexpected state after first decision: %+v", first)
	}

	// Same decision again, then the opposite one. Last write wins.
	if _, err := service.Reconcile(ctx, stored.ID, firehistory.FalseAlarmFalse, "점검 중 오작동"); err != nil {
		t.Fatalf("repeat decision must not fail: %v", err)
	}
	final, err := service.Reconcile(ctx, stored.ID, firehistory.FalseAlarmConfirmed, "실제 화재 확인")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if final.FalseAlarmStatus != firehistory.FalseAlarmConfirmed || final.Note != "실제 화재 확인" {
		t.Fatalf("unexpected final state: %+v", final)
	}
}

func TestReconcileRejectsUnknownDecision(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Reconcile(context.Background(), 1, "보류", "")
	if !errors.Is(err, firehistory.ErrInvalidDecision) {
		t.Fatalf("want ErrInvalidDecision, got %v", err)
	}
}

func TestReconcileMissingEntry(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Reconcile(context.Background(), 999, firehistory.FalseAlarmFalse, "")
	if !errors.Is(err, firehistory.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBulkDeleteReportsPerID(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		stored, err := service.Append(ctx, fireItem("market-1", time.Date(2026, 3, 10, 9, i, 0, 0, time.UTC)))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, stored.ID)
	}

	result, err := service.BulkDelete(ctx, append(ids, 777, 888))
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(result.Deleted) != 3 {
		t.Fatalf("want 3 deleted, got %v", result.Deleted)
	}
	if len(result.NotFound) != 2 {
		t.Fatalf("missing ids are reported, not errors: %v", result.NotFound)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failed)
	}

	items, err := service.Query(ctx, firehistory.Filter{
		Start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("entries must be gone, got %d", len(items))
	}
}

func TestBulkDeleteFailuresDoNotRollBack(t *testing.T) {
	repo := &flakyDeleteRepo{
		Repository: memory.NewRepository(),
		failIDs:    map[int64]bool{2: true},
	}
	service, err := NewService(repo, log.New(discard{}, "", 0))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		item := fireItem("market-1", time.Date(2026, 3, 10, 9, i, 0, 0, time.UTC))
		if _, err := service.Append(ctx, item); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	result, err := service.BulkDelete(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if len(result.Deleted) != 2 {
		t.Fatalf("completed deletions stand, got %v", result.Deleted)
	}
	if result.Failed[2] == nil {
		t.Fatal("failed id must be reported")
	}

	remaining, err := repo.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if remaining == nil {
		t.Fatal("failed deletion must leave the entry intact")
	}
}

type failingRepo struct {
	err       error
	listCalls int
}

func (r *failingRepo) Append(context.Context, *firehistory.Item) error { return r.err }

func (r *failingRepo) GetByID(context.Context, int64) (*firehistory.Item, error) {
	return nil, r.err
}

func (r *failingRepo) List(context.Context, firehistory.Filter) ([]firehistory.Item, error) {
	r.listCalls++
	return nil, r.err
}

func (r *failingRepo) UpdateFalseAlarm(context.Context, int64, string, string) (bool, error) {
	return false, r.err
}

func (r *failingRepo) Delete(context.Context, int64) (bool, error) { return false, r.err }

type flakyDeleteRepo struct {
	*memory.Repository
	mu      sync.Mutex
	failIDs map[int64]bool
}

func (r *flakyDeleteRepo) Delete(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	fail := r.failIDs[id]
	r.mu.Unlock()
	if fail {
		return false, fmt.Errorf("simulated storage failure for %d", id)
	}
	return r.Repository.Delete(ctx, id)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
