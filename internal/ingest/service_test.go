package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"firewatch-cloud/internal/auth"
	"firewatch-cloud/internal/codes"
	datalogapp "firewatch-cloud/internal/datalog/application"
	datalog "firewatch-cloud/internal/datalog/domain"
	datalogmem "firewatch-cloud/internal/datalog/infrastructure/memory"
	deviceapp "firewatch-cloud/internal/devices/application"
	devices "firewatch-cloud/internal/devices/domain"
	devicesmem "firewatch-cloud/internal/devices/infrastructure/memory"
	"firewatch-cloud/internal/eventing"
	firehistoryapp "firewatch-cloud/internal/firehistory/application"
	firehistory "firewatch-cloud/internal/firehistory/domain"
	firehistorymem "firewatch-cloud/internal/firehistory/infrastructure/memory"
	"firewatch-cloud/internal/marketstatus"
)

const testMAC = "00:1A:2B:3C:4D:5E"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type pipeline struct {
	service *Service
	ledger  *firehistorymem.Repository
	audit   *datalogmem.Repository
	bus     *eventing.InMemoryBus
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	store := devicesmem.NewIdentityStore()
	ctx := context.Background()
	err := store.Markets().Save(ctx, &devices.Market{ID: "market-1", Name: "부평깡시장", UsageStatus: devices.UsageInService})
	if err != nil {
		t.Fatalf("seed market: %v", err)
	}
	err = store.Receivers().Save(ctx, &devices.Receiver{ID: "recv-1", MarketID: "market-1", MACAddress: testMAC})
	if err != nil {
		t.Fatalf("seed receiver: %v", err)
	}

	identity, err := deviceapp.NewIdentity(store.Markets(), store.Receivers(), store.Repeaters(), store.Detectors())
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	registry := codes.NewRegistry(logger, codes.WithSeedCodes([]codes.CommonCode{
		{Code: "10", Name: "화재알람", Severity: codes.SeverityFire, HasSeverity: true},
		{Code: "35", Name: "화재해소", Severity: codes.SeverityRecovered, HasSeverity: true},
		{Code: "49", Name: "통신단선", Severity: codes.SeverityFault, HasSeverity: true},
		{Code: "00", Name: "정상", Severity: codes.SeverityNormal, HasSeverity: true},
	}))

	ledgerRepo := firehistorymem.NewRepository()
	ledger, err := firehistoryapp.NewService(ledgerRepo, logger, firehistoryapp.WithClock(fixedClock{now: testNow}))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	auditRepo := datalogmem.NewRepository()
	audit, err := datalogapp.NewService(auditRepo, logger, datalogapp.WithClock(fixedClock{now: testNow}))
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}

	aggregator := marketstatus.NewAggregator(logger)
	bus := eventing.NewInMemoryBus()

	service, err := NewService(identity, registry, ledger, audit, aggregator, logger,
		WithClock(fixedClock{now: testNow}), WithPublisher(bus))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &pipeline{service: service, ledger: ledgerRepo, audit: auditRepo, bus: bus}
}

func (p *pipeline) auditEntries(t *testing.T) []datalog.Item {
	t.Helper()
	items, err := p.audit.List(context.Background(), datalog.Filter{
		Start: testNow.Add(-24 * time.Hour),
		End:   testNow.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	return items
}

func TestFireEventCreatesLedgerEntry(t *testing.T) {
	p := newPipeline(t)

	result, err := p.service.Ingest(context.Background(), RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.LedgerEntryID == 0 {
		t.Fatal("fire event must create a ledger entry")
	}
	if result.MarketStatus != string(devices.MarketFire) {
		t.Fatalf("want fire status, got %s", result.MarketStatus)
	}

	entry, err := p.ledger.GetByID(context.Background(), result.LedgerEntryID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry == nil {
		t.Fatal("ledger entry missing")
	}
	if entry.FalseAlarmStatus != firehistory.FalseAlarmRegistered {
		t.Fatalf("new entries start %s, got %s", firehistory.FalseAlarmRegistered, entry.FalseAlarmStatus)
	}
	if entry.Class != firehistory.ClassFire {
		t.Fatalf("want fire class, got %s", entry.Class)
	}
}

func TestCombinedSeverityIsMaxOfBothCodes(t *testing.T) {
	p := newPipeline(t)

	// Receiver reports normal, repeater reports fire: fire wins.
	result, err := p.service.Ingest(context.Background(), RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "00",
		RepeaterID:         "03",
		RepeaterStatusCode: "10",
		Timestamp:          testNow,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Severity != "fire" {
		t.Fatalf("combined severity must be max, got %s", result.Severity)
	}
	if result.LedgerEntryID == 0 {
		t.Fatal("fire severity must create a ledger entry")
	}
}

func TestRecoveredEventClearsWithoutLedgerEntry(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	if _, err := p.service.Ingest(ctx, RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	}); err != nil {
		t.Fatalf("fire ingest: %v", err)
	}

	result, err := p.service.Ingest(ctx, RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "35",
		Timestamp:          testNow.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("recovery ingest: %v", err)
	}
	if result.LedgerEntryID != 0 {
		t.Fatal("recovery events must not create ledger entries")
	}
	if result.MarketStatus != string(devices.MarketNormal) {
		t.Fatalf("later recovery must clear the fire, got %s", result.MarketStatus)
	}
}

func TestStaleRecoveryDoesNotMaskFire(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	if _, err := p.service.Ingest(ctx, RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	}); err != nil {
		t.Fatalf("fire ingest: %v", err)
	}

	// Recovery timestamped before the fire arrives late.
	result, err := p.service.Ingest(ctx, RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "35",
		Timestamp:          testNow.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("stale recovery ingest: %v", err)
	}
	if result.MarketStatus != string(devices.MarketFire) {
		t.Fatalf("stale recovery must not clear an active fire, got %s", result.MarketStatus)
	}
}

func TestUnknownReceiverFailsButIsAudited(t *testing.T) {
	p := newPipeline(t)

	_, err := p.service.Ingest(context.Background(), RawEvent{
		ReceiverMAC:        "FF:FF:FF:FF:FF:FF",
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	})
	if !errors.Is(err, devices.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	entries := p.auditEntries(t)
	if len(entries) != 1 {
		t.Fatalf("failed classification must still be audited, got %d entries", len(entries))
	}
	if !entries[0].Failed {
		t.Fatal("audit entry must carry the classification-failed marker")
	}
	if entries[0].MarketName != "" {
		t.Fatalf("market must stay unresolved, got %q", entries[0].MarketName)
	}
}

func TestMalformedEventIsRejectedAndAudited(t *testing.T) {
	p := newPipeline(t)

	_, err := p.service.Ingest(context.Background(), RawEvent{
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}

	entries := p.auditEntries(t)
	if len(entries) != 1 || !entries[0].Failed {
		t.Fatalf("malformed events are never silently dropped: %+v", entries)
	}
}

func TestEveryPacketIsAuditedIndependently(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	for _, code := range []string{"10", "35", "00"} {
		if _, err := p.service.Ingest(ctx, RawEvent{
			ReceiverMAC:        testMAC,
			ReceiverStatusCode: code,
			ReceivedData:       "AA0301FE99",
			Timestamp:          testNow,
		}); err != nil {
			t.Fatalf("Ingest %s: %v", code, err)
		}
	}

	entries := p.auditEntries(t)
	if len(entries) != 3 {
		t.Fatalf("every packet is audited regardless of classification, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Failed {
			t.Fatalf("classified packets must not be marked failed: %+v", entry)
		}
	}
}

func TestRegistrarFromContextIsRecorded(t *testing.T) {
	p := newPipeline(t)
	ctx := auth.WithRegistrar(context.Background(), "김관제")

	result, err := p.service.Ingest(ctx, RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	entry, err := p.ledger.GetByID(context.Background(), result.LedgerEntryID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.Registrar != "김관제" {
		t.Fatalf("want operator identity, got %q", entry.Registrar)
	}
}

func TestClassifiedEventIsPublished(t *testing.T) {
	p := newPipeline(t)

	var published []eventing.EventClassified
	p.bus.Subscribe(eventing.EventTypeOf[eventing.EventClassified](), func(_ context.Context, event any) error {
		if classified, ok := event.(eventing.EventClassified); ok {
			published = append(published, classified)
		}
		return nil
	})

	result, err := p.service.Ingest(context.Background(), RawEvent{
		ReceiverMAC:        testMAC,
		ReceiverStatusCode: "10",
		Timestamp:          testNow,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("want 1 published event, got %d", len(published))
	}
	if published[0].LedgerID != result.LedgerEntryID {
		t.Fatalf("event must reference the ledger entry: %+v", published[0])
	}
	if published[0].EventID == "" {
		t.Fatal("event id missing")
	}
}

func TestDuplicatePacketsProduceDuplicateEntries(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	raw := RawEvent{ReceiverMAC: testMAC, ReceiverStatusCode: "10", Timestamp: testNow}

	first, err := p.service.Ingest(ctx, raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	second, err := p.service.Ingest(ctx, raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first.LedgerEntryID == second.LedgerEntryID {
		t.Fatal("duplicate packets create duplicate ledger rows; dedup is an operator action")
	}
}
