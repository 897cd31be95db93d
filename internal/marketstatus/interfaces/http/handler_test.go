package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firewatch-cloud/internal/codes"
	devices "firewatch-cloud/internal/devices/domain"
	"firewatch-cloud/internal/marketstatus"
)

func newTestAggregator(t *testing.T) *marketstatus.Aggregator {
	t.Helper()
	aggregator := marketstatus.NewAggregator(log.New(io.Discard, "", 0))
	err := aggregator.Update(context.Background(), "market-1", "부평깡시장", codes.SeverityFire,
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return aggregator
}

func TestAllStatusesSnapshot(t *testing.T) {
	handler, err := NewHandler(newTestAggregator(t))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/markets/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var snapshots []marketstatus.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Status != devices.MarketFire {
		t.Fatalf("unexpected snapshot: %+v", snapshots)
	}
}

func TestStatusByID(t *testing.T) {
	handler, err := NewHandler(newTestAggregator(t))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/markets/market-1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(devices.MarketFire) {
		t.Fatalf("want fire, got %s", resp.Status)
	}
}

func TestStatusByName(t *testing.T) {
	handler, err := NewHandler(newTestAggregator(t))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/markets/status?name=부평깡시장", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(devices.MarketFire) {
		t.Fatalf("want fire, got %s", resp.Status)
	}
}

func TestUnknownMarketReadsNormal(t *testing.T) {
	handler, err := NewHandler(newTestAggregator(t))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/markets/market-99/status", nil))

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(devices.MarketNormal) {
		t.Fatalf("unknown markets read normal, got %s", resp.Status)
	}
}

func TestBrokerFansOutTransitions(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	broker.NotifyStatusChanged(context.Background(), marketstatus.StatusEvent{
		MarketID: "market-1",
		Status:   devices.MarketFire,
		Severity: "fire",
		At:       time.Now().UTC(),
	})

	select {
	case payload := <-ch:
		var event marketstatus.StatusEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if event.Status != devices.MarketFire {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}
