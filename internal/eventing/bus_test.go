package eventing

import (
	"context"
	"errors"
	"testing"
)

func TestPublishDeliversToAllHandlers(t *testing.T) {
	bus := NewInMemoryBus()
	eventType := EventTypeOf[EventClassified]()

	var calls int
	bus.Subscribe(eventType, func(_ context.Context, _ any) error {
		calls++
		return nil
	})
	bus.Subscribe(eventType, func(_ context.Context, _ any) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), EventClassified{EventID: NewEventID(), Severity: "fire"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 handler calls, got %d", calls)
	}
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryBus()
	eventType := EventTypeOf[MarketStatusChanged]()
	wantErr := errors.New("handler failed")

	var second bool
	bus.Subscribe(eventType, func(_ context.Context, _ any) error { return wantErr })
	bus.Subscribe(eventType, func(_ context.Context, _ any) error {
		second = true
		return nil
	})

	err := bus.Publish(context.Background(), MarketStatusChanged{Status: "fire"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("want first handler error, got %v", err)
	}
	if !second {
		t.Fatal("later handlers must still run")
	}
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("want ErrNilEvent, got %v", err)
	}
}

func TestPointerAndValueShareEventType(t *testing.T) {
	if EventType(EventClassified{}) != EventType(&EventClassified{}) {
		t.Fatal("pointer and value must map to the same event type")
	}
}
