package codes

import (
	"context"
	"errors"
	"log"
	"testing"
)

type stubCodeRepo struct {
	rows []CommonCode
	err  error
}

func (s stubCodeRepo) ListAll(_ context.Context) ([]CommonCode, error) {
	return s.rows, s.err
}

func testRows() []CommonCode {
	return []CommonCode{
		{Code: "10", Name: "화재알람", Severity: SeverityFire, HasSeverity: true},
		{Code: "35", Name: "화재해소", Severity: SeverityRecovered, HasSeverity: true},
		{Code: "49", Name: "통신단선"},
		{Code: "00", Name: "정상", Severity: SeverityNormal, HasSeverity: true},
	}
}

func TestResolveUnregisteredCodePassthrough(t *testing.T) {
	registry := NewRegistry(log.Default())
	if err := registry.Load(context.Background(), stubCodeRepo{rows: testRows()}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := registry.Resolve("77"); got != "77" {
		t.Fatalf("expected passthrough %q, got %q", "77", got)
	}
	if got := registry.Resolve("10"); got != "화재알람" {
		t.Fatalf("expected resolved name, got %q", got)
	}
}

func TestClassifyMaintainedSeverity(t *testing.T) {
	registry := NewRegistry(log.Default())
	if err := registry.Load(context.Background(), stubCodeRepo{rows: testRows()}); err != nil {
		t.Fatalf("load: %v", err)
	}

	fire := registry.Classify("10")
	if fire.Severity != SeverityFire || fire.Degraded {
		t.Fatalf("expected maintained fire classification, got %+v", fire)
	}

	// 화재해소 contains the fire keyword; the maintained severity must
	// win over any keyword guess.
	recovered := registry.Classify("35")
	if recovered.Severity != SeverityRecovered || recovered.Degraded {
		t.Fatalf("expected maintained recovered classification, got %+v", recovered)
	}
}

func TestClassifyKeywordFallbackIsDegraded(t *testing.T) {
	registry := NewRegistry(log.Default())
	if err := registry.Load(context.Background(), stubCodeRepo{rows: testRows()}); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Code 49 has a name but no maintained severity.
	fault := registry.Classify("49")
	if fault.Severity != SeverityFault || !fault.Degraded {
		t.Fatalf("expected degraded fault classification, got %+v", fault)
	}

	// Unregistered code with no name at all classifies as normal noise.
	unknown := registry.Classify("88")
	if unknown.Severity != SeverityNormal || !unknown.Degraded {
		t.Fatalf("expected degraded normal classification, got %+v", unknown)
	}
}

func TestKeywordTieBreakPrefersFire(t *testing.T) {
	registry := NewRegistry(log.Default(), WithSeedCodes([]CommonCode{
		{Code: "91", Name: "화재수신기 고장"},
	}))
	got := registry.Classify("91")
	if got.Severity != SeverityFire {
		t.Fatalf("expected fire priority on keyword tie, got %v", got.Severity)
	}
}

func TestLoadFailureFallsBackToPassthrough(t *testing.T) {
	registry := NewRegistry(log.Default(), WithSeedCodes([]CommonCode{
		{Code: "10", Name: "화재알람", Severity: SeverityFire, HasSeverity: true},
	}))
	err := registry.Load(context.Background(), stubCodeRepo{err: errors.New("connection refused")})
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
	if registry.Loaded() {
		t.Fatal("registry must not report loaded after failure")
	}

	// Seeded entries survive; everything else passes through raw.
	if got := registry.Resolve("10"); got != "화재알람" {
		t.Fatalf("expected seeded name, got %q", got)
	}
	if got := registry.Resolve("49"); got != "49" {
		t.Fatalf("expected raw passthrough, got %q", got)
	}
}

func TestMaxSeverity(t *testing.T) {
	if MaxSeverity(SeverityFault, SeverityFire) != SeverityFire {
		t.Fatal("fire must win over fault")
	}
	if MaxSeverity(SeverityRecovered, SeverityNormal) != SeverityRecovered {
		t.Fatal("recovered must win over normal")
	}
}
