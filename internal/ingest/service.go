package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"firewatch-cloud/internal/auth"
	"firewatch-cloud/internal/codes"
	datalog "firewatch-cloud/internal/datalog/domain"
	devices "firewatch-cloud/internal/devices/domain"
	"firewatch-cloud/internal/eventing"
	firehistory "firewatch-cloud/internal/firehistory/domain"
	"firewatch-cloud/internal/observability/metrics"
)

// IdentityResolver resolves a receiver MAC to its market.
type IdentityResolver interface {
	ResolveReceiver(ctx context.Context, mac string) (*devices.Market, *devices.Receiver, error)
}

// Classifier maps status codes to severities.
type Classifier interface {
	Resolve(code string) string
	Classify(code string) codes.Classification
}

// Ledger records fire and fault events durably.
type Ledger interface {
	Append(ctx context.Context, item firehistory.Item) (*firehistory.Item, error)
}

// AuditLog records every raw packet.
type AuditLog interface {
	Append(ctx context.Context, item datalog.Item) (*datalog.Item, error)
}

// StatusAggregator maintains the live market status view.
type StatusAggregator interface {
	Update(ctx context.Context, marketID, marketName string, severity codes.Severity, at time.Time) error
	StatusOf(marketID string) devices.MarketStatus
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service is the single entry point for device telemetry. Each call is
// an independent unit of work; a failure affects only its own event.
type Service struct {
	identity   IdentityResolver
	classifier Classifier
	ledger     Ledger
	audit      AuditLog
	aggregator StatusAggregator
	publisher  Publisher
	clock      Clock
	logger     *log.Logger
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithPublisher assigns an event publisher.
func WithPublisher(publisher Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// NewService constructs the ingestion service.
func NewService(
	identity IdentityResolver,
	classifier Classifier,
	ledger Ledger,
	audit AuditLog,
	aggregator StatusAggregator,
	logger *log.Logger,
	opts ...ServiceOption,
) (*Service, error) {
	if identity == nil {
		return nil, errors.New("ingest: nil identity resolver")
	}
	if classifier == nil {
		return nil, errors.New("ingest: nil classifier")
	}
	if ledger == nil {
		return nil, errors.New("ingest: nil ledger")
	}
	if audit == nil {
		return nil, errors.New("ingest: nil audit log")
	}
	if aggregator == nil {
		return nil, errors.New("ingest: nil aggregator")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		identity:   identity,
		classifier: classifier,
		ledger:     ledger,
		audit:      audit,
		aggregator: aggregator,
		clock:      systemClock{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Ingest classifies one raw packet. The packet is always audit-logged,
// even when validation or market resolution fails; in that case the
// audit entry carries a classification-failed marker.
func (s *Service) Ingest(ctx context.Context, raw RawEvent) (Result, error) {
	if s == nil {
		return Result{}, errors.New("ingest: nil service")
	}
	start := time.Now()

	at := raw.Timestamp
	if at.IsZero() {
		at = s.clock.Now().UTC()
	}

	if err := raw.Validate(); err != nil {
		s.auditPacket(ctx, raw, "", at, true)
		metrics.IncIngestError("validation")
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		return Result{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	market, _, err := s.identity.ResolveReceiver(ctx, raw.ReceiverMAC)
	if err != nil {
		s.auditPacket(ctx, raw, "", at, true)
		if errors.Is(err, devices.ErrNotFound) {
			metrics.IncIngestError("unknown_receiver")
		} else {
			metrics.IncIngestError("storage")
		}
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		return Result{}, err
	}

	s.auditPacket(ctx, raw, market.Name, at, false)

	severity, degraded := s.classify(raw)
	metrics.IncClassified(severity.String(), degraded)

	if err := s.aggregator.Update(ctx, market.ID, market.Name, severity, at); err != nil {
		s.logger.Printf("ingest: status update failed for market %s: %v", market.ID, err)
	}

	result := Result{
		MarketID:   market.ID,
		MarketName: market.Name,
		Severity:   severity.String(),
		Degraded:   degraded,
	}

	if severity == codes.SeverityFire || severity == codes.SeverityFault {
		class := firehistory.ClassFault
		if severity == codes.SeverityFire {
			class = firehistory.ClassFire
		}
		stored, err := s.ledger.Append(ctx, firehistory.Item{
			MarketID:        market.ID,
			MarketName:      market.Name,
			ReceiverMAC:     raw.ReceiverMAC,
			ReceiverStatus:  raw.ReceiverStatusCode,
			RepeaterID:      raw.RepeaterID,
			RepeaterStatus:  raw.RepeaterStatusCode,
			DetectorChamber: raw.DetectorChamber,
			DetectorTemp:    raw.DetectorTemp,
			Class:           class,
			Degraded:        degraded,
			Registrar:       auth.RegistrarFromContext(ctx),
			RegisteredAt:    at,
		})
		if err != nil {
			metrics.IncIngestError("ledger")
			metrics.ObserveIngest(metrics.ResultError, time.Since(start))
			return Result{}, err
		}
		result.LedgerEntryID = stored.ID
	}

	result.MarketStatus = string(s.aggregator.StatusOf(market.ID))
	s.publishClassified(ctx, raw, result, at)

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	return result, nil
}

// classify resolves both status codes and combines them by severity
// priority. An empty code contributes nothing.
func (s *Service) classify(raw RawEvent) (codes.Severity, bool) {
	severity := codes.SeverityNormal
	degraded := false

	apply := func(code string) {
		if code == "" {
			return
		}
		c := s.classifier.Classify(code)
		if c.Severity > severity {
			severity = c.Severity
			degraded = c.Degraded
		} else if c.Severity == severity && c.Degraded {
			degraded = true
		}
	}
	apply(raw.ReceiverStatusCode)
	apply(raw.RepeaterStatusCode)
	return severity, degraded
}

func (s *Service) auditPacket(ctx context.Context, raw RawEvent, marketName string, at time.Time, failed bool) {
	logType := datalog.LogTypeReceiver
	if raw.RepeaterID != "" {
		logType = datalog.LogTypeRepeater
	}
	item := datalog.Item{
		MarketName:    marketName,
		LogType:       logType,
		ReceiverID:    raw.ReceiverMAC,
		RepeaterID:    raw.RepeaterID,
		ReceivedData:  raw.ReceivedData,
		CommStatus:    raw.CommStatus,
		BatteryStatus: raw.BatteryStatus,
		ChamberStatus: raw.ChamberStatus,
		Failed:        failed,
		RegisteredAt:  at,
	}
	if item.ReceiverID == "" {
		item.ReceiverID = "unknown"
	}
	if _, err := s.audit.Append(ctx, item); err != nil {
		s.logger.Printf("ingest: audit log append failed: %v", err)
	}
}

func (s *Service) publishClassified(ctx context.Context, raw RawEvent, result Result, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := eventing.EventClassified{
		EventID:     eventing.NewEventID(),
		MarketID:    result.MarketID,
		MarketName:  result.MarketName,
		ReceiverMAC: raw.ReceiverMAC,
		RepeaterID:  raw.RepeaterID,
		Severity:    result.Severity,
		Degraded:    result.Degraded,
		LedgerID:    result.LedgerEntryID,
		OccurredAt:  at,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("ingest: event publish failed: %v", err)
	}
}
