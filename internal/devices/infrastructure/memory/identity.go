package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	devices "firewatch-cloud/internal/devices/domain"
)

// IdentityStore is an in-memory device identity store. It implements the
// same repository interfaces as the Postgres implementations and backs
// unit tests and single-node deployments.
type IdentityStore struct {
	mu        sync.RWMutex
	markets   map[string]devices.Market
	receivers map[string]devices.Receiver // keyed by MAC
	repeaters map[string]devices.Repeater // keyed by MAC|repeaterID
	detectors map[string]devices.Detector // keyed by MAC|repeaterID|detectorID
}

// NewIdentityStore constructs an empty store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		markets:   make(map[string]devices.Market),
		receivers: make(map[string]devices.Receiver),
		repeaters: make(map[string]devices.Repeater),
		detectors: make(map[string]devices.Detector),
	}
}

// Markets exposes the MarketRepository view.
func (s *IdentityStore) Markets() devices.MarketRepository { return (*marketStore)(s) }

// Receivers exposes the ReceiverRepository view.
func (s *IdentityStore) Receivers() devices.ReceiverRepository { return (*receiverStore)(s) }

// Repeaters exposes the RepeaterRepository view.
func (s *IdentityStore) Repeaters() devices.RepeaterRepository { return (*repeaterStore)(s) }

// Detectors exposes the DetectorRepository view.
func (s *IdentityStore) Detectors() devices.DetectorRepository { return (*detectorStore)(s) }

type marketStore IdentityStore

func (s *marketStore) Get(_ context.Context, id string) (*devices.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	market, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	copy := market
	return &copy, nil
}

func (s *marketStore) GetByName(_ context.Context, name string) (*devices.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, market := range s.markets {
		if market.Name == name {
			copy := market
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *marketStore) Save(_ context.Context, market *devices.Market) error {
	if market == nil {
		return errors.New("identity store: nil market")
	}
	if err := market.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *market
	if stored.UsageStatus == "" {
		stored.UsageStatus = devices.UsageInService
	}
	if stored.Status == "" {
		stored.Status = devices.MarketNormal
	}
	s.markets[market.ID] = stored
	return nil
}

func (s *marketStore) UpdateStatus(_ context.Context, id string, status devices.MarketStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	market, ok := s.markets[id]
	if !ok {
		return devices.ErrNotFound
	}
	market.Status = status
	market.UpdatedAt = at.UTC()
	s.markets[id] = market
	return nil
}

type receiverStore IdentityStore

func (s *receiverStore) GetByMAC(_ context.Context, mac string) (*devices.Receiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receiver, ok := s.receivers[mac]
	if !ok {
		return nil, nil
	}
	copy := receiver
	return &copy, nil
}

func (s *receiverStore) Save(_ context.Context, receiver *devices.Receiver) error {
	if receiver == nil {
		return errors.New("identity store: nil receiver")
	}
	if err := receiver.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivers[receiver.MACAddress] = *receiver
	return nil
}

type repeaterStore IdentityStore

func (s *repeaterStore) GetByAddress(_ context.Context, receiverMAC, repeaterID string) (*devices.Repeater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repeater, ok := s.repeaters[receiverMAC+"|"+repeaterID]
	if !ok {
		return nil, nil
	}
	copy := repeater
	return &copy, nil
}

func (s *repeaterStore) Save(_ context.Context, repeater *devices.Repeater) error {
	if repeater == nil {
		return errors.New("identity store: nil repeater")
	}
	if err := repeater.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeaters[repeater.ReceiverMAC+"|"+repeater.RepeaterID] = *repeater
	return nil
}

type detectorStore IdentityStore

func (s *detectorStore) GetByAddress(_ context.Context, receiverMAC, repeaterID, detectorID string) (*devices.Detector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	detector, ok := s.detectors[receiverMAC+"|"+repeaterID+"|"+detectorID]
	if !ok {
		return nil, nil
	}
	copy := detector
	copy.StoreIDs = append([]string(nil), detector.StoreIDs...)
	return &copy, nil
}

func (s *detectorStore) Save(_ context.Context, detector *devices.Detector) error {
	if detector == nil {
		return errors.New("identity store: nil detector")
	}
	if err := detector.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *detector
	stored.StoreIDs = append([]string(nil), detector.StoreIDs...)
	s.detectors[detector.ReceiverMAC+"|"+detector.RepeaterID+"|"+detector.DetectorID] = stored
	return nil
}
