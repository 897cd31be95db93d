package application

import (
	"context"
	"errors"
	"fmt"

	devices "firewatch-cloud/internal/devices/domain"
)

// Identity resolves the physical device chain for incoming events.
// Classification must never default to an unknown market, so a receiver
// MAC with no record resolves to devices.ErrNotFound.
type Identity struct {
	markets   devices.MarketRepository
	receivers devices.ReceiverRepository
	repeaters devices.RepeaterRepository
	detectors devices.DetectorRepository
}

// NewIdentity constructs an identity resolver.
func NewIdentity(markets devices.MarketRepository, receivers devices.ReceiverRepository, repeaters devices.RepeaterRepository, detectors devices.DetectorRepository) (*Identity, error) {
	if markets == nil || receivers == nil {
		return nil, errors.New("identity: nil repository")
	}
	return &Identity{
		markets:   markets,
		receivers: receivers,
		repeaters: repeaters,
		detectors: detectors,
	}, nil
}

// ResolveReceiver maps a receiver MAC to its market.
func (s *Identity) ResolveReceiver(ctx context.Context, mac string) (*devices.Market, *devices.Receiver, error) {
	if s == nil {
		return nil, nil, errors.New("identity: nil service")
	}
	if mac == "" {
		return nil, nil, fmt.Errorf("identity: empty receiver mac: %w", devices.ErrNotFound)
	}
	receiver, err := s.receivers.GetByMAC(ctx, mac)
	if err != nil {
		return nil, nil, err
	}
	if receiver == nil {
		return nil, nil, fmt.Errorf("identity: receiver %s: %w", mac, devices.ErrNotFound)
	}
	market, err := s.markets.Get(ctx, receiver.MarketID)
	if err != nil {
		return nil, nil, err
	}
	if market == nil {
		// Orphaned receiver reference is a data-integrity error.
		return nil, nil, fmt.Errorf("identity: receiver %s references market %s: %w", mac, receiver.MarketID, devices.ErrNotFound)
	}
	return market, receiver, nil
}

// ResolveRepeater maps a (receiverMAC, repeaterID) pair to its record.
func (s *Identity) ResolveRepeater(ctx context.Context, mac, repeaterID string) (*devices.Repeater, error) {
	if s == nil || s.repeaters == nil {
		return nil, errors.New("identity: nil service")
	}
	repeater, err := s.repeaters.GetByAddress(ctx, mac, repeaterID)
	if err != nil {
		return nil, err
	}
	if repeater == nil {
		return nil, fmt.Errorf("identity: repeater %s/%s: %w", mac, repeaterID, devices.ErrNotFound)
	}
	return repeater, nil
}

// ResolveDetector maps a (receiverMAC, repeaterID, detectorID) triple to its record.
func (s *Identity) ResolveDetector(ctx context.Context, mac, repeaterID, detectorID string) (*devices.Detector, error) {
	if s == nil || s.detectors == nil {
		return nil, errors.New("identity: nil service")
	}
	detector, err := s.detectors.GetByAddress(ctx, mac, repeaterID, detectorID)
	if err != nil {
		return nil, err
	}
	if detector == nil {
		return nil, fmt.Errorf("identity: detector %s/%s/%s: %w", mac, repeaterID, detectorID, devices.ErrNotFound)
	}
	return detector, nil
}
