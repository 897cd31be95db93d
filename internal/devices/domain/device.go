package devices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	repeaterIDMin = 1
	repeaterIDMax = 20
)

// Receiver is an R-type fire receiver panel, addressed by MAC per market.
type Receiver struct {
	ID         string
	MarketID   string
	MACAddress string
}

// Validate checks receiver invariants.
func (r Receiver) Validate() error {
	if r.ID == "" {
		return errors.New("receiver: empty id")
	}
	if r.MarketID == "" {
		return errors.New("receiver: empty market id")
	}
	if r.MACAddress == "" {
		return errors.New("receiver: empty mac address")
	}
	return nil
}

// Repeater is an intermediate relay under a receiver. The pair
// (ReceiverMAC, RepeaterID) identifies the physical unit.
type Repeater struct {
	ID          string
	MarketID    string
	ReceiverMAC string
	RepeaterID  string
}

// Validate checks repeater invariants.
func (r Repeater) Validate() error {
	if r.ID == "" {
		return errors.New("repeater: empty id")
	}
	if r.MarketID == "" {
		return errors.New("repeater: empty market id")
	}
	if r.ReceiverMAC == "" {
		return errors.New("repeater: empty receiver mac")
	}
	if err := ValidateRepeaterID(r.RepeaterID); err != nil {
		return err
	}
	return nil
}

// Detector is a smoke/heat sensor under a repeater. The triple
// (ReceiverMAC, RepeaterID, DetectorID) identifies the physical unit.
// A detector may serve zero or more stores.
type Detector struct {
	ID          string
	MarketID    string
	ReceiverMAC string
	RepeaterID  string
	DetectorID  string
	StoreIDs    []string
}

// Validate checks detector invariants.
func (d Detector) Validate() error {
	if d.ID == "" {
		return errors.New("detector: empty id")
	}
	if d.MarketID == "" {
		return errors.New("detector: empty market id")
	}
	if d.ReceiverMAC == "" {
		return errors.New("detector: empty receiver mac")
	}
	if err := ValidateRepeaterID(d.RepeaterID); err != nil {
		return err
	}
	if err := validateTwoDigit(d.DetectorID, "detector id"); err != nil {
		return err
	}
	return nil
}

// ValidateRepeaterID checks the 2-digit "01".."20" repeater address.
func ValidateRepeaterID(id string) error {
	if err := validateTwoDigit(id, "repeater id"); err != nil {
		return err
	}
	n, _ := strconv.Atoi(id)
	if n < repeaterIDMin || n > repeaterIDMax {
		return fmt.Errorf("devices: repeater id %q out of range 01..20", id)
	}
	return nil
}

func validateTwoDigit(id, label string) error {
	if len(id) != 2 {
		return fmt.Errorf("devices: %s %q must be 2 digits", label, id)
	}
	if strings.Trim(id, "0123456789") != "" {
		return fmt.Errorf("devices: %s %q must be numeric", label, id)
	}
	return nil
}
