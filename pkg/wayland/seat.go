package wayland

import (
	"strings"
)

const SeatInterface = "wl_seat"

// SeatCapability is the set of device classes a seat exposes.
type SeatCapability uint32

const (
	SeatCapabilityPointer  SeatCapability = 1
	SeatCapabilityKeyboard SeatCapability = 2
	SeatCapabilityTouch    SeatCapability = 4
)

func (c SeatCapability) Has(other SeatCapability) bool {
	return c&other == other
}

func (c SeatCapability) String() string {
	var names []string
	if c.Has(SeatCapabilityPointer) {
		names = append(names, "pointer")
	}
	if c.Has(SeatCapabilityKeyboard) {
		names = append(names, "keyboard")
	}
	if c.Has(SeatCapabilityTouch) {
		names = append(names, "touch")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
