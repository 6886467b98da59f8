package qspi

import (
	"fmt"
)

// ClockDevice identifies a peripheral clock for the platform clock gate.
type ClockDevice int

const (
	ClockQSPI1 ClockDevice = iota
)

func (d ClockDevice) String() string {
	switch d {
	case ClockQSPI1:
		return "qspi1"
	default:
		return fmt.Sprintf("clock(%d)", int(d))
	}
}

// ClockGate turns peripheral clocks on.
type ClockGate interface {
	EnableClock(dev ClockDevice) error
}

// ClockFunc adapts a function to ClockGate.
type ClockFunc func(dev ClockDevice) error

func (f ClockFunc) EnableClock(dev ClockDevice) error { return f(dev) }

// CCMClock gates clocks through the i.MX6ULL Clock Controller Module.
type CCMClock struct {
	Map MapFunc // defaults to MapPhysical
}

// [IMX6ULLRM|18.6 CCM Memory Map/Register Definition]
const (
	ccmBase  = 0x020C4000
	ccmCCGR3 = 0x74 / 4
	ccgrOn   = 0x3 // clock on in all modes except STOP
)

// ccmGates maps a device to its CCGR register and 2-bit gate index.
var ccmGates = map[ClockDevice]struct{ reg, cg int }{
	ClockQSPI1: {ccmCCGR3, 7}, // CCGR3 CG7: qspi1_clk_enable
}

func (c CCMClock) EnableClock(dev ClockDevice) error {
	gate, ok := ccmGates[dev]
	if !ok {
		return fmt.Errorf("no clock gate for %s", dev)
	}
	m := c.Map
	if m == nil {
		m = MapPhysical
	}
	w, err := m(ccmBase, 4096)
	if err != nil {
		return fmt.Errorf("map CCM: %w", err)
	}
	shift := 2 * gate.cg
	v := w.Read32(gate.reg)
	w.Write32(gate.reg, v&^(0x3<<shift)|ccgrOn<<shift)
	return w.Close()
}
