// Package sim simulates the i.MX6ULL QuadSPI register window with a NOR
// flash attached, closely enough to run the qspi driver unmodified.
//
// The model executes LUT sequences when a command completes, keeps the RX
// and TX buffers as word queues, honours the LUT lock and the
// write-1-to-clear flag register, and records protocol misuse such as
// touching the table or address while a command is in flight.
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gentam/qspi"
	"github.com/gentam/qspi/internal/regs"
)

// Config describes the simulated controller and flash.
type Config struct {
	// JEDECID is returned by READ ID. Defaults to a Micron N25Q256A.
	JEDECID []byte

	// FlashSize in bytes. Defaults to 16MB.
	FlashSize int

	// BusyPolls is the number of SR reads a command reports busy.
	BusyPolls int

	// StuckBusy keeps the busy flag set forever once a command starts.
	StuckBusy bool

	// WIPReads is the number of status reads the flash reports WIP after
	// a program or erase.
	WIPReads int

	// ClockErr is returned by EnableClock.
	ClockErr error

	// TXCapacity is the number of words the TX buffer holds before it
	// reports full. Defaults to the hardware's 128.
	TXCapacity int
}

// Stats counts protocol events.
type Stats struct {
	Commands   int // IP commands started
	Pops       int // RX buffer pops
	RegWrites  int
	Violations int // table, address or command writes during a command, RX data discarded unread
	Dropped    int // LUT writes while locked
}

// Device is a simulated QuadSPI register window.
type Device struct {
	mu  sync.Mutex
	cfg Config

	raw    [regs.Size / 4]uint32
	lut    [regs.LUTWords]uint32
	locked bool
	armed  bool // LUT key written, next LCKCR write takes effect
	clock  bool
	closed bool

	busy     bool
	busyLeft int
	pending  command

	fr      uint32
	rx      []uint32
	rxOwed  int // words of the last read not yet popped
	tx      []uint32
	wmWords int

	flash *NOR
	stats Stats
}

type command struct {
	seq  int
	size int
	sfar uint32
}

// New returns a simulated controller in its reset state.
func New(cfg Config) *Device {
	if cfg.JEDECID == nil {
		cfg.JEDECID = []byte{0x20, 0xBA, 0x19}
	}
	if cfg.FlashSize == 0 {
		cfg.FlashSize = 16 << 20
	}
	if cfg.TXCapacity <= 0 || cfg.TXCapacity > regs.TXWords {
		cfg.TXCapacity = regs.TXWords
	}
	d := &Device{
		cfg:     cfg,
		locked:  true,
		wmWords: 1,
		flash:   newNOR(cfg.JEDECID, cfg.FlashSize, cfg.WIPReads),
	}
	d.raw[regs.MCR] = regs.MCRMDIS | regs.MCREndCfg
	d.raw[regs.LCKCR] = regs.LCKCRLock
	return d
}

// Map returns d as a register window regardless of the requested base.
func (d *Device) Map(base uint64, size int) (qspi.Window, error) {
	if size > regs.Size {
		return nil, fmt.Errorf("sim: window of %d bytes exceeds %d", size, regs.Size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = false
	return d, nil
}

// EnableClock implements qspi.ClockGate.
func (d *Device) EnableClock(dev qspi.ClockDevice) error {
	if d.cfg.ClockErr != nil {
		return d.cfg.ClockErr
	}
	if dev != qspi.ClockQSPI1 {
		return errors.New("sim: unknown clock")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = true
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Device) Read32(off int) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case off == regs.SR:
		return d.readSR()
	case off == regs.FR:
		return d.fr
	case off == regs.RBSR:
		return uint32(len(d.rx))<<regs.RBSRRDBFLShift | uint32(d.stats.Pops)<<regs.RBSRRDCTRShift
	case off == regs.TBSR:
		return uint32(len(d.tx)) << regs.TBSRTRBFLShift
	case off >= regs.RBDR && off < regs.RBDR+regs.RXWords:
		if i := off - regs.RBDR; i < len(d.rx) {
			return d.rx[i]
		}
		return 0
	case off >= regs.LUT && off < regs.LUT+regs.LUTWords:
		return d.lut[off-regs.LUT]
	}
	return d.raw[off]
}

func (d *Device) readSR() uint32 {
	var sr uint32
	if d.busy {
		switch {
		case d.cfg.StuckBusy:
			sr |= regs.SRBusy
		case d.busyLeft > 0:
			d.busyLeft--
			sr |= regs.SRBusy
		default:
			d.complete()
		}
	}
	if len(d.rx) >= d.wmWords {
		sr |= regs.SRRXWE
	}
	if len(d.rx) >= regs.RXWords {
		sr |= regs.SRRXFull
	}
	if len(d.tx) > 0 {
		sr |= regs.SRTXEDA
	}
	if len(d.tx) >= d.cfg.TXCapacity {
		sr |= regs.SRTXFull
	}
	return sr
}

func (d *Device) Write32(off int, v uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.RegWrites++

	switch {
	case off == regs.MCR:
		d.writeMCR(v)
	case off == regs.IPCR:
		d.writeIPCR(v)
	case off == regs.SFAR:
		if d.busy {
			d.stats.Violations++
		}
		d.raw[off] = v
	case off == regs.SPTRCLR:
		// pointer clear strobes, nothing to keep
	case off == regs.TBDR:
		if len(d.tx) >= d.cfg.TXCapacity {
			d.fr |= regs.FRTBFF
			return
		}
		d.tx = append(d.tx, v)
	case off == regs.FR:
		if v&regs.FRRBDF != 0 {
			d.pop()
		}
		d.fr &^= v
	case off == regs.RBCT:
		d.raw[off] = v
		d.wmWords = int(v&regs.RBCTWMRK) + 1
	case off == regs.LUTKEY:
		d.armed = v == regs.LUTKeyValue
	case off == regs.LCKCR:
		if d.armed {
			switch {
			case v&regs.LCKCRUnlock != 0:
				d.locked = false
			case v&regs.LCKCRLock != 0:
				d.locked = true
			}
			d.raw[off] = v
		}
		d.armed = false
	case off >= regs.LUT && off < regs.LUT+regs.LUTWords:
		if d.locked {
			d.stats.Dropped++
			return
		}
		if d.busy {
			d.stats.Violations++
		}
		d.lut[off-regs.LUT] = v
	default:
		d.raw[off] = v
	}
}

func (d *Device) writeMCR(v uint32) {
	if v&regs.MCRSoftwareResets != 0 {
		d.rx, d.tx = nil, nil
		d.rxOwed = 0
		d.busy = false
		d.fr = 0
	}
	if v&regs.MCRClrRXF != 0 {
		if d.rxOwed > 0 {
			d.stats.Violations++
		}
		d.rx = nil
		d.rxOwed = 0
	}
	if v&regs.MCRClrTXF != 0 {
		d.tx = nil
	}
	// buffer clears are self-clearing strobes
	d.raw[regs.MCR] = v &^ (regs.MCRClrRXF | regs.MCRClrTXF)
}

func (d *Device) writeIPCR(v uint32) {
	if d.busy {
		d.stats.Violations++
		d.fr |= regs.FRIPIEF
		return
	}
	if d.raw[regs.MCR]&regs.MCRMDIS != 0 || !d.clock {
		// module disabled: the command is ignored
		d.fr |= regs.FRIPIEF
		return
	}
	d.raw[regs.IPCR] = v
	d.pending = command{
		seq:  int(v&regs.IPCRSeqID) >> regs.IPCRSeqIDShift,
		size: int(v & regs.IPCRIDATSZ),
		sfar: d.raw[regs.SFAR],
	}
	d.busy = true
	d.busyLeft = d.cfg.BusyPolls
	d.stats.Commands++
}

// complete runs the pending sequence against the flash and ends the command.
func (d *Device) complete() {
	d.busy = false
	cmd := d.pending

	f := frame{}
	addr := cmd.sfar - regs.AMBABase
	base := cmd.seq * regs.SeqWords
run:
	for _, w := range d.lut[base : base+regs.SeqWords] {
		i0, i1 := qspi.Decode(w)
		for _, in := range [2]qspi.Instr{i0, i1} {
			switch in.Op {
			case qspi.OpStop, qspi.OpJmpOnCS:
				break run
			case qspi.OpCmd:
				f.cmd, f.hasCmd = in.Operand, true
			case qspi.OpAddr:
				f.addr, f.hasAddr = addr, true
				if in.Operand < 32 {
					f.addr &= 1<<in.Operand - 1
				}
			case qspi.OpRead:
				f.read = cmd.size
				if f.read == 0 {
					f.read = int(in.Operand)
				}
			case qspi.OpWrite:
				f.data = d.takeTX(cmd.size)
			}
		}
	}

	out := d.flash.transfer(f)
	d.pushRX(out)
}

func (d *Device) takeTX(n int) []byte {
	buf := make([]byte, 0, len(d.tx)*4)
	for _, w := range d.tx {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	n = min(n, len(buf))
	d.tx = d.tx[(n+3)/4:]
	return buf[:n]
}

func (d *Device) pushRX(b []byte) {
	for i := 0; i < len(b); i += 4 {
		var w [4]byte
		copy(w[:], b[i:])
		if len(d.rx) >= regs.RXWords {
			d.fr |= regs.FRRBOF
			continue
		}
		d.rx = append(d.rx, binary.LittleEndian.Uint32(w[:]))
		d.rxOwed++
	}
}

func (d *Device) pop() {
	n := min(d.wmWords, len(d.rx))
	d.rx = d.rx[n:]
	d.rxOwed = max(d.rxOwed-n, 0)
	d.stats.Pops++
}

// Stats returns the event counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LUT returns a copy of the lookup table.
func (d *Device) LUT() [regs.LUTWords]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lut
}

// Locked reports whether the LUT is locked.
func (d *Device) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// Enabled reports whether MCR.MDIS is clear.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw[regs.MCR]&regs.MCRMDIS == 0
}

func (d *Device) ClockEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// Busy reports whether a command is in flight.
func (d *Device) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// SetStuckBusy changes Config.StuckBusy.
func (d *Device) SetStuckBusy(stuck bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.StuckBusy = stuck
}

// Load copies data into flash memory at addr, bypassing programming rules.
func (d *Device) Load(addr int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.flash.mem[addr:], data)
}

// Contents returns a copy of n bytes of flash memory at addr.
func (d *Device) Contents(addr, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.flash.mem[addr:addr+n]...)
}

// FlashStatus returns the flash status register without side effects.
func (d *Device) FlashStatus() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flash.status()
}
