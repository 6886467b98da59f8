package qspi

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gentam/qspi/internal/regs"
)

// Flash is a serial NOR flash behind the QSPI controller. Every operation
// installs its LUT sequence and runs it under one Controller.Exec.
type Flash struct {
	c     *Controller
	ident atomic.Pointer[flashIdent]
}

type flashIdent struct {
	id [3]byte // JEDEC ID of the flash chip
	pr *flashParams
}

func NewFlash(c *Controller) *Flash {
	return &Flash{c: c}
}

// Flash commands:
//   - [N25Q256A|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	flashCmdPowerUp            = 0xAB // Release Power Down
	flashCmdPowerDown          = 0xB9
	flashCmdReadID             = 0x9F
	flashCmdRead               = 0x03
	flashCmdWriteEnable        = 0x06
	flashCmdPageProgram        = 0x02
	flashCmdErase4KB           = 0x20 // Subsector Erase / Sector Erase (4KB)
	flashCmdErase64KB          = 0xD8 // Sector Erase / Block Erase (64KB)
	flashCmdEraseChip          = 0xC7 // Bulk Erase / Chip Erase
	flashCmdReadStatusRegister = 0x05
)

// LUT slots owned by Flash. Callers mixing Flash with Controller.Exec
// should use slots from SeqUser up.
const (
	seqReadID = iota
	seqRead
	seqWriteEnable
	seqPageProgram
	seqReadStatus
	seqErase4KB
	seqErase64KB
	seqEraseChip
	seqPowerUp
	seqPowerDown

	SeqUser
)

const (
	idLen    = 3
	pageSize = 256
	rxChunk  = regs.RXWords * 4 // largest read that fits the RX buffer
	max24    = 1<<24 - 1        // 0xFFFFFF
)

// We begin in extended SPI mode, so every phase uses a single data line.
var (
	lutReadID = mustSequence(
		Instr{OpCmd, Pad1, flashCmdReadID},
		Instr{OpRead, Pad1, idLen},
	)
	lutRead = mustSequence(
		Instr{OpCmd, Pad1, flashCmdRead},
		Instr{OpAddr, Pad1, Addr24},
		Instr{OpRead, Pad1, rxChunk},
	)
	lutWriteEnable = mustSequence(Instr{OpCmd, Pad1, flashCmdWriteEnable})
	lutPageProgram = mustSequence(
		Instr{OpCmd, Pad1, flashCmdPageProgram},
		Instr{OpAddr, Pad1, Addr24},
		Instr{OpWrite, Pad1, 0},
	)
	lutReadStatus = mustSequence(
		Instr{OpCmd, Pad1, flashCmdReadStatusRegister},
		Instr{OpRead, Pad1, 1},
	)
	lutErase4KB = mustSequence(
		Instr{OpCmd, Pad1, flashCmdErase4KB},
		Instr{OpAddr, Pad1, Addr24},
	)
	lutErase64KB = mustSequence(
		Instr{OpCmd, Pad1, flashCmdErase64KB},
		Instr{OpAddr, Pad1, Addr24},
	)
	lutEraseChip = mustSequence(Instr{OpCmd, Pad1, flashCmdEraseChip})
	lutPowerUp   = mustSequence(Instr{OpCmd, Pad1, flashCmdPowerUp})
	lutPowerDown = mustSequence(Instr{OpCmd, Pad1, flashCmdPowerDown})
)

func mustSequence(instrs ...Instr) Sequence {
	s, err := NewSequence(instrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// run installs seq at slot, issues it at addr and drains rx bytes.
func (f *Flash) run(slot int, seq Sequence, addr uint32, rx int) ([]byte, error) {
	var out []byte
	err := f.c.Exec(func(t *Tx) error {
		if err := t.WriteSequence(slot, seq); err != nil {
			return err
		}
		if err := t.Issue(slot, addr, rx); err != nil {
			return err
		}
		if rx == 0 {
			return nil
		}
		var err error
		out, err = t.Drain(rx)
		return err
	})
	return out, err
}

func checkRange(addr, n int) error {
	if addr < 0 || n < 0 || addr+n-1 > max24 {
		return fmt.Errorf("address 0x%X+%d out of 24-bit range", addr, n)
	}
	return nil
}

func (f *Flash) PowerUp() error {
	if _, err := f.run(seqPowerUp, lutPowerUp, 0, 0); err != nil {
		return err
	}
	time.Sleep(f.tRES1())
	return nil
}

func (f *Flash) PowerDown() error {
	if _, err := f.run(seqPowerDown, lutPowerDown, 0, 0); err != nil {
		return err
	}
	time.Sleep(f.tDP())
	return nil
}

// ReadID returns the JEDEC ID of the flash chip and configures its parameters.
// It returns a non-empty name for known IDs. The extended device string is ignored.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	buf, err := f.run(seqReadID, lutReadID, 0, idLen)
	if err != nil {
		return
	}

	ident := &flashIdent{id: [3]byte(buf)}
	if params, ok := knownFlash[ident.id]; ok {
		ident.pr = &params
		name = params.name
	}
	f.ident.Store(ident)
	return ident.id, name, nil
}

// Read reads n bytes at addr, splitting the read into transactions that
// fit the RX buffer.
func (f *Flash) Read(addr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	got, err := f.ReadAt(out, int64(addr))
	return out[:got], err
}

// ReadAt implements io.ReaderAt. It returns the number of bytes read
// before any error.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(int(off), len(p)); err != nil {
		return 0, err
	}
	addr := uint32(off)
	read := 0
	for read < len(p) {
		chunk := min(len(p)-read, rxChunk)
		buf, err := f.run(seqRead, lutRead, addr, chunk)
		read += copy(p[read:], buf)
		if err != nil {
			return read, err
		}
		addr += uint32(chunk)
	}
	return read, nil
}

// WriteEnable sets the write enable latch and checks that it stuck.
func (f *Flash) WriteEnable() error {
	if _, err := f.run(seqWriteEnable, lutWriteEnable, 0, 0); err != nil {
		return err
	}
	sr, err := f.ReadStatusRegister()
	if err != nil {
		return err
	}
	if !sr.WriteEnabled() {
		return fmt.Errorf("status %s: %w", sr, ErrWriteProtected)
	}
	return nil
}

// Program loads data into the TX buffer and runs a page program at addr.
// The write enable latch must already be set. It returns the number of
// bytes sent; if that is less than len(data) the error is ErrShortWrite
// and the caller continues from there.
func (f *Flash) Program(addr int, data []byte) (int, error) {
	if len(data) < regs.MinTXWords*4 {
		return 0, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidSize, len(data), regs.MinTXWords*4)
	}
	if err := checkRange(addr, len(data)); err != nil {
		return 0, err
	}
	return f.program(addr, data)
}

// program is Program without argument checks. data may run past the end
// of the address space; page programming wraps within the page.
func (f *Flash) program(addr int, data []byte) (int, error) {
	var words int
	err := f.c.Exec(func(t *Tx) error {
		if err := t.WriteSequence(seqPageProgram, lutPageProgram); err != nil {
			return err
		}
		var err error
		words, err = t.Fill(seqPageProgram, uint32(addr), data)
		return err
	})
	if err != nil {
		return 0, err
	}
	n := min(words*4, len(data))
	if n < len(data) {
		return n, fmt.Errorf("%d of %d bytes at 0x%X: %w", n, len(data), addr, ErrShortWrite)
	}
	return n, nil
}

// addr: 24 bit
// data: max 256 bytes, must not cross a page boundary
func (f *Flash) pageProgram(addr int, data []byte) error {
	if len(data) > pageSize {
		return errors.New("data must not exceed 256 bytes")
	}
	if err := checkRange(addr, len(data)); err != nil {
		return err
	}
	// Erased bits read as 1, so 0xFF padding leaves the flash untouched,
	// even where it wraps to the start of the page.
	if minLen := regs.MinTXWords * 4; len(data) < minLen {
		padded := make([]byte, minLen)
		copy(padded, data)
		for i := len(data); i < minLen; i++ {
			padded[i] = 0xFF
		}
		data = padded
	}

	for len(data) > 0 {
		if err := f.WriteEnable(); err != nil {
			return err
		}
		n, err := f.program(addr, data)
		if err != nil && !errors.Is(err, ErrShortWrite) {
			return err
		}
		if err := f.BusyWait(100*time.Microsecond, f.tPP()); err != nil {
			return err
		}
		addr += n
		data = data[n:]
		if len(data) > 0 && len(data) < regs.MinTXWords*4 {
			return f.pageProgram(addr, data)
		}
	}
	return nil
}

// Write programs the contents of r starting at addr, one page at a time.
// The target range must be erased.
func (f *Flash) Write(addr int, r io.Reader) error {
	if err := checkRange(addr, 0); err != nil {
		return err
	}
	buf := [pageSize]byte{}
	for {
		// stop at the next page boundary
		n, err := io.ReadFull(r, buf[:pageSize-addr%pageSize])
		if n > 0 {
			if err := checkRange(addr, n); err != nil {
				return err
			}
			if err := f.pageProgram(addr, buf[:n]); err != nil {
				return err
			}
			addr += n
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (f *Flash) erase(slot int, seq Sequence, addr int, interval, timeout time.Duration) error {
	if err := checkRange(addr, 1); err != nil {
		return err
	}
	if err := f.WriteEnable(); err != nil {
		return err
	}
	if _, err := f.run(slot, seq, uint32(addr), 0); err != nil {
		return err
	}
	return f.BusyWait(interval, timeout)
}

// Erase4KB erases the 4KB subsector containing addr.
func (f *Flash) Erase4KB(addr int) error {
	return f.erase(seqErase4KB, lutErase4KB, addr, 50*time.Millisecond, f.tErase4KB())
}

// Erase64KB erases a 64KB sector.
func (f *Flash) Erase64KB(addr int) error {
	return f.erase(seqErase64KB, lutErase64KB, addr, 100*time.Millisecond, f.tErase64KB())
}

// EraseChip bulk erase the entire chip.
func (f *Flash) EraseChip() error {
	if err := f.WriteEnable(); err != nil {
		return err
	}
	if _, err := f.run(seqEraseChip, lutEraseChip, 0, 0); err != nil {
		return err
	}
	return f.BusyWait(time.Second, f.tEraseChip())
}

// Erase erases the size bytes starting from baseAddr by repeatedly calling
// Erase64KB and Erase4KB.
func (f *Flash) Erase(baseAddr, size int) error {
	const (
		sectorSize    = 64 << 10 // 64KB
		subsectorSize = 4 << 10  // 4KB
	)

	remaining := size
	addr := baseAddr

	// Use 64KB sectors for as much as possible
	for remaining >= sectorSize && addr%sectorSize == 0 {
		if err := f.Erase64KB(addr); err != nil {
			return err
		}
		addr += sectorSize
		remaining -= sectorSize
	}

	// Use 4KB subsectors for the rest
	for remaining > 0 {
		if err := f.Erase4KB(addr); err != nil {
			return err
		}
		addr += subsectorSize
		remaining -= subsectorSize
	}

	return nil
}

// BusyWait waits for the flash to become ready by polling the status
// register's bit 0 with specified intervals, or until the timeout expires.
func (f *Flash) BusyWait(interval, timeout time.Duration) error {
	// Fast path
	if sr, err := f.ReadStatusRegister(); err == nil && !sr.Busy() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return fmt.Errorf("flash busy after %v: %w", timeout, ErrTimeout)
		case <-ticker.C:
			sr, err := f.ReadStatusRegister()
			if err != nil {
				return err
			}
			if !sr.Busy() {
				return nil
			}
		}
	}
}

// StatusRegister represents the status register of the flash chip.
//
//	Bits| [N25Q256A|Table 9]                   | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Block protect 3                      | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	buf, err := f.run(seqReadStatus, lutReadStatus, 0, 1)
	if err != nil {
		return 0, err
	}
	return StatusRegister(buf[0]), nil
}
