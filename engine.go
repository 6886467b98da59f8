package qspi

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/gentam/qspi/internal/regs"
)

// Tx is exclusive access to the controller for the duration of one Exec.
// It must not be retained after the Exec callback returns.
type Tx struct {
	c  *Controller
	id string
}

// Exec runs fn with the controller locked. A flash operation (table write,
// issue, drain or fill) must happen inside a single Exec: the hardware has
// one busy flag, one address register and one set of buffers shared by all
// sequences.
func (c *Controller) Exec(fn func(*Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return fn(&Tx{c: c, id: xid.New().String()})
}

// ID returns the operation ID attached to trace events of this Tx.
func (t *Tx) ID() string { return t.id }

// poll reads SR until ok returns true or the configured timeout expires.
func (c *Controller) poll(ok func(sr uint32) bool) bool {
	// Fast path
	if ok(c.regs.Read32(regs.SR)) {
		return true
	}

	if c.opts.PollInterval < 0 {
		deadline := time.Now().Add(c.opts.Timeout)
		for time.Now().Before(deadline) {
			if ok(c.regs.Read32(regs.SR)) {
				return true
			}
		}
		return ok(c.regs.Read32(regs.SR))
	}

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return ok(c.regs.Read32(regs.SR))
		case <-ticker.C:
			if ok(c.regs.Read32(regs.SR)) {
				return true
			}
		}
	}
}

func notBusy(sr uint32) bool   { return sr&regs.SRBusy == 0 }
func rxReady(sr uint32) bool   { return sr&regs.SRRXWE != 0 }
func txNotFull(sr uint32) bool { return sr&regs.SRTXFull == 0 }

// Issue runs LUT sequence seq as an IP command against flash address addr
// and blocks until the controller is idle again. size is the number of data
// bytes the sequence reads or writes (0 for none).
func (t *Tx) Issue(seq int, addr uint32, size int) error {
	if seq < 0 || seq >= regs.NumSeq {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, seq)
	}
	if size < 0 || size > regs.IPCRIDATSZ {
		return fmt.Errorf("%w: data size %d", ErrInvalidSize, size)
	}
	c := t.c
	r := c.regs

	// Wait for last command to be finished
	if !c.poll(notBusy) {
		return fmt.Errorf("seq %d: previous command: %w: %w", seq, ErrBusy, ErrTimeout)
	}
	t.trace(StageIssueStart, seq, addr, size)

	r.Write32(regs.SFAR, regs.AMBABase+addr)
	r.Write32(regs.MCR, r.Read32(regs.MCR)|regs.MCRClrRXF)
	r.Write32(regs.SPTRCLR, regs.SPTRCLRIPPTRC)

	// Writing the sequence ID starts execution.
	ipcr := r.Read32(regs.IPCR) &^ regs.IPCRFieldsClear
	ipcr |= uint32(seq)<<regs.IPCRSeqIDShift | uint32(size)
	r.Write32(regs.IPCR, ipcr)

	if !c.poll(notBusy) {
		return fmt.Errorf("seq %d at %#x: %w", seq, addr, ErrTimeout)
	}

	if fr := r.Read32(regs.FR); fr&regs.FRIPErrors != 0 {
		r.Write32(regs.FR, fr&regs.FRIPErrors)
		return fmt.Errorf("seq %d at %#x: FR=%#08x: %w", seq, addr, fr, ErrCommand)
	}

	t.trace(StageIssueComplete, seq, addr, size)
	return nil
}

// Drain reads size bytes from the RX buffer, one watermark at a time.
func (t *Tx) Drain(size int) ([]byte, error) {
	const wmWords = regs.RXWatermark / 4
	c := t.c
	r := c.regs

	out := make([]byte, 0, size+regs.RXWatermark)
	for len(out) < size {
		if !c.poll(rxReady) {
			return out, fmt.Errorf("RX watermark after %d/%d bytes: %w", len(out), size, ErrTimeout)
		}
		for i := 0; i < wmWords; i++ {
			out = binary.LittleEndian.AppendUint32(out, r.Read32(regs.RBDR+i))
		}
		// Pop the watermark's worth of data.
		r.Write32(regs.FR, regs.FRRBDF)
		t.trace(StageWatermark, -1, 0, regs.RXWatermark)
	}
	return out[:size], nil
}

// Fill loads data into the TX buffer and issues seq at addr to commit it.
// It returns the number of words written, which is less than the data
// length when the TX buffer capacity is reached; the caller must loop for
// the rest. A trailing partial word is padded with 0xFF.
func (t *Tx) Fill(seq int, addr uint32, data []byte) (int, error) {
	if len(data) < regs.MinTXWords*4 {
		return 0, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidSize, len(data), regs.MinTXWords*4)
	}
	c := t.c
	r := c.regs

	// If the buffer is not empty, clear it
	if r.Read32(regs.SR)&regs.SRTXEDA != 0 {
		r.Write32(regs.MCR, r.Read32(regs.MCR)|regs.MCRClrTXF)
	}

	r.Write32(regs.SFAR, regs.AMBABase+addr)

	nwords := (len(data) + 3) / 4
	written := 0
	for written < regs.TXWords && written < nwords {
		if !c.poll(txNotFull) {
			return written, fmt.Errorf("TX full after %d words: %w", written, ErrTimeout)
		}
		r.Write32(regs.TBDR, txWord(data, written))
		written++
	}
	t.trace(StageFill, seq, addr, min(written*4, len(data)))

	if err := t.Issue(seq, addr, min(written*4, len(data))); err != nil {
		return 0, err
	}
	return written, nil
}

// txWord returns the i-th little-endian word of data, padded with 0xFF.
func txWord(data []byte, i int) uint32 {
	var b [4]byte
	for j := range b {
		if k := 4*i + j; k < len(data) {
			b[j] = data[k]
		} else {
			b[j] = 0xFF
		}
	}
	return binary.LittleEndian.Uint32(b[:])
}
