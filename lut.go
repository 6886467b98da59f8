package qspi

import (
	"fmt"

	"github.com/gentam/qspi/internal/regs"
)

// Opcode is a 6-bit LUT instruction code.
//
// [IMX6ULLRM|37.5.2.1 Instruction set] (SDR and DDR variants)
type Opcode uint8

const (
	OpStop      Opcode = 0x00
	OpCmd       Opcode = 0x01
	OpAddr      Opcode = 0x02
	OpDummy     Opcode = 0x03
	OpMode      Opcode = 0x04
	OpMode2     Opcode = 0x05
	OpMode4     Opcode = 0x06
	OpRead      Opcode = 0x07
	OpWrite     Opcode = 0x08
	OpJmpOnCS   Opcode = 0x09
	OpAddrDDR   Opcode = 0x0A
	OpModeDDR   Opcode = 0x0B
	OpMode2DDR  Opcode = 0x0C
	OpMode4DDR  Opcode = 0x0D
	OpReadDDR   Opcode = 0x0E
	OpWriteDDR  Opcode = 0x0F
	OpDataLearn Opcode = 0x10
	OpCmdDDR    Opcode = 0x11
	OpCAddr     Opcode = 0x12
	OpCAddrDDR  Opcode = 0x13
)

var opcodeNames = map[Opcode]string{
	OpStop:      "STOP",
	OpCmd:       "CMD",
	OpAddr:      "ADDR",
	OpDummy:     "DUMMY",
	OpMode:      "MODE",
	OpMode2:     "MODE2",
	OpMode4:     "MODE4",
	OpRead:      "READ",
	OpWrite:     "WRITE",
	OpJmpOnCS:   "JMP_ON_CS",
	OpAddrDDR:   "ADDR_DDR",
	OpModeDDR:   "MODE_DDR",
	OpMode2DDR:  "MODE2_DDR",
	OpMode4DDR:  "MODE4_DDR",
	OpReadDDR:   "READ_DDR",
	OpWriteDDR:  "WRITE_DDR",
	OpDataLearn: "DATA_LEARN",
	OpCmdDDR:    "CMD_DDR",
	OpCAddr:     "CADDR",
	OpCAddrDDR:  "CADDR_DDR",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OP(%#02x)", uint8(op))
}

// Pad selects the number of data lines an instruction uses.
type Pad uint8

const (
	Pad1 Pad = iota
	Pad2
	Pad4
	Pad8
)

// Lines returns the number of data lines, 1, 2, 4 or 8.
func (p Pad) Lines() int { return 1 << (p & 0x3) }

// Address widths, in bits, used as the operand of OpAddr.
const (
	Addr24 = 0x18
	Addr32 = 0x20
)

// Instr is a single LUT instruction.
type Instr struct {
	Op      Opcode
	Pad     Pad
	Operand uint8
}

func (i Instr) String() string {
	return fmt.Sprintf("%s/%d %#02x", i.Op, i.Pad.Lines(), i.Operand)
}

// Masked returns i with every field truncated to its encoded width.
func (i Instr) Masked() Instr {
	return Instr{Op: i.Op & 0x3F, Pad: i.Pad & 0x3, Operand: i.Operand}
}

// Encode packs two instructions into one LUT word:
//
//	Bits  | Field
//	------+---------------------
//	31:26 | instr1 opcode
//	25:24 | instr1 pad
//	23:16 | instr1 operand
//	15:10 | instr0 opcode
//	9:8   | instr0 pad
//	7:0   | instr0 operand
//
// Out of range opcodes and pads are truncated, as the hardware would.
func Encode(i0, i1 Instr) uint32 {
	return uint32(i1.Op&0x3F)<<26 | uint32(i1.Pad&0x3)<<24 | uint32(i1.Operand)<<16 |
		uint32(i0.Op&0x3F)<<10 | uint32(i0.Pad&0x3)<<8 | uint32(i0.Operand)
}

// Decode is the inverse of Encode.
func Decode(w uint32) (i0, i1 Instr) {
	i0 = Instr{Op: Opcode(w >> 10 & 0x3F), Pad: Pad(w >> 8 & 0x3), Operand: uint8(w)}
	i1 = Instr{Op: Opcode(w >> 26 & 0x3F), Pad: Pad(w >> 24 & 0x3), Operand: uint8(w >> 16)}
	return
}

// Sequence is the content of one LUT slot: up to 8 instructions.
type Sequence [regs.SeqWords]uint32

// NewSequence packs instrs into a Sequence. Unused instructions are STOP.
func NewSequence(instrs ...Instr) (Sequence, error) {
	var s Sequence
	if len(instrs) > 2*regs.SeqWords {
		return s, fmt.Errorf("sequence of %d instructions exceeds %d", len(instrs), 2*regs.SeqWords)
	}
	var pair [2 * regs.SeqWords]Instr
	copy(pair[:], instrs)
	for i := range s {
		s[i] = Encode(pair[2*i], pair[2*i+1])
	}
	return s, nil
}

// Instrs decodes s up to, not including, the first STOP.
func (s Sequence) Instrs() []Instr {
	var out []Instr
	for _, w := range s {
		i0, i1 := Decode(w)
		for _, in := range [2]Instr{i0, i1} {
			if in.Op == OpStop {
				return out
			}
			out = append(out, in)
		}
	}
	return out
}

// WriteSequence installs seq at LUT slot index. The table is unlocked for
// the copy and locked again afterwards; writes to a locked table are
// silently dropped by the hardware, so a bad table write only shows up as
// a failing transaction later.
func (t *Tx) WriteSequence(index int, seq Sequence) error {
	if index < 0 || index >= regs.NumSeq {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	r := t.c.regs

	r.Write32(regs.LUTKEY, regs.LUTKeyValue)
	r.Write32(regs.LCKCR, regs.LCKCRUnlock)

	base := regs.LUT + regs.SeqWords*index
	for i, w := range seq {
		r.Write32(base+i, w)
	}

	r.Write32(regs.LUTKEY, regs.LUTKeyValue)
	r.Write32(regs.LCKCR, regs.LCKCRLock)

	t.trace(StageTableWrite, index, 0, 0)
	return nil
}
