// Package regs describes the register window of the i.MX6ULL QuadSPI
// controller. Offsets are in 32-bit words from the start of the window.
//
// [IMX6ULLRM|Chapter 37 Quad Serial Peripheral Interface (QuadSPI)]
package regs

const (
	Base = 0x21E0000 // QuadSPI register window
	Size = 4096      // one page

	// AMBABase is where the serial flash is mapped on the AHB bus. SFAR
	// takes addresses in this range; the controller sends SFAR-AMBABase
	// to flash A1.
	AMBABase = 0x60000000
)

// Register word offsets.
const (
	MCR     = 0
	IPCR    = 2
	FLSHCR  = 3
	BUF0CR  = 4
	BUF1CR  = 5
	BUF2CR  = 6
	BUF3CR  = 7
	BFGENCR = 8
	BUF0IND = 12
	BUF1IND = 13
	BUF2IND = 14
	SFAR    = 64
	SMPR    = 66
	RBSR    = 67
	RBCT    = 68
	TBSR    = 84
	TBDR    = 85
	SR      = 87
	FR      = 88
	RSER    = 89
	SPNDST  = 90
	SPTRCLR = 91
	SFA1AD  = 96
	SFA2AD  = 97
	SFB1AD  = 98
	SFB2AD  = 99
	RBDR    = 128
	LUTKEY  = 192
	LCKCR   = 193
	LUT     = 196
)

// Buffer and table geometry.
const (
	LUTWords     = 64 // 16 sequences of 4 words
	SeqWords     = 4
	NumSeq       = LUTWords / SeqWords
	RXWords      = 32 // RBDR0..RBDR31
	TXWords      = 128
	LUTKeyValue  = 0x5AF05AF0
	LCKCRLock    = 1 << 0
	LCKCRUnlock  = 1 << 1
	MinTXWords   = 4 // hardware minimum burst for IP writes
	RXWatermark  = 4 // bytes per watermark event (RBCT.WMRK = 0)
	FlashTimings = 4<<8 | 4
)

// MCR: Module Configuration Register.
const (
	MCRSWRSTSD        = 1 << 0
	MCRSWRSTHD        = 1 << 1
	MCREndCfg         = 3 << 2
	MCRDQSEn          = 1 << 6
	MCRDDREn          = 1 << 7
	MCRClrRXF         = 1 << 10
	MCRClrTXF         = 1 << 11
	MCRMDIS           = 1 << 14
	MCRDQSLoopbackEn  = 1 << 24
	MCRDQSPhaseEn     = 1 << 30
	MCRSoftwareResets = MCRSWRSTSD | MCRSWRSTHD
)

// IPCR: IP Configuration Register.
const (
	IPCRIDATSZ      = 0xFFFF
	IPCRParEn       = 1 << 16
	IPCRSeqIDShift  = 24
	IPCRSeqID       = 0xF << IPCRSeqIDShift
	IPCRFieldsClear = IPCRSeqID | IPCRIDATSZ
)

// SR: Status Register.
const (
	SRBusy    = 1 << 0
	SRIPAcc   = 1 << 1
	SRAHBAcc  = 1 << 2
	SRAHBGNT  = 1 << 5
	SRAHBTRN  = 1 << 6
	SRAHB0NE  = 1 << 7
	SRAHB1NE  = 1 << 8
	SRAHB2NE  = 1 << 9
	SRAHB3NE  = 1 << 10
	SRAHB0FUL = 1 << 11
	SRAHB1FUL = 1 << 12
	SRAHB2FUL = 1 << 13
	SRAHB3FUL = 1 << 14
	SRRXWE    = 1 << 16
	SRRXFull  = 1 << 19
	SRRXDMA   = 1 << 23
	SRTXEDA   = 1 << 24
	SRTXFull  = 1 << 27
)

// FR: Flag Register. All flags are write-1-to-clear.
const (
	FRTFF    = 1 << 0
	FRIPGEF  = 1 << 4
	FRIPIEF  = 1 << 6
	FRIPAEF  = 1 << 7
	FRIUEF   = 1 << 11
	FRABOF   = 1 << 12
	FRABSEF  = 1 << 15
	FRRBDF   = 1 << 16
	FRRBOF   = 1 << 17
	FRILLINE = 1 << 23
	FRTBUF   = 1 << 26
	FRTBFF   = 1 << 27
	FRDLPFF  = 1 << 31

	// FRIPErrors are the flags reporting a failed or rejected IP command.
	FRIPErrors = FRIPGEF | FRIPIEF | FRIPAEF | FRIUEF
)

// SPTRCLR: Sequence Pointer Clear Register.
const (
	SPTRCLRBFPTRC = 1 << 0
	SPTRCLRIPPTRC = 1 << 8
)

// RBCT: RX Buffer Control Register.
const (
	RBCTWMRK  = 0x1F
	RBCTRXBRD = 1 << 8 // RX buffer readable through the IP bus (RBDR)
)

// RBSR fields.
const (
	RBSRRDBFLShift = 8
	RBSRRDBFL      = 0x3F << RBSRRDBFLShift
	RBSRRDCTRShift = 16
)

// TBSR fields.
const (
	TBSRTRBFLShift = 8
	TBSRTRBFL      = 0xFF << TBSRTRBFLShift
	TBSRTRCTRShift = 16
)

// Registers is a 32-bit register window addressed by word offset.
type Registers interface {
	Read32(off int) uint32
	Write32(off int, v uint32)
}
