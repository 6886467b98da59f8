package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gentam/qspi"
	"github.com/gentam/qspi/internal/regs"
)

func enable(d *Device) {
	Expect(d.EnableClock(qspi.ClockQSPI1)).To(Succeed())
	d.Write32(regs.MCR, regs.MCREndCfg)
	d.Write32(regs.RBCT, regs.RBCTRXBRD)
}

func load(d *Device, index int, instrs ...qspi.Instr) {
	seq, err := qspi.NewSequence(instrs...)
	Expect(err).NotTo(HaveOccurred())
	d.Write32(regs.LUTKEY, regs.LUTKeyValue)
	d.Write32(regs.LCKCR, regs.LCKCRUnlock)
	for i, w := range seq {
		d.Write32(regs.LUT+index*regs.SeqWords+i, w)
	}
	d.Write32(regs.LUTKEY, regs.LUTKeyValue)
	d.Write32(regs.LCKCR, regs.LCKCRLock)
}

func start(d *Device, index int, addr uint32, size int) {
	d.Write32(regs.SFAR, regs.AMBABase+addr)
	d.Write32(regs.IPCR, uint32(index)<<regs.IPCRSeqIDShift|uint32(size))
}

func settle(d *Device) uint32 {
	sr := d.Read32(regs.SR)
	for sr&regs.SRBusy != 0 {
		sr = d.Read32(regs.SR)
	}
	return sr
}

var readID = []qspi.Instr{
	{Op: qspi.OpCmd, Pad: qspi.Pad1, Operand: cmdReadID},
	{Op: qspi.OpRead, Pad: qspi.Pad1, Operand: 3},
}

var _ = Describe("Device", func() {
	var d *Device

	BeforeEach(func() {
		d = New(Config{BusyPolls: 2})
	})

	It("should come out of reset disabled and locked", func() {
		Expect(d.Enabled()).To(BeFalse())
		Expect(d.Locked()).To(BeTrue())
		Expect(d.ClockEnabled()).To(BeFalse())
	})

	It("should report the clock error", func() {
		boom := errors.New("boom")
		d = New(Config{ClockErr: boom})
		Expect(d.EnableClock(qspi.ClockQSPI1)).To(MatchError(boom))
	})

	It("should refuse an oversized window", func() {
		_, err := d.Map(regs.Base, 2*regs.Size)
		Expect(err).To(HaveOccurred())
	})

	Context("lookup table", func() {
		It("should drop writes while locked", func() {
			d.Write32(regs.LUT, 0x1234)
			Expect(d.LUT()[0]).To(BeZero())
			Expect(d.Stats().Dropped).To(Equal(1))
		})

		It("should ignore LCKCR without the key", func() {
			d.Write32(regs.LCKCR, regs.LCKCRUnlock)
			Expect(d.Locked()).To(BeTrue())
		})

		It("should accept writes after the key sequence", func() {
			load(d, 3, readID...)
			Expect(d.Locked()).To(BeTrue())
			Expect(d.LUT()[3*regs.SeqWords]).To(Equal(uint32(0x1C03049F)))
			Expect(d.Stats().Dropped).To(BeZero())
		})
	})

	Context("when disabled", func() {
		It("should reject commands", func() {
			start(d, 0, 0, 3)
			Expect(d.Busy()).To(BeFalse())
			Expect(d.Read32(regs.FR) & regs.FRIPIEF).NotTo(BeZero())
			Expect(d.Stats().Commands).To(BeZero())
		})
	})

	Context("when enabled", func() {
		BeforeEach(func() {
			enable(d)
			load(d, 0, readID...)
		})

		It("should stay busy for the configured polls", func() {
			start(d, 0, 0, 3)
			Expect(d.Read32(regs.SR) & regs.SRBusy).NotTo(BeZero())
			Expect(d.Read32(regs.SR) & regs.SRBusy).NotTo(BeZero())
			Expect(d.Read32(regs.SR) & regs.SRBusy).To(BeZero())
			Expect(d.Stats().Commands).To(Equal(1))
		})

		It("should stay busy when stuck", func() {
			d.SetStuckBusy(true)
			start(d, 0, 0, 3)
			for range 10 {
				Expect(d.Read32(regs.SR) & regs.SRBusy).NotTo(BeZero())
			}
		})

		It("should deliver read data at the watermark", func() {
			start(d, 0, 0, 3)
			sr := settle(d)
			Expect(sr & regs.SRRXWE).NotTo(BeZero())
			Expect(d.Read32(regs.RBSR) & regs.RBSRRDBFL).To(Equal(uint32(1) << regs.RBSRRDBFLShift))
			Expect(d.Read32(regs.RBDR)).To(Equal(uint32(0x0019BA20)))

			d.Write32(regs.FR, regs.FRRBDF)
			Expect(d.Read32(regs.SR) & regs.SRRXWE).To(BeZero())
			Expect(d.Stats().Pops).To(Equal(1))
		})

		It("should flag protocol misuse while busy", func() {
			start(d, 0, 0, 3)
			d.Write32(regs.SFAR, regs.AMBABase)
			d.Write32(regs.IPCR, 3)
			Expect(d.Stats().Violations).To(Equal(2))
			Expect(d.Stats().Commands).To(Equal(1))
			Expect(d.Read32(regs.FR) & regs.FRIPIEF).NotTo(BeZero())
		})

		It("should flag read data discarded unread", func() {
			start(d, 0, 0, 3)
			settle(d)
			d.Write32(regs.MCR, regs.MCREndCfg|regs.MCRClrRXF)
			Expect(d.Stats().Violations).To(Equal(1))
			Expect(d.Read32(regs.SR) & regs.SRRXWE).To(BeZero())
		})

		It("should overflow the RX buffer", func() {
			load(d, 1,
				qspi.Instr{Op: qspi.OpCmd, Pad: qspi.Pad1, Operand: cmdRead},
				qspi.Instr{Op: qspi.OpAddr, Pad: qspi.Pad1, Operand: qspi.Addr24},
				qspi.Instr{Op: qspi.OpRead, Pad: qspi.Pad1, Operand: 0x80},
			)
			start(d, 1, 0, 200)
			sr := settle(d)
			Expect(sr & regs.SRRXFull).NotTo(BeZero())
			Expect(d.Read32(regs.FR) & regs.FRRBOF).NotTo(BeZero())

			By("clearing only the flags written as one")
			d.Write32(regs.FR, 0)
			Expect(d.Read32(regs.FR) & regs.FRRBOF).NotTo(BeZero())
			d.Write32(regs.FR, regs.FRRBOF)
			Expect(d.Read32(regs.FR) & regs.FRRBOF).To(BeZero())
		})
	})

	Context("TX buffer", func() {
		It("should fill and clear", func() {
			Expect(d.Read32(regs.SR) & regs.SRTXEDA).To(BeZero())
			for i := range regs.TXWords {
				d.Write32(regs.TBDR, uint32(i))
			}
			sr := d.Read32(regs.SR)
			Expect(sr & regs.SRTXEDA).NotTo(BeZero())
			Expect(sr & regs.SRTXFull).NotTo(BeZero())

			d.Write32(regs.TBDR, 0)
			Expect(d.Read32(regs.FR) & regs.FRTBFF).NotTo(BeZero())
			Expect(d.Read32(regs.TBSR) >> regs.TBSRTRBFLShift).To(Equal(uint32(regs.TXWords)))

			d.Write32(regs.MCR, regs.MCRMDIS|regs.MCRClrTXF)
			Expect(d.Read32(regs.SR) & regs.SRTXEDA).To(BeZero())
			Expect(d.Read32(regs.MCR) & regs.MCRClrTXF).To(BeZero())
		})

		It("should report full at the configured capacity", func() {
			d = New(Config{TXCapacity: 8})
			for i := range 8 {
				Expect(d.Read32(regs.SR) & regs.SRTXFull).To(BeZero())
				d.Write32(regs.TBDR, uint32(i))
			}
			Expect(d.Read32(regs.SR) & regs.SRTXFull).NotTo(BeZero())

			d.Write32(regs.TBDR, 0)
			Expect(d.Read32(regs.FR) & regs.FRTBFF).NotTo(BeZero())
			Expect(d.Read32(regs.TBSR) >> regs.TBSRTRBFLShift).To(Equal(uint32(8)))
		})
	})
})

var _ = Describe("NOR", func() {
	var n *NOR

	cmd := func(c byte) frame { return frame{cmd: c, hasCmd: true} }
	program := func(addr uint32, data ...byte) frame {
		return frame{cmd: cmdPageProgram, hasCmd: true, addr: addr, hasAddr: true, data: data}
	}

	BeforeEach(func() {
		n = newNOR([]byte{0xEF, 0x40, 0x16}, 64<<10, 0)
	})

	It("should answer READ ID", func() {
		f := cmd(cmdReadID)
		f.read = 3
		Expect(n.transfer(f)).To(Equal([]byte{0xEF, 0x40, 0x16}))
	})

	It("should only clear bits when programming", func() {
		n.transfer(cmd(cmdWriteEnable))
		n.transfer(program(0x10, 0x0F))
		n.transfer(cmd(cmdWriteEnable))
		n.transfer(program(0x10, 0xF3))
		Expect(n.mem[0x10]).To(Equal(byte(0x03)))
	})

	It("should ignore programs without the write enable latch", func() {
		n.transfer(program(0x10, 0x00))
		Expect(n.mem[0x10]).To(Equal(byte(0xFF)))

		n.transfer(cmd(cmdWriteEnable))
		n.transfer(cmd(cmdWriteDisable))
		n.transfer(program(0x10, 0x00))
		Expect(n.mem[0x10]).To(Equal(byte(0xFF)))
	})

	It("should wrap within the page", func() {
		n.transfer(cmd(cmdWriteEnable))
		n.transfer(program(0x1F0, make([]byte, 32)...))
		Expect(n.mem[0x1F0:0x200]).To(Equal(make([]byte, 16)))
		Expect(n.mem[0x100:0x110]).To(Equal(make([]byte, 16)))
		Expect(n.mem[0x200]).To(Equal(byte(0xFF)))
		Expect(n.mem[0x110]).To(Equal(byte(0xFF)))
	})

	It("should erase aligned sectors", func() {
		for i := range n.mem {
			n.mem[i] = 0
		}
		n.transfer(cmd(cmdWriteEnable))
		n.transfer(frame{cmd: cmdErase4KB, hasCmd: true, addr: 0x1234, hasAddr: true})
		Expect(n.mem[0x0FFF]).To(BeZero())
		Expect(n.mem[0x1000]).To(Equal(byte(0xFF)))
		Expect(n.mem[0x1FFF]).To(Equal(byte(0xFF)))
		Expect(n.mem[0x2000]).To(BeZero())
	})

	It("should report WIP for the configured status reads", func() {
		n = newNOR([]byte{0xEF, 0x40, 0x16}, 64<<10, 2)
		n.transfer(cmd(cmdWriteEnable))
		Expect(n.status()).To(Equal(byte(statusWEL)))
		n.transfer(program(0, 0))

		status := cmd(cmdReadStatus)
		status.read = 1
		Expect(n.transfer(status)).To(Equal([]byte{statusWIP}))

		By("refusing the latch while busy")
		n.transfer(cmd(cmdWriteEnable))
		Expect(n.transfer(status)).To(Equal([]byte{statusWIP}))
		Expect(n.transfer(status)).To(Equal([]byte{0}))
	})

	It("should sleep until released from power down", func() {
		n.transfer(cmd(cmdPowerDown))
		f := cmd(cmdReadID)
		f.read = 3
		Expect(n.transfer(f)).To(Equal([]byte{0, 0, 0}))

		n.transfer(cmd(cmdPowerUp))
		Expect(n.transfer(f)).To(Equal([]byte{0xEF, 0x40, 0x16}))
	})
})
