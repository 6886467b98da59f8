package sim

// NOR command set understood by the model.
//
// [N25Q256A|Table 16: Command Set]
const (
	cmdWriteDisable = 0x04
	cmdWriteEnable  = 0x06
	cmdReadStatus   = 0x05
	cmdRead         = 0x03
	cmdFastRead     = 0x0B
	cmdReadID       = 0x9F
	cmdPageProgram  = 0x02
	cmdErase4KB     = 0x20
	cmdErase64KB    = 0xD8
	cmdEraseChip    = 0xC7
	cmdPowerDown    = 0xB9
	cmdPowerUp      = 0xAB

	statusWIP = 1 << 0
	statusWEL = 1 << 1

	pageSize = 256
)

// frame is what one LUT sequence puts on the bus.
type frame struct {
	cmd     byte
	hasCmd  bool
	addr    uint32
	hasAddr bool
	data    []byte // host to flash
	read    int    // bytes flash to host
}

// NOR is a serial NOR flash. Programming can only clear bits; erase sets
// them back to 1.
type NOR struct {
	id       []byte
	mem      []byte
	wel      bool
	wip      int // status reads left with WIP set
	wipReads int
	asleep   bool
}

func newNOR(id []byte, size, wipReads int) *NOR {
	n := &NOR{
		id:       append([]byte(nil), id...),
		mem:      make([]byte, size),
		wipReads: wipReads,
	}
	for i := range n.mem {
		n.mem[i] = 0xFF
	}
	return n
}

func (n *NOR) status() byte {
	var sr byte
	if n.wip > 0 {
		sr |= statusWIP
	}
	if n.wel {
		sr |= statusWEL
	}
	return sr
}

// transfer executes f and returns f.read bytes.
func (n *NOR) transfer(f frame) []byte {
	out := make([]byte, f.read)
	if !f.hasCmd {
		return out
	}
	if n.asleep {
		if f.cmd == cmdPowerUp {
			n.asleep = false
		}
		return out
	}

	switch f.cmd {
	case cmdReadID:
		copy(out, n.id)
	case cmdRead, cmdFastRead:
		for i := range out {
			out[i] = n.mem[(int(f.addr)+i)%len(n.mem)]
		}
	case cmdReadStatus:
		for i := range out {
			out[i] = n.status()
		}
		if n.wip > 0 {
			n.wip--
		}
	case cmdWriteEnable:
		if n.wip == 0 {
			n.wel = true
		}
	case cmdWriteDisable:
		n.wel = false
	case cmdPageProgram:
		if !n.writable() || !f.hasAddr {
			break
		}
		page := int(f.addr) &^ (pageSize - 1)
		off := int(f.addr) & (pageSize - 1)
		for i, b := range f.data {
			// wraps within the page
			p := (page + (off+i)%pageSize) % len(n.mem)
			n.mem[p] &= b
		}
		n.busy()
	case cmdErase4KB:
		if n.writable() && f.hasAddr {
			n.erase(int(f.addr), 4<<10)
			n.busy()
		}
	case cmdErase64KB:
		if n.writable() && f.hasAddr {
			n.erase(int(f.addr), 64<<10)
			n.busy()
		}
	case cmdEraseChip:
		if n.writable() {
			n.erase(0, len(n.mem))
			n.busy()
		}
	case cmdPowerDown:
		n.asleep = true
	}
	return out
}

func (n *NOR) writable() bool { return n.wel && n.wip == 0 }

func (n *NOR) busy() {
	n.wel = false
	n.wip = n.wipReads
}

func (n *NOR) erase(addr, size int) {
	start := (addr % len(n.mem)) &^ (size - 1)
	end := min(start+size, len(n.mem))
	for i := start; i < end; i++ {
		n.mem[i] = 0xFF
	}
}
