package qspi

import "time"

type flashParams struct {
	name string
	size int // bytes

	tRES1      time.Duration
	tDP        time.Duration
	tPP        time.Duration
	tErase4KB  time.Duration
	tErase64KB time.Duration
	tEraseChip time.Duration
}

var (
	FlashIDMicronN25Q256A = [3]byte{0x20, 0xBA, 0x19}
	FlashIDMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	FlashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
)

var knownFlash = map[[3]byte]flashParams{
	FlashIDMicronN25Q256A: {
		name: "Micron N25Q 256Mb",
		size: 32 << 20,

		// [N25Q256A|Table 45: AC Characteristics and Operating Conditions]
		// tPP: PAGE PROGRAM cycle time (256 bytes)
		tPP: 5 * time.Millisecond,
		// tSSE: Subsector ERASE cycle time
		tErase4KB: 800 * time.Millisecond,
		// tSE: Sector ERASE cycle time
		tErase64KB: 3 * time.Second,
		// tBE: Bulk ERASE cycle time
		tEraseChip: 480 * time.Second,
	},

	FlashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",
		size: 4 << 20,

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		tPP:        5 * time.Millisecond,
		tErase4KB:  800 * time.Millisecond,
		tErase64KB: 3 * time.Second,
		tEraseChip: 60 * time.Second,
	},

	FlashIDWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",
		size: 16 << 20,

		// [W25Q128|9.6 AC Electrical Characteristics]:
		// tRES1: /CS High to Standby Mode without ID Read
		tRES1: 3 * time.Microsecond,
		// tDP: /CS High to Power-down Mode
		tDP: 3 * time.Microsecond,
		// tPP: Page Program Time
		tPP: 3 * time.Millisecond,
		// tSE: Sector Erase Time (4KB)
		tErase4KB: 400 * time.Millisecond,
		// tBE2: Block Erase Time (64KB)
		tErase64KB: 2000 * time.Millisecond,
		// tCE: Chip Erase Time
		tEraseChip: 200 * time.Second,
	},
}

func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	// get parameter if configured
	if ident := f.ident.Load(); ident != nil && ident.pr != nil {
		return get(ident.pr)
	}

	// fall back to maximum duration from all known flash parameters
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tDP })
}
func (f *Flash) tPP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tPP })
}
func (f *Flash) tErase4KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase4KB })
}
func (f *Flash) tErase64KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase64KB })
}
func (f *Flash) tEraseChip() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tEraseChip })
}

// Size returns the capacity of the identified flash, or 0 before a
// successful ReadID of a known part.
func (f *Flash) Size() int {
	ident := f.ident.Load()
	if ident == nil || ident.pr == nil {
		return 0
	}
	return ident.pr.size
}
