package qspi

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"

	"github.com/gentam/qspi/internal/regs"
)

// Window is a mapped register window. Offsets are in 32-bit words.
type Window interface {
	regs.Registers
	Close() error
}

// MapFunc maps size bytes of physical memory at base.
type MapFunc func(base uint64, size int) (Window, error)

var hostInitialized atomic.Bool

// MapPhysical maps a peripheral through /dev/mem.
func MapPhysical(base uint64, size int) (Window, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, err
	}
	return &physWindow{view: v, words: v.Uint32()}, nil
}

type physWindow struct {
	view  *pmem.View
	words []uint32
}

// One bus access per call.
func (w *physWindow) Read32(off int) uint32     { return atomic.LoadUint32(&w.words[off]) }
func (w *physWindow) Write32(off int, v uint32) { atomic.StoreUint32(&w.words[off], v) }

func (w *physWindow) Close() error {
	return w.view.Close()
}
