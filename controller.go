package qspi

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"

	"github.com/gentam/qspi/internal/regs"
)

// Options configures a Controller. The zero value drives the real i.MX6ULL
// QuadSPI block through /dev/mem.
type Options struct {
	// Base is the physical address of the register window.
	Base uint64

	// Timeout bounds every wait on a hardware flag.
	Timeout time.Duration

	// PollInterval is the delay between flag reads. Zero means
	// DefaultPollInterval; a negative value polls without sleeping.
	PollInterval time.Duration

	// ClockRate is the serial clock the platform feeds the controller.
	ClockRate physic.Frequency

	Map   MapFunc
	Clock ClockGate

	Logger *slog.Logger
	Trace  TraceFunc
}

const (
	DefaultTimeout      = 100 * time.Millisecond
	DefaultPollInterval = 10 * time.Microsecond
	DefaultClockRate    = 66 * physic.MegaHertz // [IMX6ULLRM|18.5.1.5 QSPI1_CLK_ROOT]

	resetHold = time.Microsecond
)

func (o *Options) setDefaults() {
	if o.Base == 0 {
		o.Base = regs.Base
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ClockRate == 0 {
		o.ClockRate = DefaultClockRate
	}
	if o.Map == nil {
		o.Map = MapPhysical
	}
	if o.Clock == nil {
		o.Clock = CCMClock{Map: o.Map}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
}

// Controller is the QuadSPI controller. All methods are safe for
// concurrent use; transactions are serialized.
type Controller struct {
	mu      sync.Mutex
	win     Window
	regs    regs.Registers
	opts    Options
	log     *slog.Logger
	enabled bool
	closed  bool
}

var _ conn.Resource = (*Controller)(nil)

// Open maps the register window, resets the controller, enables its clock
// and configures the RX watermark and flash timings.
func Open(opts Options) (*Controller, error) {
	opts.setDefaults()
	c := &Controller{
		opts: opts,
		log:  opts.Logger.With("component", "qspi"),
	}

	w, err := opts.Map(opts.Base, regs.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %#x: %w", ErrMap, opts.Base, err)
	}
	c.win = w
	c.regs = w
	c.log.Debug("mapped", "base", fmt.Sprintf("%#x", opts.Base))

	c.reset()

	// Clear Rx and Tx buffers
	c.set(regs.MCR, regs.MCRClrRXF|regs.MCRClrTXF)
	c.enable(false)

	if err := opts.Clock.EnableClock(ClockQSPI1); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrClock, err), w.Close())
	}
	c.log.Debug("clock enabled", "rate", opts.ClockRate)

	// RX buffer is read through RBDR; WMRK=0 means a 4 byte watermark.
	rbct := c.regs.Read32(regs.RBCT) &^ regs.RBCTWMRK
	c.regs.Write32(regs.RBCT, rbct|regs.RBCTRXBRD|(regs.RXWatermark/4-1))

	c.regs.Write32(regs.FLSHCR, regs.FlashTimings)

	c.enable(true)
	c.log.Debug("ready", "watermark", regs.RXWatermark)
	return c, nil
}

func (c *Controller) set(off int, bits uint32) {
	c.regs.Write32(off, c.regs.Read32(off)|bits)
}

func (c *Controller) clear(off int, bits uint32) {
	c.regs.Write32(off, c.regs.Read32(off)&^bits)
}

func (c *Controller) enable(on bool) {
	if on {
		c.clear(regs.MCR, regs.MCRMDIS)
	} else {
		c.set(regs.MCR, regs.MCRMDIS)
	}
	c.enabled = on
}

// reset applies a software reset to the AHB and serial flash domains.
func (c *Controller) reset() {
	c.set(regs.MCR, regs.MCRSoftwareResets)
	time.Sleep(resetHold)

	c.enable(false)
	c.clear(regs.MCR, regs.MCRSoftwareResets)
	c.enable(true)
	c.log.Debug("reset")
}

// Enabled reports whether the controller is enabled.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Controller) String() string {
	return fmt.Sprintf("QSPI@%#x(%s)", c.opts.Base, c.opts.ClockRate)
}

// Halt disables the controller. It implements conn.Resource.
func (c *Controller) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.enable(false)
	return nil
}

// Close disables the controller and unmaps its registers.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.enable(false)
	c.closed = true
	return c.win.Close()
}
