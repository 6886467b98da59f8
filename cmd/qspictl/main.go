// Command qspictl reads, writes and erases the NOR flash behind the
// i.MX6ULL QuadSPI controller.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/gentam/qspi"
	"github.com/gentam/qspi/internal/regs"
	"github.com/gentam/qspi/internal/sim"
	"github.com/gentam/qspi/internal/tracedb"
)

var (
	simulate bool
	simImage string
	baseAddr uint64
	timeout  time.Duration
	poll     time.Duration
	traceLog bool
	traceDB  string
	verbose  bool
)

var registerExit = func(fn func()) { atexit.Register(fn) }

// flag name to environment key
var envFlags = map[string]string{
	"base":    "QSPI_BASE",
	"timeout": "QSPI_TIMEOUT",
	"poll":    "QSPI_POLL",
}

var rootCmd = &cobra.Command{
	Use:   "qspictl",
	Short: "Access NOR flash through the i.MX6ULL QuadSPI controller",
	Long: `qspictl drives the QuadSPI controller in IP command mode. ` +
		`Settings are read from flags, then QSPI_* environment variables, ` +
		`then a .env file in the working directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyEnv,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&simulate, "sim", false, "use the simulated controller instead of /dev/mem")
	pf.StringVar(&simImage, "sim-image", "", "preload the simulated flash from `file`")
	pf.Uint64Var(&baseAddr, "base", regs.Base, "physical address of the QuadSPI registers")
	pf.DurationVar(&timeout, "timeout", qspi.DefaultTimeout, "bound on every hardware wait")
	pf.DurationVar(&poll, "poll", qspi.DefaultPollInterval, "delay between flag reads, negative to spin")
	pf.BoolVar(&traceLog, "trace", false, "log protocol events")
	pf.StringVar(&traceDB, "trace-db", "", "record protocol events to a SQLite `file`")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func applyEnv(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	for name, key := range envFlags {
		v, ok := os.LookupEnv(key)
		if !ok || cmd.Flags().Changed(name) {
			continue
		}
		if err := cmd.Flags().Set(name, v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose || traceLog {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openFlash opens the controller and wakes the flash. At exit the flash is
// powered down, the controller closed, and only then the trace database,
// so the teardown is recorded too.
func openFlash() (f *qspi.Flash, err error) {
	logger := newLogger()
	opts := qspi.Options{
		Base:         baseAddr,
		Timeout:      timeout,
		PollInterval: poll,
		Logger:       logger,
	}

	var tracers []qspi.TraceFunc
	if traceLog {
		tracers = append(tracers, qspi.SlogTracer(logger))
	}
	closeTrace := func() {}
	if traceDB != "" {
		rec, err := tracedb.Open(traceDB, logger)
		if err != nil {
			return nil, fmt.Errorf("open trace database: %w", err)
		}
		logger.Debug("recording trace", "path", traceDB, "session", rec.Session())
		tracers = append(tracers, rec.Record)
		closeTrace = func() {
			if err := rec.Close(); err != nil {
				logger.Warn("close trace database failed", "err", err)
			}
		}
	}
	defer func() {
		if err != nil {
			closeTrace()
		}
	}()
	if len(tracers) > 0 {
		opts.Trace = qspi.MultiTracer(tracers...)
	}

	if simulate {
		dev := sim.New(sim.Config{})
		if simImage != "" {
			data, err := os.ReadFile(simImage)
			if err != nil {
				return nil, err
			}
			dev.Load(0, data)
		}
		opts.Map = dev.Map
		opts.Clock = dev
	}

	c, err := qspi.Open(opts)
	if err != nil {
		return nil, err
	}
	f = qspi.NewFlash(c)
	if err := f.PowerUp(); err != nil {
		c.Close()
		return nil, fmt.Errorf("flash power up failed: %w", err)
	}
	registerExit(func() {
		if err := f.PowerDown(); err != nil {
			logger.Warn("flash power down failed", "err", err)
		}
		c.Close()
		closeTrace()
	})
	return f, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
