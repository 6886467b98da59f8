package qspi

import (
	"log/slog"
	"time"
)

// Stage is a protocol boundary reported to the trace hook.
type Stage int

const (
	StageTableWrite Stage = iota
	StageIssueStart
	StageIssueComplete
	StageWatermark
	StageFill
)

func (s Stage) String() string {
	switch s {
	case StageTableWrite:
		return "table-write"
	case StageIssueStart:
		return "issue-start"
	case StageIssueComplete:
		return "issue-complete"
	case StageWatermark:
		return "watermark"
	case StageFill:
		return "fill"
	default:
		return "unknown"
	}
}

// Event describes one protocol stage. Events of the same Exec share an ID.
type Event struct {
	ID    string
	Stage Stage
	Seq   int    // LUT index
	Addr  uint32 // flash address, if any
	Size  int    // bytes moved or requested
	Time  time.Time
}

// TraceFunc receives protocol stage events. It is called with the
// controller lock held and must not call back into the controller.
type TraceFunc func(Event)

// SlogTracer logs every event at debug level.
func SlogTracer(l *slog.Logger) TraceFunc {
	return func(e Event) {
		l.Debug(e.Stage.String(),
			"op", e.ID,
			"seq", e.Seq,
			"addr", e.Addr,
			"size", e.Size,
		)
	}
}

// MultiTracer fans events out to every non-nil fn.
func MultiTracer(fns ...TraceFunc) TraceFunc {
	return func(e Event) {
		for _, fn := range fns {
			if fn != nil {
				fn(e)
			}
		}
	}
}

func (t *Tx) trace(stage Stage, seq int, addr uint32, size int) {
	fn := t.c.opts.Trace
	if fn == nil {
		return
	}
	fn(Event{
		ID:    t.id,
		Stage: stage,
		Seq:   seq,
		Addr:  addr,
		Size:  size,
		Time:  time.Now(),
	})
}
