package tracedb

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentam/qspi"
)

func TestRecorderFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.sqlite3")
	r, err := Open(path, nil)
	require.NoError(t, err)

	now := time.Now()
	r.Record(qspi.Event{ID: "op1", Stage: qspi.StageIssueStart, Seq: 1, Addr: 0x100, Size: 16, Time: now})
	r.Record(qspi.Event{ID: "op1", Stage: qspi.StageWatermark, Seq: -1, Size: 4, Time: now})

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM qspi_trace`).Scan(&count))
	assert.Zero(t, count, "events are buffered until Flush")

	require.NoError(t, r.Flush())
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM qspi_trace WHERE session = ?`, r.Session()).Scan(&count))
	assert.Equal(t, 2, count)

	var (
		stage string
		addr  int64
	)
	require.NoError(t, r.db.QueryRow(`SELECT stage, addr FROM qspi_trace WHERE seq = 1`).Scan(&stage, &addr))
	assert.Equal(t, "issue-start", stage)
	assert.Equal(t, int64(0x100), addr)

	require.NoError(t, r.Close())
}

func TestRecorderBatch(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "trace.sqlite3"), nil)
	require.NoError(t, err)
	r.batchSize = 3

	for i := 0; i < 7; i++ {
		r.Record(qspi.Event{ID: "op", Stage: qspi.StageFill, Seq: i})
	}

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM qspi_trace`).Scan(&count))
	assert.Equal(t, 6, count)
	assert.Len(t, r.pending, 1)
	require.NoError(t, r.Close())
}

func TestRecorderFlushFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r, err := Open(filepath.Join(t.TempDir(), "trace.sqlite3"), logger)
	require.NoError(t, err)
	r.batchSize = 2

	r.Record(qspi.Event{ID: "op", Stage: qspi.StageFill})
	require.NoError(t, r.db.Close())

	// the batch fills and its flush fails
	r.Record(qspi.Event{ID: "op", Stage: qspi.StageFill})
	assert.Empty(t, r.pending, "failed batch must not be kept")
	assert.Equal(t, 2, r.Dropped())
	assert.Contains(t, logs.String(), "trace flush failed")

	r.Record(qspi.Event{ID: "op", Stage: qspi.StageFill})
	err = r.Flush()
	assert.ErrorContains(t, err, "dropped 1 events")
	assert.Equal(t, 3, r.Dropped())

	r.Close()
}
