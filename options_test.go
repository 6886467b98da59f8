package qspi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gentam/qspi/internal/regs"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.setDefaults()
	assert.Equal(t, uint64(regs.Base), o.Base)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultPollInterval, o.PollInterval)
	assert.Equal(t, DefaultClockRate, o.ClockRate)
	assert.NotNil(t, o.Map)
	assert.NotNil(t, o.Clock)
	assert.NotNil(t, o.Logger)

	o = Options{PollInterval: -1}
	o.setDefaults()
	assert.Negative(t, o.PollInterval, "a negative interval selects tight polling")
}
