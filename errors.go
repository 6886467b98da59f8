package qspi

import "errors"

var (
	// ErrMap indicates the register window could not be mapped.
	ErrMap = errors.New("qspi: register window unavailable")

	// ErrClock indicates the platform refused to enable the controller clock.
	ErrClock = errors.New("qspi: clock enable failed")

	// ErrBusy indicates a previous command did not finish in time.
	ErrBusy = errors.New("qspi: controller busy")

	// ErrTimeout indicates a hardware flag did not reach the expected state in time.
	ErrTimeout = errors.New("qspi: timeout")

	// ErrShortWrite indicates fewer bytes were programmed than requested.
	ErrShortWrite = errors.New("qspi: short write")

	// ErrInvalidSize indicates a write below the minimum TX burst.
	ErrInvalidSize = errors.New("qspi: invalid size")

	// ErrInvalidIndex indicates a LUT sequence index outside 0..15.
	ErrInvalidIndex = errors.New("qspi: invalid sequence index")

	// ErrCommand indicates the controller flagged the IP command as failed.
	ErrCommand = errors.New("qspi: IP command error")

	// ErrClosed indicates an operation on a closed Controller.
	ErrClosed = errors.New("qspi: controller closed")

	// ErrWriteProtected indicates the flash did not set its write enable latch.
	ErrWriteProtected = errors.New("qspi: write enable latch not set")
)
