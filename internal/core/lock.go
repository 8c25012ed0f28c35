package core

import (
	"fmt"
	"sync"
)

// DeviceLock serializes all access to the single physical printer.
// Every render, no matter which source triggered it, runs inside
// WithDevice. The handle is opened fresh per job and closed before the
// lock is released, so a failed job cannot leave device state behind
// for the next one.
type DeviceLock struct {
	mu     sync.Mutex
	opener DeviceOpener
}

func NewDeviceLock(opener DeviceOpener) *DeviceLock {
	return &DeviceLock{opener: opener}
}

// WithDevice runs fn with exclusive ownership of an open device handle.
// Concurrent callers block until the current holder returns. The handle
// is always closed, whether fn succeeds or fails; a Close error after a
// successful fn still fails the call, because Close is what flushes the
// output to paper.
func (l *DeviceLock) WithDevice(fn func(Device) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dev, err := l.opener.Open()
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}

	fnErr := fn(dev)
	closeErr := dev.Close()

	if fnErr != nil {
		return fnErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close device: %w", closeErr)
	}

	return nil
}
