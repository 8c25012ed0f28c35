package render

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bakebake-xr/printd/internal/config"
	"github.com/bakebake-xr/printd/internal/core"
)

var ErrPrinterUnreachable = errors.New("printer unreachable")

const defaultConnectionTimeout = 10 * time.Second

// TCPOpener dials the printer's raw port for each job. The handle is
// never cached: the device lock opens, uses, and closes it per job.
type TCPOpener struct {
	address string
	timeout time.Duration
}

func NewTCPOpener(cfg *config.PrinterConfig) *TCPOpener {
	timeout := cfg.ConnectionTimeout
	if timeout == 0 {
		timeout = defaultConnectionTimeout
	}
	return &TCPOpener{
		address: fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		timeout: timeout,
	}
}

func (o *TCPOpener) Open() (core.Device, error) {
	conn, err := net.DialTimeout("tcp", o.address, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrinterUnreachable, err)
	}

	// One deadline covers the whole job; printing completes in seconds.
	_ = conn.SetDeadline(time.Now().Add(o.timeout))

	return conn, nil
}
