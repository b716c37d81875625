// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds each serial read so the capture loop can
// observe "no data available" instead of blocking forever.
const DefaultReadTimeout = 10 * time.Millisecond

// SerialConfig holds the resolved transport parameters for a serial
// port. Values outside the supported sets are rejected before the port
// is opened.
type SerialConfig struct {
	BaudRate    int
	DataBits    int    // 7 or 8
	StopBits    int    // 1 or 2
	Parity      string // "", "none", "even", "odd"
	ReadTimeout time.Duration
}

// OpenSerial opens a serial port with no flow control and a bounded
// read timeout.
func OpenSerial(name string, conf SerialConfig) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
	}

	switch conf.DataBits {
	case 7, 8:
	default:
		return nil, fmt.Errorf("device.OpenSerial: unsupported data bits %d, receiver supports 7 or 8", conf.DataBits)
	}

	switch conf.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("device.OpenSerial: unsupported stop bits %d", conf.StopBits)
	}

	switch conf.Parity {
	case "", "none":
		mode.Parity = serial.NoParity
	case "even":
		mode.Parity = serial.EvenParity
	case "odd":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("device.OpenSerial: unsupported parity %q", conf.Parity)
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("device.OpenSerial %q: %w", name, err)
	}

	timeout := conf.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("device.OpenSerial %q: %w", name, err)
	}

	return port, nil
}
