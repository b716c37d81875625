// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package device drives a u-blox receiver over a byte-stream
// transport: sending configuration commands, waiting for protocol
// acknowledgments, and draining the raw output stream into a sink.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"gitlab.com/ubxtools/ubxcap/internal/ubx"
)

// readBufLen is sized to hold at least one maximum-length frame per
// read.
const readBufLen = 2048

// Transport is the byte-stream endpoint the device is reached over. A
// live serial port's Read is expected to time out after its configured
// read timeout; timeouts are normalized by the Device, not here.
type Transport interface {
	io.ReadWriteCloser
}

// Device owns a transport plus one frame parser for the life of the
// session, so frames split across read boundaries reassemble
// correctly. All methods must be called from a single goroutine.
type Device struct {
	port   Transport
	parser ubx.Parser
}

func New(port Transport) *Device {
	return &Device{port: port}
}

func (d *Device) Close() error {
	return d.port.Close()
}

// WriteAll writes data fully to the transport.
func (d *Device) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := d.port.Write(data)
		if err != nil {
			return fmt.Errorf("device/Device.WriteAll: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// readPort reads the transport, converting timeouts into "no data
// received". A zero-byte read therefore means "nothing currently
// available" on a live transport; only a genuine error (including EOF
// on file-backed transports) ends the session.
func (d *Device) readPort(buf []byte) (int, error) {
	n, err := d.port.Read(buf)
	if err != nil {
		var te interface{ Timeout() bool }
		if errors.As(err, &te) && te.Timeout() {
			return 0, nil
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}

// Update reads the transport until it momentarily runs dry, feeding
// every chunk to the parser and invoking cb for each decoded frame.
// Malformed frames are skipped; the parser resynchronizes on its own.
func (d *Device) Update(cb func(ubx.Frame)) error {
	buf := make([]byte, readBufLen)
	for {
		n, err := d.readPort(buf)
		if err != nil {
			return fmt.Errorf("device/Device.Update: %w", err)
		}
		if n == 0 {
			return nil
		}

		it := d.parser.Consume(buf[:n])
		for res, ok := it.Next(); ok; res, ok = it.Next() {
			if res.Err != nil {
				continue
			}
			cb(res.Frame)
		}
	}
}

// WaitForAck drives Update until a UBX-ACK-ACK matching target is
// observed. The first matching ack wins. If the ack never arrives this
// blocks indefinitely; callers needing a bound must use
// WaitForAckContext.
func (d *Device) WaitForAck(target ubx.AckTarget) error {
	return d.waitForAck(context.Background(), target)
}

// WaitForAckContext is WaitForAck with a caller-supplied deadline: the
// context is checked between update passes and its error returned once
// it ends. Matching semantics are identical to WaitForAck.
func (d *Device) WaitForAckContext(ctx context.Context, target ubx.AckTarget) error {
	return d.waitForAck(ctx, target)
}

func (d *Device) waitForAck(ctx context.Context, target ubx.AckTarget) error {
	found := false
	for !found {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.Update(func(f ubx.Frame) {
			if ack, ok := f.(*ubx.AckAck); ok && ack.Matches(target) {
				found = true
			}
		})
		if err != nil {
			return fmt.Errorf("device/Device.waitForAck: %w", err)
		}
	}
	return nil
}

// Capture drains the transport into sink indefinitely. Every chunk is
// written verbatim, independent of whether it decodes as valid frames;
// capture fidelity takes precedence over decode success. Sink write
// failures are logged and capture continues. Only a transport error
// ends the loop.
func (d *Device) Capture(sink io.Writer, log *zap.SugaredLogger) error {
	buf := make([]byte, readBufLen)
	for {
		n, err := d.readPort(buf)
		if err != nil {
			return fmt.Errorf("device/Device.Capture: %w", err)
		}
		if n == 0 {
			continue
		}
		if _, werr := sink.Write(buf[:n]); werr != nil {
			log.Warnw("failed to write capture chunk", "error", werr)
		}
	}
}
