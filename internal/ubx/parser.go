// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package ubx

import (
	"encoding/binary"
	"fmt"
)

// ParseErrorKind classifies stream parse failures.
type ParseErrorKind int

const (
	// KindBadChecksum indicates a structurally complete frame whose
	// checksum did not match.
	KindBadChecksum ParseErrorKind = iota
	// KindBadLength indicates a header announcing a payload larger
	// than MaxPayloadLen.
	KindBadLength
)

// ParseError is a non-fatal decode failure. The parser discards the
// offending sync marker and resynchronizes on the next one.
type ParseError struct {
	Kind  ParseErrorKind
	Class byte
	MsgID byte
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindBadLength:
		return fmt.Sprintf("ubx: oversized frame class=0x%02X id=0x%02X", e.Class, e.MsgID)
	default:
		return fmt.Sprintf("ubx: checksum mismatch class=0x%02X id=0x%02X", e.Class, e.MsgID)
	}
}

// Result is one outcome of the frame iterator: a decoded frame, or the
// parse error the stream recovered from. Exactly one field is set.
type Result struct {
	Frame Frame
	Err   error
}

// Parser accumulates raw stream bytes and extracts frames from them.
// One Parser must live for the whole transport session so frames split
// across read boundaries are reassembled. The zero value is ready to
// use. A Parser is not safe for concurrent use; the capture model is
// single threaded.
type Parser struct {
	buf []byte
	pos int
}

// Consume appends chunk to the parser's accumulator and returns an
// iterator over the frames that are now complete. The iterator must be
// drained before the next Consume call.
func (p *Parser) Consume(chunk []byte) *Iter {
	p.buf = append(p.buf, chunk...)
	return &Iter{p: p}
}

// Pending returns the number of buffered bytes not yet consumed by a
// complete frame.
func (p *Parser) Pending() int {
	return len(p.buf) - p.pos
}

// Iter is a pull iterator over the frames currently extractable from
// the parser's accumulator.
type Iter struct {
	p *Parser
}

// Next returns the next decode result. ok is false once the remaining
// buffered bytes hold no complete frame; those bytes stay buffered for
// the next Consume call.
func (it *Iter) Next() (res Result, ok bool) {
	return it.p.next()
}

func (p *Parser) next() (Result, bool) {
	for {
		p.seekSync()

		remain := len(p.buf) - p.pos
		if remain < headerLen {
			// Incomplete marker or header; retain and wait for more.
			p.compact()
			return Result{}, false
		}

		class := p.buf[p.pos+2]
		id := p.buf[p.pos+3]
		payloadLen := int(binary.LittleEndian.Uint16(p.buf[p.pos+4 : p.pos+6]))

		if payloadLen > MaxPayloadLen {
			p.pos += 2 // skip the bad marker, resync after it
			return Result{Err: &ParseError{Kind: KindBadLength, Class: class, MsgID: id}}, true
		}

		total := headerLen + payloadLen + checksumLen
		if remain < total {
			// Frame boundary known but trailing bytes not yet here.
			p.compact()
			return Result{}, false
		}

		frame := p.buf[p.pos : p.pos+total]
		ckA, ckB := checksum(frame[2 : total-checksumLen])
		if ckA != frame[total-2] || ckB != frame[total-1] {
			p.pos += 2
			return Result{Err: &ParseError{Kind: KindBadChecksum, Class: class, MsgID: id}}, true
		}

		f := decodeFrame(class, id, frame[headerLen:total-checksumLen])
		p.pos += total
		return Result{Frame: f}, true
	}
}

// seekSync advances the cursor to the next plausible frame-start
// marker, discarding garbage bytes. A lone 0xB5 at the end of the
// buffer is kept; it may be the start of a split marker.
func (p *Parser) seekSync() {
	for p.pos < len(p.buf) {
		if p.buf[p.pos] != Sync1 {
			p.pos++
			continue
		}
		if p.pos+1 < len(p.buf) && p.buf[p.pos+1] != Sync2 {
			p.pos++
			continue
		}
		return
	}
}

// compact drops the fully consumed prefix, bounding memory to the
// longest in-flight partial frame.
func (p *Parser) compact() {
	if p.pos == 0 {
		return
	}
	n := copy(p.buf, p.buf[p.pos:])
	p.buf = p.buf[:n]
	p.pos = 0
}
