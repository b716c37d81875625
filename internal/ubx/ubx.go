// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ubx implements the u-blox UBX binary protocol: frame
// encoding/decoding, checksumming, and a stateful stream parser that
// reassembles frames split across arbitrary read boundaries.
package ubx

import (
	"encoding/binary"
	"fmt"
)

const (
	Sync1 = 0xB5
	Sync2 = 0x62

	// MaxPayloadLen is the largest payload a receiver will emit. A
	// header announcing more than this is treated as malformed.
	MaxPayloadLen = 1240

	headerLen   = 6 // sync(2) + class + id + len(2)
	checksumLen = 2
)

// Message classes.
const (
	ClassNav byte = 0x01
	ClassAck byte = 0x05
	ClassCfg byte = 0x06
	ClassMon byte = 0x0A
)

// Message IDs, per class.
const (
	IDAckNak byte = 0x00
	IDAckAck byte = 0x01

	IDCfgPrt byte = 0x00
	IDCfgMsg byte = 0x01

	IDNavPvt byte = 0x07

	IDMonVer byte = 0x04
)

// Frame is one complete, checksum-validated protocol unit.
type Frame interface {
	Class() byte
	ID() byte
}

// AckTarget identifies the command a UBX-ACK-ACK frame acknowledges.
type AckTarget struct {
	Class byte
	MsgID byte
}

// AckAck is a UBX-ACK-ACK frame. Its payload names the (class, id) of
// the command the receiver accepted.
type AckAck struct {
	AckClass byte
	AckID    byte
}

func (a *AckAck) Class() byte { return ClassAck }
func (a *AckAck) ID() byte    { return IDAckAck }

// Matches reports whether this ack acknowledges the given target.
func (a *AckAck) Matches(t AckTarget) bool {
	return a.AckClass == t.Class && a.AckID == t.MsgID
}

func (a *AckAck) String() string {
	return fmt.Sprintf("UBX-ACK-ACK class=0x%02X id=0x%02X", a.AckClass, a.AckID)
}

// AckNak is a UBX-ACK-NAK frame, the receiver's rejection of a command.
type AckNak struct {
	NakClass byte
	NakID    byte
}

func (a *AckNak) Class() byte { return ClassAck }
func (a *AckNak) ID() byte    { return IDAckNak }

func (a *AckNak) String() string {
	return fmt.Sprintf("UBX-ACK-NAK class=0x%02X id=0x%02X", a.NakClass, a.NakID)
}

// NavPvt is a UBX-NAV-PVT navigation solution frame.
type NavPvt struct {
	ITowMS  uint32
	Year    uint16
	Month   uint8
	Day     uint8
	Hour    uint8
	Min     uint8
	Sec     uint8
	FixType uint8
	NumSV   uint8
	// Position, in the receiver's native scaling: degrees * 1e-7 for
	// lon/lat, millimetres for heights.
	LonE7      int32
	LatE7      int32
	HeightMM   int32
	HeightMSLM int32
	// Ground speed in mm/s and motion heading in degrees * 1e-5.
	GroundSpeedMM int32
	HeadingE5     int32
}

func (n *NavPvt) Class() byte { return ClassNav }
func (n *NavPvt) ID() byte    { return IDNavPvt }

// Lon returns the longitude in degrees.
func (n *NavPvt) Lon() float64 { return float64(n.LonE7) * 1e-7 }

// Lat returns the latitude in degrees.
func (n *NavPvt) Lat() float64 { return float64(n.LatE7) * 1e-7 }

func (n *NavPvt) String() string {
	return fmt.Sprintf(
		"UBX-NAV-PVT %04d-%02d-%02d %02d:%02d:%02d fix=%d sv=%d lon=%.7f lat=%.7f hMSL=%.3fm",
		n.Year, n.Month, n.Day, n.Hour, n.Min, n.Sec,
		n.FixType, n.NumSV, n.Lon(), n.Lat(), float64(n.HeightMSLM)/1000)
}

// MonVer is a UBX-MON-VER receiver/software version frame.
type MonVer struct {
	SwVersion  string
	HwVersion  string
	Extensions []string
}

func (m *MonVer) Class() byte { return ClassMon }
func (m *MonVer) ID() byte    { return IDMonVer }

func (m *MonVer) String() string {
	return fmt.Sprintf("UBX-MON-VER sw=%q hw=%q ext=%d", m.SwVersion, m.HwVersion, len(m.Extensions))
}

// RawFrame is any valid frame with no dedicated decoder. The payload is
// retained as received.
type RawFrame struct {
	FrameClass byte
	FrameID    byte
	Payload    []byte
}

func (r *RawFrame) Class() byte { return r.FrameClass }
func (r *RawFrame) ID() byte    { return r.FrameID }

func (r *RawFrame) String() string {
	return fmt.Sprintf("UBX class=0x%02X id=0x%02X len=%d", r.FrameClass, r.FrameID, len(r.Payload))
}

// checksum computes the 8-bit Fletcher checksum over data, which must
// cover class, id, length and payload.
func checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return
}

// encodeFrame assembles a complete frame around the given payload.
func encodeFrame(class, id byte, payload []byte) []byte {
	out := make([]byte, 0, headerLen+len(payload)+checksumLen)
	out = append(out, Sync1, Sync2, class, id)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	ckA, ckB := checksum(out[2:])
	return append(out, ckA, ckB)
}

// decodeFrame builds a typed frame from a validated class/id/payload
// triple. Payloads too short for their typed decoder fall back to
// RawFrame rather than failing the stream.
func decodeFrame(class, id byte, payload []byte) Frame {
	switch {
	case class == ClassAck && id == IDAckAck && len(payload) >= 2:
		return &AckAck{AckClass: payload[0], AckID: payload[1]}
	case class == ClassAck && id == IDAckNak && len(payload) >= 2:
		return &AckNak{NakClass: payload[0], NakID: payload[1]}
	case class == ClassNav && id == IDNavPvt && len(payload) >= 92:
		return decodeNavPvt(payload)
	case class == ClassMon && id == IDMonVer && len(payload) >= 40:
		return decodeMonVer(payload)
	}
	raw := &RawFrame{FrameClass: class, FrameID: id}
	raw.Payload = append(raw.Payload, payload...)
	return raw
}

func decodeNavPvt(p []byte) *NavPvt {
	return &NavPvt{
		ITowMS:        binary.LittleEndian.Uint32(p[0:4]),
		Year:          binary.LittleEndian.Uint16(p[4:6]),
		Month:         p[6],
		Day:           p[7],
		Hour:          p[8],
		Min:           p[9],
		Sec:           p[10],
		FixType:       p[20],
		NumSV:         p[23],
		LonE7:         int32(binary.LittleEndian.Uint32(p[24:28])),
		LatE7:         int32(binary.LittleEndian.Uint32(p[28:32])),
		HeightMM:      int32(binary.LittleEndian.Uint32(p[32:36])),
		HeightMSLM:    int32(binary.LittleEndian.Uint32(p[36:40])),
		GroundSpeedMM: int32(binary.LittleEndian.Uint32(p[60:64])),
		HeadingE5:     int32(binary.LittleEndian.Uint32(p[64:68])),
	}
}

func decodeMonVer(p []byte) *MonVer {
	m := &MonVer{
		SwVersion: cstr(p[0:30]),
		HwVersion: cstr(p[30:40]),
	}
	for off := 40; off+30 <= len(p); off += 30 {
		if ext := cstr(p[off : off+30]); ext != "" {
			m.Extensions = append(m.Extensions, ext)
		}
	}
	return m
}

// cstr extracts a NUL-terminated string from a fixed-width field.
func cstr(p []byte) string {
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}
