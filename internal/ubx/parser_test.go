// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package ubx

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// navPvtFrame returns a valid UBX-NAV-PVT frame with recognizable
// field values.
func navPvtFrame() []byte {
	p := make([]byte, 92)
	binary.LittleEndian.PutUint32(p[0:4], 123456) // iTOW
	binary.LittleEndian.PutUint16(p[4:6], 2021)
	p[6] = 11 // month
	p[7] = 22
	p[8] = 13
	p[9] = 37
	p[10] = 59
	p[20] = 3 // fixType: 3D
	p[23] = 9 // numSV
	lon := int32(-1223981234)
	lat := int32(474398765)
	binary.LittleEndian.PutUint32(p[24:28], uint32(lon)) // lon 1e-7 deg
	binary.LittleEndian.PutUint32(p[28:32], uint32(lat)) // lat 1e-7 deg
	binary.LittleEndian.PutUint32(p[32:36], 105000)                     // height mm
	binary.LittleEndian.PutUint32(p[36:40], 82000)                      // hMSL mm
	return encodeFrame(ClassNav, IDNavPvt, p)
}

func ackFrame(class, id byte) []byte {
	return encodeFrame(ClassAck, IDAckAck, []byte{class, id})
}

// drain collects every result the iterator yields.
func drain(it *Iter) (frames []Frame, errs []error) {
	for res, ok := it.Next(); ok; res, ok = it.Next() {
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		frames = append(frames, res.Frame)
	}
	return
}

// Feeding a stream split at every possible boundary must decode the
// same frames as feeding it in one chunk.
func TestConsumeChunkBoundaryIndependence(t *testing.T) {
	var stream []byte
	stream = append(stream, navPvtFrame()...)
	stream = append(stream, ackFrame(ClassCfg, IDCfgPrt)...)
	stream = append(stream, 0xDE, 0xAD, 0xBE) // garbage between frames
	stream = append(stream, ackFrame(ClassCfg, IDCfgMsg)...)

	var ref Parser
	wantFrames, wantErrs := drain(ref.Consume(stream))
	require.Len(t, wantFrames, 3)
	require.Empty(t, wantErrs)

	for split := 1; split < len(stream); split++ {
		var p Parser
		frames, errs := drain(p.Consume(stream[:split]))
		moreFrames, moreErrs := drain(p.Consume(stream[split:]))
		frames = append(frames, moreFrames...)
		errs = append(errs, moreErrs...)

		require.Empty(t, errs, "split at %d", split)
		require.Len(t, frames, len(wantFrames), "split at %d", split)
		for i := range frames {
			require.Equal(t, wantFrames[i], frames[i], "split at %d, frame %d", split, i)
		}
		require.Zero(t, p.Pending(), "split at %d", split)
	}
}

// A corrupted frame between two valid ones yields exactly two frames
// and one error, with both valid frames intact.
func TestResyncAfterBadChecksum(t *testing.T) {
	bad := ackFrame(ClassCfg, IDCfgMsg)
	bad[len(bad)-1] ^= 0xFF // flip a checksum byte

	var stream []byte
	stream = append(stream, navPvtFrame()...)
	stream = append(stream, bad...)
	stream = append(stream, ackFrame(ClassCfg, IDCfgPrt)...)

	var p Parser
	frames, errs := drain(p.Consume(stream))

	require.Len(t, frames, 2)
	require.Len(t, errs, 1)

	var perr *ParseError
	require.ErrorAs(t, errs[0], &perr)
	require.Equal(t, KindBadChecksum, perr.Kind)

	require.IsType(t, &NavPvt{}, frames[0])
	ack, ok := frames[1].(*AckAck)
	require.True(t, ok)
	require.Equal(t, ClassCfg, ack.AckClass)
	require.Equal(t, IDCfgPrt, ack.AckID)
	require.Zero(t, p.Pending())
}

// A header announcing an impossible payload length is rejected and the
// stream resynchronizes on the following frame.
func TestResyncAfterOversizedLength(t *testing.T) {
	bogus := []byte{Sync1, Sync2, ClassNav, IDNavPvt, 0xFF, 0xFF} // len 65535

	var stream []byte
	stream = append(stream, bogus...)
	stream = append(stream, ackFrame(ClassCfg, IDCfgPrt)...)

	var p Parser
	frames, errs := drain(p.Consume(stream))

	require.Len(t, frames, 1)
	require.Len(t, errs, 1)
	var perr *ParseError
	require.ErrorAs(t, errs[0], &perr)
	require.Equal(t, KindBadLength, perr.Kind)
}

// spec scenario: three valid frames, three garbage bytes, one valid
// frame. All four frames decode in order; the garbage is skipped
// silently.
func TestGarbageBetweenFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, navPvtFrame()...)
	stream = append(stream, ackFrame(ClassCfg, IDCfgPrt)...)
	stream = append(stream, navPvtFrame()...)
	stream = append(stream, 0x00, 0xB5, 0x42) // includes a false sync start
	stream = append(stream, navPvtFrame()...)

	var p Parser
	frames, errs := drain(p.Consume(stream))

	require.Empty(t, errs)
	require.Len(t, frames, 4)
	require.IsType(t, &NavPvt{}, frames[0])
	require.IsType(t, &AckAck{}, frames[1])
	require.IsType(t, &NavPvt{}, frames[2])
	require.IsType(t, &NavPvt{}, frames[3])
}

// An incomplete trailing frame is retained, not discarded, and
// completes on the next Consume.
func TestPartialFrameRetained(t *testing.T) {
	frame := navPvtFrame()

	var p Parser
	frames, errs := drain(p.Consume(frame[:7]))
	require.Empty(t, frames)
	require.Empty(t, errs)
	require.Equal(t, 7, p.Pending())

	frames, errs = drain(p.Consume(frame[7:]))
	require.Empty(t, errs)
	require.Len(t, frames, 1)
	require.Zero(t, p.Pending())
}

// The accumulator is compacted once all complete frames are drained.
func TestAccumulatorCompaction(t *testing.T) {
	var p Parser
	for i := 0; i < 100; i++ {
		frames, errs := drain(p.Consume(navPvtFrame()))
		require.Len(t, frames, 1)
		require.Empty(t, errs)
	}
	require.Zero(t, p.Pending())
	require.LessOrEqual(t, len(p.buf), len(navPvtFrame()))
}

func TestNavPvtDecode(t *testing.T) {
	var p Parser
	frames, errs := drain(p.Consume(navPvtFrame()))
	require.Empty(t, errs)
	require.Len(t, frames, 1)

	pvt, ok := frames[0].(*NavPvt)
	require.True(t, ok)
	require.Equal(t, uint16(2021), pvt.Year)
	require.Equal(t, uint8(3), pvt.FixType)
	require.Equal(t, uint8(9), pvt.NumSV)
	require.InDelta(t, -122.3981234, pvt.Lon(), 1e-9)
	require.InDelta(t, 47.4398765, pvt.Lat(), 1e-9)
	require.Equal(t, int32(82000), pvt.HeightMSLM)
}

func TestMonVerDecode(t *testing.T) {
	payload := make([]byte, 40+30)
	copy(payload[0:], "ROM CORE 3.01 (107888)")
	copy(payload[30:], "00080000")
	copy(payload[40:], "FWVER=SPG 3.01")

	var p Parser
	frames, errs := drain(p.Consume(encodeFrame(ClassMon, IDMonVer, payload)))
	require.Empty(t, errs)
	require.Len(t, frames, 1)

	ver, ok := frames[0].(*MonVer)
	require.True(t, ok)
	require.Equal(t, "ROM CORE 3.01 (107888)", ver.SwVersion)
	require.Equal(t, "00080000", ver.HwVersion)
	require.Equal(t, []string{"FWVER=SPG 3.01"}, ver.Extensions)
}

func TestUnknownFrameKeptRaw(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	var p Parser
	frames, errs := drain(p.Consume(encodeFrame(0x0D, 0x01, payload)))
	require.Empty(t, errs)
	require.Len(t, frames, 1)

	raw, ok := frames[0].(*RawFrame)
	require.True(t, ok)
	require.Equal(t, byte(0x0D), raw.Class())
	require.Equal(t, byte(0x01), raw.ID())
	require.Equal(t, payload, raw.Payload)
}
