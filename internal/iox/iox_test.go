// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package iox

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, path string, payload []byte) []byte {
	t.Helper()

	sink, err := Create(path)
	require.NoError(t, err)
	if len(payload) > 0 {
		n, err := sink.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
	}
	require.NoError(t, sink.Close())

	src, err := Open(path)
	require.NoError(t, err)
	defer DiscardClose(src)

	got, err := io.ReadAll(src)
	require.NoError(t, err)
	return got
}

// Bytes written through the sink must read back identically through
// the source, for both variants, empty and non-empty.
func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xB5, 0x62, 0x01, 0x07}, 1000)

	tables := []struct {
		name    string
		file    string
		payload []byte
	}{
		{"plain", "capture.ubx", payload},
		{"plain empty", "empty.ubx", nil},
		{"gzip", "capture.ubx.gz", payload},
		{"gzip empty", "empty.ubx.gz", nil},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			got := roundTrip(t, filepath.Join(t.TempDir(), table.file), table.payload)
			if len(table.payload) == 0 {
				require.Empty(t, got)
			} else {
				require.Equal(t, table.payload, got)
			}
		})
	}
}

// The ".gz" suffix selects the compressed envelope on disk; any other
// suffix passes bytes through unmodified.
func TestSuffixSelection(t *testing.T) {
	dir := t.TempDir()
	payload := []byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x00, 0x0E, 0x37}

	plain := filepath.Join(dir, "out.ubx")
	roundTrip(t, plain, payload)
	onDisk, err := os.ReadFile(plain)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)

	compressed := filepath.Join(dir, "out.ubx.gz")
	roundTrip(t, compressed, payload)
	onDisk, err = os.ReadFile(compressed)
	require.NoError(t, err)
	require.True(t, len(onDisk) >= 2 && onDisk[0] == 0x1F && onDisk[1] == 0x8B,
		"expected gzip magic, got % X", onDisk[:2])
}

// spec scenario: the default output name implies compression, and the
// decompressed capture starts with the frame-start marker.
func TestDefaultOutputDecompressesToFrameStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.ubx.gz")
	frame := []byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x00, 0x0E, 0x37}

	got := roundTrip(t, path, frame)
	require.True(t, bytes.HasPrefix(got, []byte{0xB5, 0x62}))
}

// Trailing bytes, including the gzip trailer, are only durable after
// Close.
func TestCloseFlushesTrailer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ubx.gz")

	sink, err := Create(path)
	require.NoError(t, err)
	_, err = sink.Write([]byte("trailing bytes"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	src, err := Open(path)
	require.NoError(t, err)
	defer DiscardClose(src)

	got, err := io.ReadAll(src)
	require.NoError(t, err)
	require.Equal(t, []byte("trailing bytes"), got)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ubx"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.ubx")
}
