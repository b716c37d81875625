// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ubxcap.conf")
	contents := `
port = "/dev/ttyUSB0"
baud_rate = 115200
parity = "even"
output = "/var/log/capture.ubx.gz"
`
	require.NoError(t, os.WriteFile(file, []byte(contents), 0644))

	c, err := Parse(file)
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyUSB0", c.Port)
	require.Equal(t, 115200, c.BaudRate)
	require.Equal(t, "even", c.Parity)
	require.Equal(t, "/var/log/capture.ubx.gz", c.Output)

	// fields not present keep their defaults
	require.Equal(t, 8, c.DataBits)
	require.Equal(t, 1, c.StopBits)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.conf"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	require.Equal(t, 9600, c.BaudRate)
	require.Equal(t, 8, c.DataBits)
	require.Equal(t, 1, c.StopBits)
	require.Equal(t, "output.ubx.gz", c.Output)
	require.Empty(t, c.Parity)
}
