// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
)

// Config holds recording defaults loaded from an optional TOML file.
// Command-line flags override anything set here.
type Config struct {
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`
	Output   string `toml:"output"`
	Verbose  bool   `toml:"verbose"`
}

// Defaults returns the built-in recording defaults.
func Defaults() *Config {
	return &Config{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Output:   "output.ubx.gz",
	}
}

// Parse loads file over the built-in defaults.
func Parse(file string) (c *Config, err error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c = Defaults()

	if err = toml.Unmarshal(contents, c); err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
	}

	return
}
