// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// ubxread replays a UBX capture file through the frame parser and
// prints each decoded frame.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"gitlab.com/ubxtools/ubxcap/internal/iox"
	"gitlab.com/ubxtools/ubxcap/internal/logging"
	"gitlab.com/ubxtools/ubxcap/internal/ubx"
)

func main() {
	app := &cli.App{
		Name:  "ubxread",
		Usage: "Read and parse UBX files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "fp",
				Aliases:  []string{"f"},
				Usage:    "Local .ubx file path, can be gzip compressed",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.New(c.Bool("verbose"))
	path := c.String("fp")

	src, err := iox.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %q: %v", path, err), 1)
	}
	defer iox.DiscardClose(src)

	var parser ubx.Parser
	buf := make([]byte, 2048)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			it := parser.Consume(buf[:n])
			for res, ok := it.Next(); ok; res, ok = it.Next() {
				if res.Err != nil {
					log.Warnw("skipping malformed frame", "error", res.Err)
					continue
				}
				fmt.Println(res.Frame)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return cli.Exit(fmt.Sprintf("failed to read %q: %v", path, rerr), 1)
		}
	}
}
