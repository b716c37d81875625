// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// ubxrecord configures a u-blox receiver over a serial port and
// captures its raw UBX output stream to an (optionally gzip
// compressed) file.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gitlab.com/ubxtools/ubxcap/internal/config"
	"gitlab.com/ubxtools/ubxcap/internal/device"
	"gitlab.com/ubxtools/ubxcap/internal/iox"
	"gitlab.com/ubxtools/ubxcap/internal/logging"
	"gitlab.com/ubxtools/ubxcap/internal/ubx"
)

func main() {
	app := &cli.App{
		Name:  "ubxrecord",
		Usage: "Record UBX files from a u-blox receiver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Serial port to open",
			},
			&cli.IntFlag{
				Name:    "baud",
				Aliases: []string{"s"},
				Value:   9600,
				Usage:   "Baud rate of the port to open",
			},
			&cli.StringFlag{
				Name:  "stop-bits",
				Value: "1",
				Usage: "Number of stop bits to use for open port (1 or 2)",
			},
			&cli.StringFlag{
				Name:  "data-bits",
				Value: "8",
				Usage: "Number of data bits to use for open port (7 or 8)",
			},
			&cli.StringFlag{
				Name:  "parity",
				Usage: "Parity to use for open port (even or odd, default none)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file name",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML file supplying defaults for the flags above",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: runRecord,
		Commands: []*cli.Command{
			configureCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Configure settings for a specific UART/USB port, then record",
		Description: "Apply a configuration to the selected receiver port before capturing.\n" +
			"Supported ports: usb, uart1, uart2.\n" +
			"Configuration includes: protocol in/out, data-bits, stop-bits, parity, baud-rate.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "select",
				Value:    "usb",
				Required: true,
				Usage:    "Receiver port to configure: usb, uart1, uart2",
			},
			&cli.IntFlag{
				Name:  "baud",
				Value: 9600,
				Usage: "Baud rate to set",
			},
			&cli.StringFlag{
				Name:  "stop-bits",
				Value: "1",
				Usage: "Number of stop bits to set (1 or 2)",
			},
			&cli.StringFlag{
				Name:  "data-bits",
				Value: "8",
				Usage: "Number of data bits to set (7 or 8)",
			},
			&cli.StringFlag{
				Name:  "parity",
				Usage: "Parity to set (even or odd, default none)",
			},
		},
		Action: runConfigure,
	}
}

// session bundles the resources both command paths need.
type session struct {
	log     *zap.SugaredLogger
	dev     *device.Device
	sink    *iox.Sink
	outPath string
}

// openSession resolves flags over the optional config file, opens the
// serial transport and the output sink. Any failure here is fatal.
func openSession(c *cli.Context) (*session, error) {
	conf := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if conf, err = config.Parse(path); err != nil {
			return nil, cli.Exit(fmt.Sprintf("failed to load config %q: %v", path, err), 1)
		}
	}

	port := c.String("port")
	if port == "" {
		port = conf.Port
	}
	if port == "" {
		return nil, cli.Exit("no serial port given, use --port", 1)
	}

	scfg := device.SerialConfig{
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
		StopBits: conf.StopBits,
		Parity:   conf.Parity,
	}
	if c.IsSet("baud") {
		scfg.BaudRate = c.Int("baud")
	}
	if c.IsSet("stop-bits") || scfg.StopBits == 0 {
		var err error
		if scfg.StopBits, err = parseStopBits(c.String("stop-bits")); err != nil {
			return nil, cli.Exit(err.Error(), 1)
		}
	}
	if c.IsSet("data-bits") || scfg.DataBits == 0 {
		var err error
		if scfg.DataBits, err = parseDataBits(c.String("data-bits")); err != nil {
			return nil, cli.Exit(err.Error(), 1)
		}
	}
	if c.IsSet("parity") {
		scfg.Parity = c.String("parity")
	}

	verbose := conf.Verbose || c.Bool("verbose")
	log := logging.New(verbose)

	transport, err := device.OpenSerial(port, scfg)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to open %q: %v", port, err), 1)
	}

	outPath := c.String("output")
	if outPath == "" {
		outPath = conf.Output
	}
	sink, err := iox.Create(outPath)
	if err != nil {
		_ = transport.Close()
		return nil, cli.Exit(fmt.Sprintf("failed to create file %q: %v", outPath, err), 1)
	}

	return &session{
		log:     log,
		dev:     device.New(transport),
		sink:    sink,
		outPath: outPath,
	}, nil
}

func (s *session) close() {
	iox.DiscardClose(s.sink)
	iox.DiscardClose(s.dev)
}

// runRecord is the plain capture path: enable NAV-PVT, poll MON-VER,
// stream to the sink until the process is terminated.
func runRecord(c *cli.Context) error {
	sess, err := openSession(c)
	if err != nil {
		return err
	}
	defer sess.close()

	return record(sess)
}

// runConfigure pushes a CFG-PRT configuration to the selected receiver
// port, waits for its acknowledgment, then falls through to the common
// record path.
func runConfigure(c *cli.Context) error {
	// The subcommand reuses flag names the root app also defines
	// (baud, stop-bits, ...). Session flags must resolve against the
	// root context; c would shadow them with the configure values.
	root := c
	if lin := c.Lineage(); len(lin) > 1 {
		root = lin[1]
	}
	sess, err := openSession(root)
	if err != nil {
		return err
	}
	defer sess.close()

	var portID ubx.PortID
	sel := c.String("select")
	switch sel {
	case "usb":
		portID = ubx.PortUsb
	case "uart1":
		portID = ubx.PortUart1
	case "uart2":
		portID = ubx.PortUart2
	default:
		return cli.Exit(fmt.Sprintf("unsupported port %q, expected usb, uart1 or uart2", sel), 1)
	}

	mode, err := parseUartMode(c.String("data-bits"), c.String("parity"), c.String("stop-bits"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cmd := ubx.CfgPrtUart{
		PortID:       portID,
		Mode:         mode,
		BaudRate:     uint32(c.Int("baud")),
		InProtoMask:  ubx.ProtoUBX,
		OutProtoMask: ubx.ProtoUBX,
	}

	sess.log.Infof("configuring %s port ...", sel)
	if err := sess.dev.WriteAll(cmd.Bytes()); err != nil {
		return cli.Exit(fmt.Sprintf("failed to send UBX-CFG-PRT: %v", err), 1)
	}
	if err := sess.dev.WaitForAck(cmd.AckTarget()); err != nil {
		return cli.Exit(fmt.Sprintf("failed waiting for UBX-CFG-PRT ack: %v", err), 1)
	}

	return record(sess)
}

// record enables the NAV-PVT message on all serial ports, polls the
// receiver version once, then captures raw bytes until terminated.
func record(sess *session) error {
	// Rate index order: I2C, UART1, UART2, USB, SPI, reserved.
	sess.log.Info("enabling UBX-NAV-PVT message on USB, UART1 and UART2 ...")
	msg := ubx.CfgMsgAllPorts(ubx.ClassNav, ubx.IDNavPvt, [6]byte{0, 1, 1, 1, 0, 0})
	if err := sess.dev.WriteAll(msg); err != nil {
		return cli.Exit(fmt.Sprintf("failed to send UBX-CFG-MSG: %v", err), 1)
	}
	if err := sess.dev.WaitForAck(ubx.CfgMsgAckTarget()); err != nil {
		return cli.Exit(fmt.Sprintf("failed waiting for UBX-CFG-MSG ack: %v", err), 1)
	}

	if err := sess.dev.WriteAll(ubx.PollRequest(ubx.ClassMon, ubx.IDMonVer)); err != nil {
		return cli.Exit(fmt.Sprintf("failed to poll UBX-MON-VER: %v", err), 1)
	}

	sess.log.Infof("receiver opened, streaming to %q ...", sess.outPath)
	if err := sess.dev.Capture(sess.sink, sess.log); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func parseStopBits(s string) (int, error) {
	switch s {
	case "1":
		return 1, nil
	case "2":
		return 2, nil
	}
	return 0, fmt.Errorf("unsupported stop bits %q, expected 1 or 2", s)
}

func parseDataBits(s string) (int, error) {
	switch s {
	case "7":
		return 7, nil
	case "8":
		return 8, nil
	}
	return 0, fmt.Errorf("number of data bits supported by u-blox is either 7 or 8, got %q", s)
}

// parseUartMode maps CLI framing strings to the receiver's CFG-PRT
// mode representation.
func parseUartMode(dataBits, parity, stopBits string) (m ubx.UartMode, err error) {
	switch dataBits {
	case "7":
		m.DataBits = ubx.UartDataBits7
	case "8":
		m.DataBits = ubx.UartDataBits8
	default:
		return m, fmt.Errorf("number of data bits supported by u-blox is either 7 or 8, got %q", dataBits)
	}

	switch parity {
	case "":
		m.Parity = ubx.UartParityNone
	case "even":
		m.Parity = ubx.UartParityEven
	case "odd":
		m.Parity = ubx.UartParityOdd
	default:
		return m, fmt.Errorf("unsupported parity %q, expected even or odd", parity)
	}

	switch stopBits {
	case "1":
		m.StopBits = ubx.UartStopBits1
	case "2":
		m.StopBits = ubx.UartStopBits2
	default:
		return m, fmt.Errorf("unsupported stop bits %q, expected 1 or 2", stopBits)
	}

	return m, nil
}
