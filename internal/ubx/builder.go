// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package ubx

import "encoding/binary"

// Receiver I/O port identifiers used by UBX-CFG-PRT.
type PortID byte

const (
	PortUart1 PortID = 1
	PortUart2 PortID = 2
	PortUsb   PortID = 3
)

// Protocol mask bits for the CFG-PRT in/out protocol fields.
const (
	ProtoUBX  uint16 = 0x0001
	ProtoNMEA uint16 = 0x0002
)

// UART framing parameters as encoded in the CFG-PRT mode word.
type UartDataBits byte

const (
	UartDataBits7 UartDataBits = 7
	UartDataBits8 UartDataBits = 8
)

type UartParity byte

const (
	UartParityNone UartParity = iota
	UartParityEven
	UartParityOdd
)

type UartStopBits byte

const (
	UartStopBits1 UartStopBits = 1
	UartStopBits2 UartStopBits = 2
)

// UartMode is the character framing part of a CFG-PRT configuration.
type UartMode struct {
	DataBits UartDataBits
	Parity   UartParity
	StopBits UartStopBits
}

// word packs the mode into the receiver's 32-bit representation.
func (m UartMode) word() uint32 {
	w := uint32(1) << 4 // reserved bit, always set
	if m.DataBits == UartDataBits7 {
		w |= 2 << 6
	} else {
		w |= 3 << 6
	}
	switch m.Parity {
	case UartParityEven:
		// 0b000
	case UartParityOdd:
		w |= 1 << 9
	default:
		w |= 4 << 9
	}
	if m.StopBits == UartStopBits2 {
		w |= 2 << 12
	}
	return w
}

// CfgPrtUart builds a UBX-CFG-PRT command configuring one UART/USB
// port: framing, baud rate, and which protocols the port speaks.
type CfgPrtUart struct {
	PortID       PortID
	TxReady      uint16
	Mode         UartMode
	BaudRate     uint32
	InProtoMask  uint16
	OutProtoMask uint16
	Flags        uint16
}

// Bytes returns the complete frame ready to write to the device.
func (c CfgPrtUart) Bytes() []byte {
	p := make([]byte, 0, 20)
	p = append(p, byte(c.PortID), 0)
	p = binary.LittleEndian.AppendUint16(p, c.TxReady)
	p = binary.LittleEndian.AppendUint32(p, c.Mode.word())
	p = binary.LittleEndian.AppendUint32(p, c.BaudRate)
	p = binary.LittleEndian.AppendUint16(p, c.InProtoMask)
	p = binary.LittleEndian.AppendUint16(p, c.OutProtoMask)
	p = binary.LittleEndian.AppendUint16(p, c.Flags)
	p = binary.LittleEndian.AppendUint16(p, 0)
	return encodeFrame(ClassCfg, IDCfgPrt, p)
}

// AckTarget returns the (class, id) pair the receiver acknowledges
// after accepting this command.
func (c CfgPrtUart) AckTarget() AckTarget {
	return AckTarget{Class: ClassCfg, MsgID: IDCfgPrt}
}

// CfgMsgAllPorts builds a UBX-CFG-MSG command setting the output rate
// of the (msgClass, msgID) message on all six receiver ports. Rate
// index order: I2C, UART1, UART2, USB, SPI, reserved.
func CfgMsgAllPorts(msgClass, msgID byte, rates [6]byte) []byte {
	p := make([]byte, 0, 8)
	p = append(p, msgClass, msgID)
	p = append(p, rates[:]...)
	return encodeFrame(ClassCfg, IDCfgMsg, p)
}

// CfgMsgAckTarget is the ack target for CfgMsgAllPorts commands.
func CfgMsgAckTarget() AckTarget {
	return AckTarget{Class: ClassCfg, MsgID: IDCfgMsg}
}

// PollRequest builds a zero-payload poll frame asking the receiver to
// emit the (class, id) message once.
func PollRequest(class, id byte) []byte {
	return encodeFrame(class, id, nil)
}
