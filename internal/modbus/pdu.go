package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Function codes served by the bridge.
const (
	FuncReadCoils              = 0x01
	FuncReadDiscreteInputs     = 0x02
	FuncReadHoldingRegisters   = 0x03
	FuncReadInputRegisters     = 0x04
	FuncWriteSingleCoil        = 0x05
	FuncWriteSingleRegister    = 0x06
	FuncWriteMultipleCoils     = 0x0F
	FuncWriteMultipleRegisters = 0x10
)

// Exception codes.
const (
	ExceptionIllegalFunction    = 0x01
	ExceptionIllegalDataAddress = 0x02
	ExceptionIllegalDataValue   = 0x03
	ExceptionServerFailure      = 0x04
)

const (
	mbapHeaderSize = 7
	maxPDUSize     = 253
	maxReadBits    = 2000
	maxReadRegs    = 125
	maxWriteRegs   = 123
)

var (
	ErrIllegalAddress = errors.New("modbus: illegal data address")
	ErrIllegalValue   = errors.New("modbus: illegal data value")
)

// PDU is a function code plus its data payload.
type PDU struct {
	FunctionCode byte
	Data         []byte
}

// ADU is a Modbus-TCP application data unit: MBAP header plus PDU.
type ADU struct {
	TransactionID uint16
	ProtocolID    uint16
	UnitID        byte
	PDU           PDU
}

// FrameADU extracts one complete ADU from the front of buf. It returns
// (nil, 0, nil) when more bytes are needed, or an error when the stream is
// unrecoverable and the connection should be dropped.
func FrameADU(buf []byte) (*ADU, int, error) {
	if len(buf) < mbapHeaderSize {
		return nil, 0, nil
	}
	protoID := binary.BigEndian.Uint16(buf[2:4])
	if protoID != 0 {
		return nil, 0, fmt.Errorf("modbus: unknown protocol identifier %d", protoID)
	}
	length := binary.BigEndian.Uint16(buf[4:6])
	if length < 2 || length > maxPDUSize+1 {
		return nil, 0, fmt.Errorf("modbus: bad MBAP length %d", length)
	}
	total := 6 + int(length)
	if len(buf) < total {
		return nil, 0, nil
	}

	pduData := make([]byte, int(length)-2)
	copy(pduData, buf[8:total])

	return &ADU{
		TransactionID: binary.BigEndian.Uint16(buf[0:2]),
		UnitID:        buf[6],
		PDU:           PDU{FunctionCode: buf[7], Data: pduData},
	}, total, nil
}

// Encode serializes the ADU, recomputing the MBAP length field.
func (a *ADU) Encode() []byte {
	length := len(a.PDU.Data) + 2
	raw := make([]byte, 6+length)
	binary.BigEndian.PutUint16(raw[0:2], a.TransactionID)
	binary.BigEndian.PutUint16(raw[2:4], a.ProtocolID)
	binary.BigEndian.PutUint16(raw[4:6], uint16(length))
	raw[6] = a.UnitID
	raw[7] = a.PDU.FunctionCode
	copy(raw[8:], a.PDU.Data)
	return raw
}

// ExceptionPDU builds the exception response for a function code.
func ExceptionPDU(fc byte, code byte) PDU {
	return PDU{FunctionCode: fc | 0x80, Data: []byte{code}}
}

// packBits packs booleans LSB-first into the wire byte layout.
func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// packRegisters serializes registers big-endian.
func packRegisters(regs []uint16) []byte {
	out := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[2*i:], r)
	}
	return out
}
