package modbus

import (
	"encoding/binary"
	"errors"
)

// Unit executes request PDUs against the projection. It is the single
// Modbus-serve actor of the bridge: the transport serializes requests, so
// Process never runs concurrently with itself.
type Unit struct {
	proj *Projection
	now  func() int64
}

// NewUnit binds the projection to a clock returning milliseconds.
func NewUnit(p *Projection, now func() int64) *Unit {
	return &Unit{proj: p, now: now}
}

// Process serves one request PDU. Protocol-level problems come back as
// exception PDUs, never as Go errors; a register read always succeeds
// while the server is up.
func (u *Unit) Process(req PDU) PDU {
	switch req.FunctionCode {
	case FuncReadCoils:
		return u.readBits(req, maxReadBits, func(addr, qty uint16) ([]bool, error) {
			return u.proj.ReadCoils(addr, qty, u.now())
		})
	case FuncReadDiscreteInputs:
		return u.readBits(req, maxReadBits, func(addr, qty uint16) ([]bool, error) {
			return u.proj.ReadDiscreteInputs(addr, qty, u.now())
		})
	case FuncReadHoldingRegisters:
		return u.readRegs(req, func(addr, qty uint16) ([]uint16, error) {
			return u.proj.ReadHoldingRegisters(addr, qty, u.now())
		})
	case FuncReadInputRegisters:
		return u.readRegs(req, func(addr, qty uint16) ([]uint16, error) {
			return u.proj.ReadInputRegisters(addr, qty, u.now())
		})
	case FuncWriteSingleCoil:
		return u.writeSingleCoil(req)
	case FuncWriteSingleRegister:
		return u.writeSingleRegister(req)
	case FuncWriteMultipleCoils:
		return u.writeMultipleCoils(req)
	case FuncWriteMultipleRegisters:
		return u.writeMultipleRegisters(req)
	default:
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalFunction)
	}
}

func (u *Unit) readBits(req PDU, maxQty uint16, read func(addr, qty uint16) ([]bool, error)) PDU {
	if len(req.Data) != 4 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	qty := binary.BigEndian.Uint16(req.Data[2:4])
	if qty < 1 || qty > maxQty {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	bits, err := read(addr, qty)
	if err != nil {
		return u.exception(req.FunctionCode, err)
	}
	packed := packBits(bits)
	data := make([]byte, 1+len(packed))
	data[0] = byte(len(packed))
	copy(data[1:], packed)
	return PDU{FunctionCode: req.FunctionCode, Data: data}
}

func (u *Unit) readRegs(req PDU, read func(addr, qty uint16) ([]uint16, error)) PDU {
	if len(req.Data) != 4 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	qty := binary.BigEndian.Uint16(req.Data[2:4])
	if qty < 1 || qty > maxReadRegs {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	regs, err := read(addr, qty)
	if err != nil {
		return u.exception(req.FunctionCode, err)
	}
	packed := packRegisters(regs)
	data := make([]byte, 1+len(packed))
	data[0] = byte(len(packed))
	copy(data[1:], packed)
	return PDU{FunctionCode: req.FunctionCode, Data: data}
}

func (u *Unit) writeSingleCoil(req PDU) PDU {
	if len(req.Data) != 4 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])
	if value != 0x0000 && value != 0xFF00 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	if err := u.proj.WriteCoil(addr, value == 0xFF00); err != nil {
		return u.exception(req.FunctionCode, err)
	}
	// Echo the request.
	return PDU{FunctionCode: req.FunctionCode, Data: append([]byte(nil), req.Data...)}
}

func (u *Unit) writeSingleRegister(req PDU) PDU {
	if len(req.Data) != 4 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])
	if err := u.proj.WriteHoldingRegister(addr, value); err != nil {
		return u.exception(req.FunctionCode, err)
	}
	return PDU{FunctionCode: req.FunctionCode, Data: append([]byte(nil), req.Data...)}
}

func (u *Unit) writeMultipleCoils(req PDU) PDU {
	if len(req.Data) < 5 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	qty := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := int(req.Data[4])
	if qty < 1 || qty > maxReadBits || byteCount != (int(qty)+7)/8 || len(req.Data) != 5+byteCount {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	// Validate the whole span before executing the first action.
	for i := uint16(0); i < qty; i++ {
		if err := u.proj.CheckCoil(addr + i); err != nil {
			return u.exception(req.FunctionCode, err)
		}
	}
	for i := uint16(0); i < qty; i++ {
		on := req.Data[5+i/8]&(1<<(i%8)) != 0
		if err := u.proj.WriteCoil(addr+i, on); err != nil {
			return u.exception(req.FunctionCode, err)
		}
	}
	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], addr)
	binary.BigEndian.PutUint16(resp[2:4], qty)
	return PDU{FunctionCode: req.FunctionCode, Data: resp}
}

func (u *Unit) writeMultipleRegisters(req PDU) PDU {
	if len(req.Data) < 5 {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(req.Data[0:2])
	qty := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := int(req.Data[4])
	if qty < 1 || qty > maxWriteRegs || byteCount != 2*int(qty) || len(req.Data) != 5+byteCount {
		return ExceptionPDU(req.FunctionCode, ExceptionIllegalDataValue)
	}
	// Validate the whole span before applying the first register.
	for i := uint16(0); i < qty; i++ {
		v := binary.BigEndian.Uint16(req.Data[5+2*i:])
		if err := u.proj.CheckHoldingWrite(addr+i, v); err != nil {
			return u.exception(req.FunctionCode, err)
		}
	}
	for i := uint16(0); i < qty; i++ {
		v := binary.BigEndian.Uint16(req.Data[5+2*i:])
		if err := u.proj.WriteHoldingRegister(addr+i, v); err != nil {
			return u.exception(req.FunctionCode, err)
		}
	}
	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], addr)
	binary.BigEndian.PutUint16(resp[2:4], qty)
	return PDU{FunctionCode: req.FunctionCode, Data: resp}
}

func (u *Unit) exception(fc byte, err error) PDU {
	switch {
	case errors.Is(err, ErrIllegalAddress):
		return ExceptionPDU(fc, ExceptionIllegalDataAddress)
	case errors.Is(err, ErrIllegalValue):
		return ExceptionPDU(fc, ExceptionIllegalDataValue)
	default:
		return ExceptionPDU(fc, ExceptionServerFailure)
	}
}
