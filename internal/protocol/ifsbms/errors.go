package ifsbms

import "fmt"

// ErrorKind tags a rejected frame.
type ErrorKind int

const (
	ErrInvalidLength ErrorKind = iota + 1 // payload DLC != 8
	ErrUnknownFrame                       // identifier outside every frame block
	ErrRange                              // a field violated its validity window
	ErrRelation                           // cross-field ordering violated (treated as range)
	ErrInternal                           // defensive check, must never fire
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidLength:
		return "invalid_length"
	case ErrUnknownFrame:
		return "unknown_frame"
	case ErrRange:
		return "range"
	case ErrRelation:
		return "relation"
	case ErrInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseError describes why a single frame was discarded. Detail carries a
// kind-specific code: the bad DLC, the unmatched identifier, or the raw
// word that failed validation.
type ParseError struct {
	Kind   ErrorKind
	NodeID uint8
	Frame  FrameType
	Detail uint16
}

func (e *ParseError) Error() string {
	if e.NodeID == 0 {
		return fmt.Sprintf("ifsbms: %s (detail=0x%04X)", e.Kind, e.Detail)
	}
	return fmt.Sprintf("ifsbms: node %d frame %s: %s (detail=0x%04X)",
		e.NodeID, e.Frame, e.Kind, e.Detail)
}

// ErrorFlags is the decoded error byte of frame 0x190 (byte 7), one bit
// per named condition.
type ErrorFlags struct {
	MasterError      bool // bit 0
	CellVoltage      bool // bit 1
	CellUnderVoltage bool // bit 2
	CellOverVoltage  bool // bit 3
	CellImbalance    bool // bit 4
	UnderTemperature bool // bit 5
	OverTemperature  bool // bit 6
	OverCurrent      bool // bit 7
}

// ErrorFlagsFromByte expands the wire byte.
func ErrorFlagsFromByte(b byte) ErrorFlags {
	return ErrorFlags{
		MasterError:      b&0x01 != 0,
		CellVoltage:      b&0x02 != 0,
		CellUnderVoltage: b&0x04 != 0,
		CellOverVoltage:  b&0x08 != 0,
		CellImbalance:    b&0x10 != 0,
		UnderTemperature: b&0x20 != 0,
		OverTemperature:  b&0x40 != 0,
		OverCurrent:      b&0x80 != 0,
	}
}

// ToByte packs the flags back into the wire layout.
func (f ErrorFlags) ToByte() byte {
	var b byte
	if f.MasterError {
		b |= 0x01
	}
	if f.CellVoltage {
		b |= 0x02
	}
	if f.CellUnderVoltage {
		b |= 0x04
	}
	if f.CellOverVoltage {
		b |= 0x08
	}
	if f.CellImbalance {
		b |= 0x10
	}
	if f.UnderTemperature {
		b |= 0x20
	}
	if f.OverTemperature {
		b |= 0x40
	}
	if f.OverCurrent {
		b |= 0x80
	}
	return b
}

// Any reports whether at least one error bit is set; it feeds the
// aggregate critical-fault discrete input.
func (f ErrorFlags) Any() bool {
	return f.ToByte() != 0
}

// RelayStatus is the relay-output word of frame 0x510 (bytes 6..8), six
// bits used.
type RelayStatus struct {
	Main      bool // bit 0
	Precharge bool // bit 1
	Charge    bool // bit 2
	Discharge bool // bit 3
	Heater    bool // bit 4
	Fan       bool // bit 5
}

func RelayStatusFromWord(w uint16) RelayStatus {
	return RelayStatus{
		Main:      w&0x01 != 0,
		Precharge: w&0x02 != 0,
		Charge:    w&0x04 != 0,
		Discharge: w&0x08 != 0,
		Heater:    w&0x10 != 0,
		Fan:       w&0x20 != 0,
	}
}

func (r RelayStatus) ToWord() uint16 {
	var w uint16
	if r.Main {
		w |= 0x01
	}
	if r.Precharge {
		w |= 0x02
	}
	if r.Charge {
		w |= 0x04
	}
	if r.Discharge {
		w |= 0x08
	}
	if r.Heater {
		w |= 0x10
	}
	if r.Fan {
		w |= 0x20
	}
	return w
}

// DigitalInputs is the digital-input word of frame 0x510 (bytes 4..6),
// two bits used.
type DigitalInputs struct {
	Input1 bool // bit 0
	Input2 bool // bit 1
}

func DigitalInputsFromWord(w uint16) DigitalInputs {
	return DigitalInputs{Input1: w&0x01 != 0, Input2: w&0x02 != 0}
}

func (d DigitalInputs) ToWord() uint16 {
	var w uint16
	if d.Input1 {
		w |= 0x01
	}
	if d.Input2 {
		w |= 0x02
	}
	return w
}
