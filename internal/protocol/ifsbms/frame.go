package ifsbms

import "fmt"

// FrameType enumerates the nine fixed 8-byte payload schemas emitted by an
// IFS BMS node. Each type occupies a 16-wide CAN identifier block; node n
// (1..16) sends at base+n-1.
type FrameType int

const (
	Frame190 FrameType = iota // basic: pack voltage/current, energy, SOC, error byte
	Frame290                  // min-voltage cell block
	Frame310                  // SOH, impedance, channel mux
	Frame390                  // max-voltage cell block
	Frame410                  // temperatures, ready-to-charge/discharge
	Frame510                  // power limits, digital inputs, relay status
	Frame490                  // multiplexed record (54 selectors)
	Frame1B0                  // opaque vendor block
	Frame710                  // CANopen NMT state

	FrameTypeCount = 9
)

// MaxNodes is the number of BMS units addressable on one bus.
const MaxNodes = 16

// PayloadLen is the only legal DLC for every IFS BMS frame.
const PayloadLen = 8

func (t FrameType) String() string {
	switch t {
	case Frame190:
		return "0x190"
	case Frame290:
		return "0x290"
	case Frame310:
		return "0x310"
	case Frame390:
		return "0x390"
	case Frame410:
		return "0x410"
	case Frame510:
		return "0x510"
	case Frame490:
		return "0x490"
	case Frame1B0:
		return "0x1B0"
	case Frame710:
		return "0x710"
	default:
		return fmt.Sprintf("frame(%d)", int(t))
	}
}

// Base returns the CAN identifier of node 1 for this frame type.
func (t FrameType) Base() uint32 {
	return frameTable[t].base
}

// Critical reports whether staleness of this frame type marks the node
// critical-stale. The five fast periodic frames are critical; the slow
// inventory/diagnostic frames are not.
func (t FrameType) Critical() bool {
	return frameTable[t].critical
}

// DefaultTimeoutMs is three nominal periods of the frame.
func (t FrameType) DefaultTimeoutMs() int64 {
	return frameTable[t].timeoutMs
}

var frameTable = [FrameTypeCount]struct {
	base      uint32
	critical  bool
	timeoutMs int64
}{
	Frame190: {0x190, true, 300},
	Frame290: {0x290, true, 300},
	Frame310: {0x310, false, 500},
	Frame390: {0x390, true, 300},
	Frame410: {0x410, true, 500},
	Frame510: {0x510, true, 500},
	Frame490: {0x490, false, 1000},
	Frame1B0: {0x1B0, false, 2000},
	Frame710: {0x710, false, 2000},
}

// FrameTypes lists all types in table order, for iteration.
var FrameTypes = [FrameTypeCount]FrameType{
	Frame190, Frame290, Frame310, Frame390, Frame410,
	Frame510, Frame490, Frame1B0, Frame710,
}

// Classify maps an 11-bit CAN identifier and its payload length to a frame
// type and node id. It is total and side-effect-free; callers account for
// rejects in the statistics.
func Classify(canID uint32, payloadLen int) (FrameType, uint8, error) {
	if payloadLen != PayloadLen {
		return 0, 0, &ParseError{Kind: ErrInvalidLength, Detail: uint16(payloadLen)}
	}
	for _, t := range FrameTypes {
		base := frameTable[t].base
		if canID >= base && canID < base+MaxNodes {
			return t, uint8(canID - base + 1), nil
		}
	}
	return 0, 0, &ParseError{Kind: ErrUnknownFrame, Detail: uint16(canID)}
}
