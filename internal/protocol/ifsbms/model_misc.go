package ifsbms

// RawData is frame 0x1B0: eight vendor bytes retained verbatim.
type RawData struct {
	Bytes [8]byte
}

// ParseRawData copies frame 0x1B0.
func ParseRawData(node uint8, data []byte) (*RawData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame1B0, Detail: uint16(len(data))}
	}
	var r RawData
	copy(r.Bytes[:], data)
	return &r, nil
}

// CANopen NMT states as reported in frame 0x710 byte 0.
const (
	NMTBootup         = 0x00
	NMTStopped        = 0x04
	NMTOperational    = 0x05
	NMTPreOperational = 0x7F
)

// NMTData is frame 0x710: the CANopen heartbeat state byte.
type NMTData struct {
	State uint8
}

// ParseNMTData decodes frame 0x710.
func ParseNMTData(node uint8, data []byte) (*NMTData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame710, Detail: uint16(len(data))}
	}
	return &NMTData{State: data[0]}, nil
}
