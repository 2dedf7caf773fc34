package ifsbms

// Hard validity limits applied at parse time. A violation discards the
// whole frame; prior node state is kept.
const (
	MaxPackVoltage = 1000.0 // V
	MaxCurrentMag  = 200.0  // A
	MaxSOC         = 100    // %
	MaxSOHPercent  = 100.0  // %
	MinCellVoltage = 2.5    // V
	MaxCellVoltage = 4.5    // V
	MaxCellDelta   = 0.5    // V
)

// Nominal 48 V operating band. Values outside it are accepted but worth a
// warning; the hard limit above is what rejects.
const (
	NominalPackMin = 30.0 // V
	NominalPackMax = 60.0 // V
)

// BasicData is frame 0x190: the fast pack summary.
type BasicData struct {
	PackVoltage       float64 // V, precision 0.0625
	PackCurrent       float64 // A, precision 0.0625, signed, + = discharge
	RemainingEnergyWh float64 // Wh, precision 0.1
	SOC               uint8   // %
	Errors            ErrorFlags
}

// ParseBasicData decodes frame 0x190.
func ParseBasicData(node uint8, data []byte) (*BasicData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame190, Detail: uint16(len(data))}
	}

	voltRaw := CombineLE(data[0], data[1])
	currRaw := CombineLE(data[2], data[3])
	energyRaw := CombineLE(data[4], data[5])
	soc := data[6]

	voltage := DecodeVoltage(voltRaw)
	current := DecodeCurrent(currRaw)

	if voltage > MaxPackVoltage {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame190, Detail: voltRaw}
	}
	if current > MaxCurrentMag || current < -MaxCurrentMag {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame190, Detail: currRaw}
	}
	if soc > MaxSOC {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame190, Detail: uint16(soc)}
	}

	return &BasicData{
		PackVoltage:       voltage,
		PackCurrent:       current,
		RemainingEnergyWh: float64(energyRaw) * ScaleEnergyWh,
		SOC:               soc,
		Errors:            ErrorFlagsFromByte(data[7]),
	}, nil
}

// InNominalBand reports whether the pack voltage sits in the expected
// 48 V-system window.
func (b *BasicData) InNominalBand() bool {
	return b.PackVoltage >= NominalPackMin && b.PackVoltage <= NominalPackMax
}
