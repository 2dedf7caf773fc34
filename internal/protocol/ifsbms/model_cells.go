package ifsbms

// MinCellData is frame 0x290: the minimum-voltage cell block. Bytes 4..6
// carry a redundant copy of the maximum cell voltage; it is used only for
// ordering/delta validation and kept for diagnostics. The stored maximum
// comes from frame 0x390.
type MinCellData struct {
	CellMinVoltage  float64 // V, precision 0.0001
	CellMeanVoltage float64 // V, precision 0.0001
	RedundantMax    float64 // V, validation copy of the 0x390 maximum
	MaxVoltageID    uint8   // locator of the max-voltage cell
	MinVoltageID    uint8   // locator of the min-voltage cell
}

// ParseMinCellData decodes frame 0x290 and enforces the cell-voltage
// window and ordering invariants.
func ParseMinCellData(node uint8, data []byte) (*MinCellData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame290, Detail: uint16(len(data))}
	}

	minRaw := CombineLE(data[0], data[1])
	meanRaw := CombineLE(data[2], data[3])
	maxRaw := CombineLE(data[4], data[5])

	min := DecodeCellVoltage(minRaw)
	mean := DecodeCellVoltage(meanRaw)
	max := DecodeCellVoltage(maxRaw)

	if min < MinCellVoltage {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame290, Detail: minRaw}
	}
	if max > MaxCellVoltage {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame290, Detail: maxRaw}
	}
	if min > mean || mean > max {
		return nil, &ParseError{Kind: ErrRelation, NodeID: node, Frame: Frame290, Detail: meanRaw}
	}
	if max-min > MaxCellDelta {
		return nil, &ParseError{Kind: ErrRelation, NodeID: node, Frame: Frame290, Detail: maxRaw}
	}

	return &MinCellData{
		CellMinVoltage:  min,
		CellMeanVoltage: mean,
		RedundantMax:    max,
		MaxVoltageID:    data[6],
		MinVoltageID:    data[7],
	}, nil
}

// MaxCellData is frame 0x390, symmetric to 0x290 with max/delta
// semantics. Bytes 4..6 carry a redundant minimum used for validation.
type MaxCellData struct {
	CellMaxVoltage   float64 // V, precision 0.0001
	CellDeltaVoltage float64 // V, precision 0.0001
	RedundantMin     float64 // V, validation copy of the 0x290 minimum
	MaxVoltageID     uint8
	MinVoltageID     uint8
}

// ParseMaxCellData decodes frame 0x390.
func ParseMaxCellData(node uint8, data []byte) (*MaxCellData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame390, Detail: uint16(len(data))}
	}

	maxRaw := CombineLE(data[0], data[1])
	deltaRaw := CombineLE(data[2], data[3])
	minRaw := CombineLE(data[4], data[5])

	max := DecodeCellVoltage(maxRaw)
	delta := DecodeCellVoltage(deltaRaw)
	min := DecodeCellVoltage(minRaw)

	if max > MaxCellVoltage {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame390, Detail: maxRaw}
	}
	if min < MinCellVoltage {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame390, Detail: minRaw}
	}
	if min > max {
		return nil, &ParseError{Kind: ErrRelation, NodeID: node, Frame: Frame390, Detail: minRaw}
	}
	if delta > MaxCellDelta || max-min > MaxCellDelta {
		return nil, &ParseError{Kind: ErrRelation, NodeID: node, Frame: Frame390, Detail: deltaRaw}
	}

	return &MaxCellData{
		CellMaxVoltage:   max,
		CellDeltaVoltage: delta,
		RedundantMin:     min,
		MaxVoltageID:     data[6],
		MinVoltageID:     data[7],
	}, nil
}
