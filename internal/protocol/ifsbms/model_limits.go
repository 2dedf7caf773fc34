package ifsbms

// LimitsData is frame 0x510: charge/discharge power limits and the IO
// image (digital inputs, relay outputs).
type LimitsData struct {
	ChargePowerLimitW    uint16
	DischargePowerLimitW uint16
	Inputs               DigitalInputs
	Relays               RelayStatus
}

// ParseLimitsData decodes frame 0x510.
func ParseLimitsData(node uint8, data []byte) (*LimitsData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame510, Detail: uint16(len(data))}
	}

	return &LimitsData{
		ChargePowerLimitW:    CombineLE(data[0], data[1]),
		DischargePowerLimitW: CombineLE(data[2], data[3]),
		Inputs:               DigitalInputsFromWord(CombineLE(data[4], data[5])),
		Relays:               RelayStatusFromWord(CombineLE(data[6], data[7])),
	}, nil
}
