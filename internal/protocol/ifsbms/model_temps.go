package ifsbms

// TemperatureData is frame 0x410: cell temperature extremes plus the
// readiness bits. All three words are Kelvin-offset.
type TemperatureData struct {
	TempMax          int   // degC
	TempMin          int   // degC
	TempDelta        int   // degC, as reported on the wire
	ReadyToCharge    bool  // byte 6 bit 0
	ReadyToDischarge bool  // byte 6 bit 1
	SensorID         uint8 // locator of the hottest sensor
}

// ParseTemperatureData decodes frame 0x410.
func ParseTemperatureData(node uint8, data []byte) (*TemperatureData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame410, Detail: uint16(len(data))}
	}

	return &TemperatureData{
		TempMax:          DecodeTemperature(CombineLE(data[0], data[1])),
		TempMin:          DecodeTemperature(CombineLE(data[2], data[3])),
		TempDelta:        DecodeTemperature(CombineLE(data[4], data[5])),
		ReadyToCharge:    data[6]&0x01 != 0,
		ReadyToDischarge: data[6]&0x02 != 0,
		SensorID:         data[7],
	}, nil
}
