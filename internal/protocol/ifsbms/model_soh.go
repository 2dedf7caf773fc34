package ifsbms

// SOHData is frame 0x310: state of health, one sampled cell temperature
// and the DC internal resistance of the sampled channel. The channel word
// carries the channel index in its low 13 bits and three timer/ramp flags
// in bits 13..15.
type SOHData struct {
	SOH            float64 // %, precision 0.1
	Temperature    int     // degC, Kelvin offset 273 on the wire
	ImpedanceMOhm  float64 // mOhm, precision 0.1
	Channel        uint16  // sampled channel index (13 bits)
	RelaxTimer     bool    // bit 13 of the channel word
	ChargeTimer    bool    // bit 14
	CurrentRamp    bool    // bit 15
	ChannelRawWord uint16  // full word as received, for diagnostics
}

const channelIndexMask = 0x1FFF

// ParseSOHData decodes frame 0x310.
func ParseSOHData(node uint8, data []byte) (*SOHData, error) {
	if len(data) != PayloadLen {
		return nil, &ParseError{Kind: ErrInvalidLength, NodeID: node, Frame: Frame310, Detail: uint16(len(data))}
	}

	sohRaw := CombineLE(data[0], data[1])
	tempRaw := CombineLE(data[2], data[3])
	impRaw := CombineLE(data[4], data[5])
	chanRaw := CombineLE(data[6], data[7])

	soh := float64(sohRaw) * ScaleSOH
	if soh > MaxSOHPercent {
		return nil, &ParseError{Kind: ErrRange, NodeID: node, Frame: Frame310, Detail: sohRaw}
	}

	return &SOHData{
		SOH:            soh,
		Temperature:    DecodeTemperature(tempRaw),
		ImpedanceMOhm:  float64(impRaw) * ScaleImpedance,
		Channel:        chanRaw & channelIndexMask,
		RelaxTimer:     chanRaw&0x2000 != 0,
		ChargeTimer:    chanRaw&0x4000 != 0,
		CurrentRamp:    chanRaw&0x8000 != 0,
		ChannelRawWord: chanRaw,
	}, nil
}
