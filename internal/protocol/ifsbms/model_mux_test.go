package ifsbms

import "testing"

// The selector space is 0x00..0x35: the table must carry exactly 54
// entries, each with a name, and only the six reserved selectors may lack
// a destination slot.
func TestMuxTableComplete(t *testing.T) {
	if len(muxTable) != 54 {
		t.Fatalf("mux table has %d entries, want 54", len(muxTable))
	}
	reserved := map[uint8]bool{0x08: true, 0x09: true, 0x0A: true, 0x0B: true, 0x11: true, 0x12: true}
	for sel := 0; sel < MuxSelectorCount; sel++ {
		e := muxTable[sel]
		if e.name == "" {
			t.Errorf("selector 0x%02X has no name", sel)
		}
		if reserved[uint8(sel)] {
			if e.apply != nil {
				t.Errorf("reserved selector 0x%02X has a destination", sel)
			}
		} else if e.apply == nil {
			t.Errorf("selector 0x%02X (%s) has no destination", sel, e.name)
		}
	}
}

func TestParseMuxFrame(t *testing.T) {
	f, err := ParseMuxFrame(1, []byte{0, 0, 0, 0, 0, 0x17, 0x2C, 0x01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Selector != MuxTimeToFullCharge || f.Value != 300 {
		t.Fatalf("got selector 0x%02X value %d", f.Selector, f.Value)
	}
}

func TestMuxApplySerialNumber(t *testing.T) {
	var r MuxRecord
	if !r.Apply(MuxSerialNumber0, 0x1234) {
		t.Fatal("selector 0x00 reported unknown")
	}
	if !r.Apply(MuxSerialNumber1, 0x5678) {
		t.Fatal("selector 0x01 reported unknown")
	}
	if r.SerialNumber32() != 0x56781234 {
		t.Fatalf("serial = 0x%08X, want 0x56781234", r.SerialNumber32())
	}
	if r.MuxType != MuxSerialNumber1 || r.MuxValue != 0x5678 {
		t.Fatalf("raw pair = (0x%02X, 0x%04X)", r.MuxType, r.MuxValue)
	}
}

func TestMuxApplyScaledFields(t *testing.T) {
	var r MuxRecord
	r.Apply(MuxBallancerTempMax, 0x0185) // 389 raw = 38.9 degC
	if r.BallancerTempMax != 38.9 {
		t.Errorf("ballancer temp = %v", r.BallancerTempMax)
	}
	r.Apply(MuxLtcTempMax, 0xFFF6) // -10 raw = -1.0 degC
	if r.LtcTempMax != -1.0 {
		t.Errorf("ltc temp = %v", r.LtcTempMax)
	}
	r.Apply(MuxInletOutletTemp, 0x2D1E) // inlet 30, outlet 45
	if r.InletTemp != 30 || r.OutletTemp != 45 {
		t.Errorf("inlet/outlet = %d/%d", r.InletTemp, r.OutletTemp)
	}
	r.Apply(MuxFullyChargedOn, 985)
	if r.FullyChargedOn != 98.5 {
		t.Errorf("fully charged on = %v", r.FullyChargedOn)
	}
}

func TestMuxApplyReservedAndUnknown(t *testing.T) {
	var r MuxRecord
	// Reserved: accepted, raw only.
	if !r.Apply(0x08, 0xBEEF) {
		t.Fatal("reserved selector reported unknown")
	}
	if r.MuxType != 0x08 || r.MuxValue != 0xBEEF {
		t.Fatalf("raw pair not stored")
	}
	before := r
	before.MuxType, before.MuxValue = 0, 0
	var zero MuxRecord
	if before != zero {
		t.Fatal("reserved selector modified a typed slot")
	}

	// Out of table: raw only, reported unknown.
	if r.Apply(0x40, 0x0001) {
		t.Fatal("selector 0x40 reported known")
	}
	if r.MuxType != 0x40 || r.MuxValue != 0x0001 {
		t.Fatal("raw pair not stored for unknown selector")
	}
}

func TestMuxEnergyAccumulators(t *testing.T) {
	var r MuxRecord
	r.Apply(MuxChargeEnergy0, 0xE240)
	r.Apply(MuxChargeEnergy1, 0x0001)
	if r.ChargeEnergyWh() != 0x0001E240 { // 123456
		t.Fatalf("charge energy = %d", r.ChargeEnergyWh())
	}
	r.Apply(MuxDischargeEnergy0, 0x0001)
	r.Apply(MuxDischargeEnergy1, 0x0000)
	if r.DischargeEnergyWh() != 1 {
		t.Fatalf("discharge energy = %d", r.DischargeEnergyWh())
	}
}

func TestMuxSelectorName(t *testing.T) {
	if MuxSelectorName(MuxHumidity) != "humidity" {
		t.Errorf("name of 0x10 = %q", MuxSelectorName(MuxHumidity))
	}
	if MuxSelectorName(0x36) != "" {
		t.Errorf("out-of-table selector has a name")
	}
}
