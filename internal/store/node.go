package store

import (
	"bms-gateway/internal/protocol/ifsbms"
)

// NodeState is the per-node image of the most recent valid sample of every
// field, grouped by origin frame, plus receive bookkeeping. Slots live for
// the whole process; a reset zeroes the record in place.
type NodeState struct {
	Basic    ifsbms.BasicData
	MinCells ifsbms.MinCellData
	MaxCells ifsbms.MaxCellData
	SOH      ifsbms.SOHData
	Temps    ifsbms.TemperatureData
	Limits   ifsbms.LimitsData
	Mux      ifsbms.MuxRecord
	Raw1B0   [8]byte
	NMTState uint8

	Seen            bool
	LastUpdateMs    int64
	CommunicationOK bool
	PacketsReceived uint32
	ParseErrors     uint32
	FrameCounts     [ifsbms.FrameTypeCount]uint32
	FrameSeenMs     [ifsbms.FrameTypeCount]int64
}
