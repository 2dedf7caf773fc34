package usecase

// NodeSnapshot is the compact telemetry event published after a basic
// frame commits. One event per 0x190 frame, keyed by node id.
type NodeSnapshot struct {
	NodeID            uint8   `json:"node_id"`
	PackVoltage       float64 `json:"pack_voltage_v"`
	PackCurrent       float64 `json:"pack_current_a"`
	RemainingEnergyWh float64 `json:"remaining_energy_wh"`
	SOC               uint8   `json:"soc_pct"`
	SOH               float64 `json:"soh_pct"`
	CellMinVoltage    float64 `json:"cell_min_v"`
	CellMaxVoltage    float64 `json:"cell_max_v"`
	TempMax           int     `json:"temp_max_c"`
	ErrorByte         uint8   `json:"error_byte"`
	TimestampMs       int64   `json:"ts_ms"`
}

// MQPayload wraps a snapshot with a type tag for consumers that multiplex
// several event kinds on one topic.
type MQPayload struct {
	Type string      `json:"type"`
	Node uint8       `json:"node"`
	Data interface{} `json:"data"`
}
