package types

// ------------------------
// Battery (bq27541 miniclass)
// ------------------------

// BatteryInfo is published retained on battery/<id>/info whenever a new tag
// is observed.
type BatteryInfo struct {
	Tag          uint32   `json:"tag"`
	Capabilities uint32   `json:"capabilities"`
	CapFlags     []string `json:"capability_flags,omitempty"`
	Technology   string   `json:"technology"` // "primary" | "rechargeable"
	Chemistry    string   `json:"chemistry"`

	Designed_mWh    uint32 `json:"designed_mWh"`
	FullCharged_mWh uint32 `json:"full_charged_mWh"`
	Alert1_mWh      uint32 `json:"alert1_mWh"`
	Alert2_mWh      uint32 `json:"alert2_mWh"`
	CriticalBias    uint32 `json:"critical_bias_mWh"`
	CycleCount      uint32 `json:"cycle_count"`

	Granularity_mWh     uint32 `json:"granularity_mWh"`
	GranularityUpTo_mWh uint32 `json:"granularity_capacity_mWh"`
	DeviceName          string `json:"device_name"`
	ManufactureName     string `json:"manufacture_name"`
	SerialNumber        string `json:"serial_number"`
	UniqueID            string `json:"unique_id"`
	ManufactureDate     string `json:"manufacture_date"` // YYYY-MM-DD
	TS                  int64  `json:"ts_ms"`
}

// BatteryStatus is published on battery/<id>/status every poll.
type BatteryStatus struct {
	Tag         uint32 `json:"tag"`
	PowerState  uint32 `json:"power_state"`
	Online      bool   `json:"online"`
	Charging    bool   `json:"charging"`
	Discharging bool   `json:"discharging"`
	Critical    bool   `json:"critical"`
	Capacity    uint32 `json:"capacity_mWh"`
	Voltage     uint32 `json:"voltage_mV"`
	Rate        int32  `json:"rate"`
	// ETA is nil when the gauge reports no estimate.
	ETA       *uint32 `json:"eta_s,omitempty"`
	TempDeciK uint32  `json:"temp_dK"`
	TS        int64   `json:"ts_ms"`
}

// SetRequest is consumed on battery/<id>/set. Payload is the raw wire
// payload for the level; nil is distinct from empty.
type SetRequest struct {
	Tag     uint32 `json:"tag,omitempty"` // 0 means "current tag"
	Level   string `json:"level"`
	Payload []byte `json:"payload"`
}

// SetReply is sent on the request's ReplyTo topic.
type SetReply struct {
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
}
