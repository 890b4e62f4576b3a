package battery

import "strconv"

// InformationLevel selects what QueryInformation returns. Values match the
// battery class enumeration.
type InformationLevel uint32

const (
	LevelStaticInformation InformationLevel = iota
	LevelGranularityInformation
	LevelTemperature
	LevelEstimatedTime
	LevelDeviceName
	LevelManufactureDate
	LevelManufactureName
	LevelUniqueID
	LevelSerialNumber
)

var informationLevelNames = [...]string{
	LevelStaticInformation:      "static_information",
	LevelGranularityInformation: "granularity_information",
	LevelTemperature:            "temperature",
	LevelEstimatedTime:          "estimated_time",
	LevelDeviceName:             "device_name",
	LevelManufactureDate:        "manufacture_date",
	LevelManufactureName:        "manufacture_name",
	LevelUniqueID:               "unique_id",
	LevelSerialNumber:           "serial_number",
}

func (l InformationLevel) String() string {
	if int(l) < len(informationLevelNames) {
		return informationLevelNames[l]
	}
	return "unknown"
}

// Valid reports whether l is one of the enumerated levels.
func (l InformationLevel) Valid() bool { return int(l) < len(informationLevelNames) }

// ParseInformationLevel maps a level name, or a decimal value, back to its
// value. Decimal values outside the enumeration pass through so the
// miniclass can reject them itself.
func ParseInformationLevel(s string) (InformationLevel, bool) {
	for i, n := range informationLevelNames {
		if n == s {
			return InformationLevel(i), true
		}
	}
	n, ok := parseDecimal(s)
	return InformationLevel(n), ok
}

// SetLevel selects the SetInformation command.
type SetLevel uint32

const (
	LevelCriticalBias SetLevel = iota
	LevelCharge
	LevelDischarge
	LevelChargingSource
	LevelChargerID
	LevelChargerStatus
)

var setLevelNames = [...]string{
	LevelCriticalBias:   "critical_bias",
	LevelCharge:         "charge",
	LevelDischarge:      "discharge",
	LevelChargingSource: "charging_source",
	LevelChargerID:      "charger_id",
	LevelChargerStatus:  "charger_status",
}

func (l SetLevel) String() string {
	if int(l) < len(setLevelNames) {
		return setLevelNames[l]
	}
	return "unknown"
}

// ParseSetLevel is ParseInformationLevel for set levels.
func ParseSetLevel(s string) (SetLevel, bool) {
	for i, n := range setLevelNames {
		if n == s {
			return SetLevel(i), true
		}
	}
	n, ok := parseDecimal(s)
	return SetLevel(n), ok
}

func parseDecimal(s string) (uint32, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Capabilities advertised in StaticInfo.
type Capabilities uint32

const (
	CapSetChargeSupported         Capabilities = 0x00000001
	CapSetDischargeSupported      Capabilities = 0x00000002
	CapSetChargingSourceSupported Capabilities = 0x00000004
	CapSetChargerIDSupported      Capabilities = 0x00000008
	CapSemiAggregate              Capabilities = 0x10000000
	CapIsShortTerm                Capabilities = 0x20000000
	CapCapacityRelative           Capabilities = 0x40000000
	CapSystemBattery              Capabilities = 0x80000000
)

func (c Capabilities) Has(flag Capabilities) bool { return c&flag != 0 }

var capabilityNames = []struct {
	c Capabilities
	n string
}{
	{CapSystemBattery, "system_battery"},
	{CapCapacityRelative, "capacity_relative"},
	{CapIsShortTerm, "is_short_term"},
	{CapSemiAggregate, "semi_aggregate"},
	{CapSetChargeSupported, "set_charge"},
	{CapSetDischargeSupported, "set_discharge"},
	{CapSetChargingSourceSupported, "set_charging_source"},
	{CapSetChargerIDSupported, "set_charger_id"},
}

// Names lists the set flags, most significant first.
func (c Capabilities) Names() []string {
	var out []string
	for _, cn := range capabilityNames {
		if c.Has(cn.c) {
			out = append(out, cn.n)
		}
	}
	return out
}

// PowerState bits of a Status.
type PowerState uint32

const (
	PowerOnLine      PowerState = 0x00000001
	PowerDischarging PowerState = 0x00000002
	PowerCharging    PowerState = 0x00000004
	PowerCritical    PowerState = 0x00000008
)

func (p PowerState) Has(flag PowerState) bool { return p&flag != 0 }

// Wire sentinels.
const (
	UnknownTime     uint32 = 0xFFFFFFFF
	UnknownCapacity uint32 = 0xFFFFFFFF
	UnknownVoltage  uint32 = 0xFFFFFFFF
	UnknownRate     int32  = -0x80000000

	// MaxStringSize bounds identity strings in UTF-16 code units,
	// terminator included.
	MaxStringSize = 128
)

// Technology codes.
const (
	TechnologyPrimary      uint8 = 0
	TechnologyRechargeable uint8 = 1
)
