// Package bq27541 provides constants for the standard command addresses and
// flag bits of the TI BQ27541 single-cell fuel gauge.
package bq27541

const (
	// 7-bit I2C address.
	AddressDefault = 0x55

	// --- Standard commands (16-bit little-endian word registers) ---

	CmdControl            = 0x00 // R/W
	CmdAtRate             = 0x02 // R/W, mA
	CmdAtRateTimeToEmpty  = 0x04 // R, minutes (0xFFFF = not discharging)
	CmdTemperature        = 0x06 // R, 0.1 K
	CmdVoltage            = 0x08 // R, mV
	CmdFlags              = 0x0A // R
	CmdNominalAvailCap    = 0x0C // R, mAh; reported as the status rate
	CmdFullAvailCap       = 0x0E // R, mAh
	CmdRemainingCapacity  = 0x10 // R, mAh
	CmdFullChargeCapacity = 0x12 // R, mAh
	CmdAverageCurrent     = 0x14 // R, mA (signed)
	CmdCycleCount         = 0x2A // R
	CmdStateOfCharge      = 0x2C // R, %
	CmdDesignCapacity     = 0x3C // R, mAh

	// AtRateTimeToEmpty sentinel for "no estimate".
	TimeUnknown = 0xFFFF
)

// Flags (CmdFlags) bits.
type Flags uint16

const (
	FlagDSG    Flags = 1 << 0 // discharging
	FlagSOCF   Flags = 1 << 1 // final state-of-charge threshold reached
	FlagSOC1   Flags = 1 << 2 // first state-of-charge threshold reached
	FlagBatDet Flags = 1 << 3
	FlagWaitID Flags = 1 << 4
	FlagOCVGD  Flags = 1 << 5
	FlagCHG    Flags = 1 << 8 // fast charging allowed
	FlagFC     Flags = 1 << 9 // full charge
	FlagXCHG   Flags = 1 << 10
	FlagCHGINH Flags = 1 << 11
	FlagOTD    Flags = 1 << 14
	FlagOTC    Flags = 1 << 15
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }
