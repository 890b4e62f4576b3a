package bq27541

import (
	"errors"

	"tinygo.org/x/drivers"
)

var ErrAddress = errors.New("bq27541: address must be a 7-bit value")

// Driver configuration.
type Config struct {
	Address uint16
}

// DefaultConfig returns the strapped address.
func DefaultConfig() Config {
	return Config{Address: AddressDefault}
}

// Validate checks the address fits a 7-bit I2C target.
func (c Config) Validate() error {
	if c.Address == 0 || c.Address > 0x7F {
		return ErrAddress
	}
	return nil
}

// Device represents a BQ27541 on an I²C bus. It is not safe for concurrent
// use; callers serialise access.
type Device struct {
	i2c  drivers.I2C
	addr uint16

	// Fixed buffers to avoid per-call heap allocations.
	w [1]byte
	r [2]byte
}

// New constructs a Device. It does not touch the bus.
func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{i2c: i2c, addr: addr}
}

func (d *Device) Address() uint16 { return d.addr }

// ReadRegister performs one synchronous 16-bit read at reg. No retries.
func (d *Device) ReadRegister(reg byte) (uint16, error) { return d.readWord(reg) }

// Typed readouts.

func (d *Device) Voltage_mV() (uint16, error)            { return d.readWord(CmdVoltage) }
func (d *Device) Temperature_dK() (uint16, error)        { return d.readWord(CmdTemperature) }
func (d *Device) AverageCurrent_mA() (int16, error)      { return d.readS16(CmdAverageCurrent) }
func (d *Device) RemainingCapacity_mAh() (uint16, error) { return d.readWord(CmdRemainingCapacity) }
func (d *Device) FullChargeCapacity_mAh() (uint16, error) {
	return d.readWord(CmdFullChargeCapacity)
}
func (d *Device) DesignCapacity_mAh() (uint16, error) { return d.readWord(CmdDesignCapacity) }
func (d *Device) CycleCount() (uint16, error)         { return d.readWord(CmdCycleCount) }
func (d *Device) StateOfCharge() (uint16, error)      { return d.readWord(CmdStateOfCharge) }

func (d *Device) Flags() (Flags, error) {
	v, err := d.readWord(CmdFlags)
	return Flags(v), err
}

// TimeToEmpty_min returns the gauge estimate; ok is false for the 0xFFFF sentinel.
func (d *Device) TimeToEmpty_min() (min uint16, ok bool, err error) {
	v, err := d.readWord(CmdAtRateTimeToEmpty)
	if err != nil {
		return 0, false, err
	}
	return v, v != TimeUnknown, nil
}

// Temperature_mC converts the 0.1 K register to milli-degrees Celsius.
func (d *Device) Temperature_mC() (int32, error) {
	v, err := d.readWord(CmdTemperature)
	if err != nil {
		return 0, err
	}
	return int32(v)*100 - 273150, nil
}
