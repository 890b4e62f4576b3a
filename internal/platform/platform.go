// Package platform opens the I2C transport the fuel gauge sits on.
package platform

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"batterycode-go/drivers/bq27541"
	"batterycode-go/drivers/bq27541/bq27541test"
	"batterycode-go/internal/config"
)

// I2C adapts a periph bus to the tinygo driver Tx shape.
type I2C struct {
	bus i2c.Bus
}

func NewI2C(bus i2c.Bus) I2C { return I2C{bus: bus} }

func (s I2C) Tx(addr uint16, w, r []byte) error {
	return s.bus.Tx(addr, w, r)
}

// Open returns the transport for cfg. In sim mode it is an emulated gauge
// that slowly discharges as it is polled.
func Open(cfg config.SensorConfig, log logrus.FieldLogger) (drivers.I2C, io.Closer, error) {
	if cfg.Sim {
		g := bq27541test.NewDefault()
		g.SetAddress(cfg.Address)
		Simulate(g)
		log.WithField("address", fmt.Sprintf("0x%02X", cfg.Address)).Info("using simulated fuel gauge")
		return g, nopCloser{}, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", cfg.Bus, err)
	}
	log.WithFields(logrus.Fields{
		"bus":     bus.String(),
		"address": fmt.Sprintf("0x%02X", cfg.Address),
	}).Info("opened I2C bus")
	return NewI2C(bus), bus, nil
}

// ErrNoDevice is returned by Probe when nothing answers at the address.
var ErrNoDevice = errors.New("platform: no fuel gauge at address")

// Probe performs one flags read to confirm a gauge is present.
func Probe(d *bq27541.Device) error {
	if _, err := d.Flags(); err != nil {
		return fmt.Errorf("%w 0x%02X: %v", ErrNoDevice, d.Address(), err)
	}
	return nil
}

// Simulate installs a discharge model on g: every remaining-capacity read
// drops one unit and the time-to-empty estimate follows it. Below the
// alert level the SOC1 flag is raised; at zero SOCF too.
func Simulate(g *bq27541test.Gauge) {
	g.OnRead(func(reg byte) {
		if reg != bq27541.CmdRemainingCapacity {
			return
		}
		rem := g.Get(bq27541.CmdRemainingCapacity)
		if rem > 0 {
			rem--
		}
		g.Set(bq27541.CmdRemainingCapacity, rem)
		g.Set(bq27541.CmdNominalAvailCap, rem)

		full := g.Get(bq27541.CmdFullChargeCapacity)
		flags := bq27541.Flags(g.Get(bq27541.CmdFlags)) | bq27541.FlagDSG
		if full > 0 && uint32(rem)*100 < uint32(full)*7 {
			flags |= bq27541.FlagSOC1
		}
		if rem == 0 {
			flags |= bq27541.FlagSOCF
		}
		g.Set(bq27541.CmdFlags, uint16(flags))

		// 420 mA average draw
		g.Set(bq27541.CmdAtRateTimeToEmpty, uint16(uint32(rem)*60/420))
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
