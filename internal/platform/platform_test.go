package platform

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"batterycode-go/drivers/bq27541"
	"batterycode-go/drivers/bq27541/bq27541test"
	"batterycode-go/internal/config"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestI2C_DelegatesToPeriphBus(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x55, W: []byte{bq27541.CmdVoltage}, R: []byte{0x0A, 0x0F}},
		},
	}
	d := bq27541.New(NewI2C(pb), bq27541.Config{})
	mv, err := d.Voltage_mV()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0F0A), mv)
	require.NoError(t, pb.Close())
}

func TestOpen_Sim(t *testing.T) {
	bus, closer, err := Open(config.SensorConfig{Address: 0x56, Sim: true}, quiet())
	require.NoError(t, err)
	defer closer.Close()

	d := bq27541.New(bus, bq27541.Config{Address: 0x56})
	require.NoError(t, Probe(d))

	other := bq27541.New(bus, bq27541.Config{})
	assert.ErrorIs(t, Probe(other), ErrNoDevice)
}

func TestSimulate_Discharges(t *testing.T) {
	g := bq27541test.New()
	g.Set(bq27541.CmdFullChargeCapacity, 1000)
	g.Set(bq27541.CmdRemainingCapacity, 71)
	Simulate(g)
	d := bq27541.New(g, bq27541.Config{})

	rem, err := d.RemainingCapacity_mAh()
	require.NoError(t, err)
	assert.Equal(t, uint16(70), rem)

	f, err := d.Flags()
	require.NoError(t, err)
	assert.True(t, f.Has(bq27541.FlagDSG))
	assert.False(t, f.Has(bq27541.FlagSOC1), "70/1000 is exactly 7%")

	rem, err = d.RemainingCapacity_mAh()
	require.NoError(t, err)
	assert.Equal(t, uint16(69), rem)
	f, err = d.Flags()
	require.NoError(t, err)
	assert.True(t, f.Has(bq27541.FlagSOC1))
	assert.False(t, f.Has(bq27541.FlagSOCF))

	g.Set(bq27541.CmdRemainingCapacity, 1)
	_, err = d.RemainingCapacity_mAh()
	require.NoError(t, err)
	f, err = d.Flags()
	require.NoError(t, err)
	assert.True(t, f.Has(bq27541.FlagSOCF))

	rem, err = d.RemainingCapacity_mAh()
	require.NoError(t, err)
	assert.Equal(t, uint16(0), rem, "never wraps below zero")
}
