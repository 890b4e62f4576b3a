package battery_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"batterycode-go/battery"
	"batterycode-go/errcode"
)

func TestChargeDischargeBypassPayloadCheck(t *testing.T) {
	m, g, tag := newBattery(t)
	require.NoError(t, m.SetInformationRaw(tag, battery.LevelCharge, nil))
	require.NoError(t, m.SetInformationRaw(tag, battery.LevelDischarge, nil))
	require.NoError(t, m.SetInformationRaw(tag, battery.LevelCharge, []byte{1, 2, 3}))
	require.NoError(t, m.SetInformation(tag, battery.Charge{}))
	require.NoError(t, m.SetInformation(tag, battery.Discharge{}))
	require.Empty(t, g.Reads(), "commands are advisory and never touch the bus")
}

func TestNilPayloadRejected(t *testing.T) {
	m, _, tag := newBattery(t)
	for _, l := range []battery.SetLevel{
		battery.LevelCriticalBias, battery.LevelChargingSource,
		battery.LevelChargerID, battery.LevelChargerStatus,
		battery.SetLevel(99), // nil check precedes the level check
	} {
		err := m.SetInformationRaw(tag, l, nil)
		require.Equal(t, errcode.InvalidParameter, errcode.Of(err), l.String())
	}
	require.ErrorIs(t, m.SetInformation(tag, nil), errcode.InvalidParameter)
}

func TestUnknownSetLevelNotSupported(t *testing.T) {
	m, _, tag := newBattery(t)
	err := m.SetInformationRaw(tag, battery.SetLevel(99), []byte{0, 0, 0, 0})
	require.Equal(t, errcode.NotSupported, errcode.Of(err))
}

func TestShortPayloadRejected(t *testing.T) {
	m, _, tag := newBattery(t)
	require.ErrorIs(t, m.SetInformationRaw(tag, battery.LevelChargingSource, []byte{1, 0, 0, 0}), errcode.InvalidParameter)
	require.ErrorIs(t, m.SetInformationRaw(tag, battery.LevelChargerID, make([]byte, 15)), errcode.InvalidParameter)
	require.ErrorIs(t, m.SetInformationRaw(tag, battery.LevelCriticalBias, []byte{}), errcode.InvalidParameter)
}

func TestTypedCommandsRoundTripThroughWire(t *testing.T) {
	id := uuid.MustParse("6b29fc40-ca47-1067-b31d-00dd010662da")
	cmds := []battery.Command{
		battery.ChargingSource{Type: battery.ChargingSourceUSB, MaxCurrent: 1500},
		battery.CriticalBias{MilliWatts: 250},
		battery.ChargerID{ID: id},
		battery.ChargerStatus{Type: battery.ChargingSourceWireless},
	}
	m, _, tag := newBattery(t)
	for _, c := range cmds {
		payload, err := c.MarshalBinary()
		require.NoError(t, err)

		got, err := battery.DecodeCommand(c.SetLevel(), payload)
		require.NoError(t, err)
		require.Equal(t, c, got)

		require.NoError(t, m.SetInformation(tag, c))
		require.NoError(t, m.SetInformationRaw(tag, c.SetLevel(), payload))
	}
}

func TestChargerIDMixedEndianLayout(t *testing.T) {
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	b, err := battery.ChargerID{ID: id}.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x33, 0x22, 0x11, 0x00,
		0x55, 0x44,
		0x77, 0x66,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
	}, b)
}

func TestChargerStatusIgnoresTrailingBytes(t *testing.T) {
	cmd, err := battery.DecodeCommand(battery.LevelChargerStatus, []byte{1, 0, 0, 0, 0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	require.Equal(t, battery.ChargerStatus{Type: battery.ChargingSourceAC}, cmd)
}
