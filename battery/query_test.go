package battery_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterycode-go/battery"
	"batterycode-go/drivers/bq27541"
	"batterycode-go/errcode"
)

func TestStaticInformation(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Set(bq27541.CmdDesignCapacity, 1650)
	g.Set(bq27541.CmdFullChargeCapacity, 1600)
	g.Set(bq27541.CmdCycleCount, 42)

	buf := make([]byte, 64)
	n, err := m.QueryInformation(tag, battery.LevelStaticInformation, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 36, n)
	require.Equal(t, []byte{bq27541.CmdDesignCapacity, bq27541.CmdFullChargeCapacity, bq27541.CmdCycleCount}, g.Reads())

	info, ok := battery.DecodeStaticInfo(buf[:n])
	require.True(t, ok)
	assert.Equal(t, battery.CapSystemBattery|battery.CapSetChargeSupported|battery.CapSetDischargeSupported|
		battery.CapSetChargingSourceSupported|battery.CapSetChargerIDSupported, info.Capabilities)
	assert.False(t, info.Capabilities.Has(battery.CapCapacityRelative))
	assert.Equal(t, uint8(1), info.Technology)
	assert.Equal(t, [4]byte{'L', 'I', 'O', 'N'}, info.Chemistry)
	assert.Equal(t, uint32(1650*2*9), info.DesignedCapacity)
	assert.Equal(t, uint32(1600*2*9), info.FullChargedCapacity)
	assert.Equal(t, uint32(1600*2*9*7/100), info.DefaultAlert1)
	assert.Equal(t, uint32(1600*2*9*9/100), info.DefaultAlert2)
	assert.Zero(t, info.CriticalBias)
	assert.Equal(t, uint32(42), info.CycleCount)
}

func TestStaticInformationAbortsOnBusFailure(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Fail(bq27541.CmdFullChargeCapacity, nil)

	buf := bytes.Repeat([]byte{0xAA}, 64)
	n, err := m.QueryInformation(tag, battery.LevelStaticInformation, 0, buf)
	require.Equal(t, errcode.TransferFailure, errcode.Of(err))
	require.Zero(t, n)
	require.Equal(t, bytes.Repeat([]byte{0xAA}, 64), buf)
	require.Equal(t, []byte{bq27541.CmdDesignCapacity, bq27541.CmdFullChargeCapacity}, g.Reads(),
		"cycle count must not be read after a failure")
}

func TestEstimatedTimeNonZeroRateSkipsBus(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Fail(bq27541.CmdFlags, nil)
	g.Fail(bq27541.CmdAtRateTimeToEmpty, nil)

	for _, rate := range []int32{-500, 1, 2000} {
		res, err := m.Information(tag, battery.LevelEstimatedTime, rate)
		require.NoError(t, err)
		require.Equal(t, battery.EstimatedTime{}, res)
	}
	require.Empty(t, g.Reads())

	buf := make([]byte, 4)
	n, err := m.QueryInformation(tag, battery.LevelEstimatedTime, -1, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, battery.UnknownTime, binary.LittleEndian.Uint32(buf))
}

func TestEstimatedTime(t *testing.T) {
	cases := []struct {
		name  string
		flags uint16
		eta   uint16
		want  battery.EstimatedTime
		reads []byte
	}{
		{"not discharging", uint16(bq27541.FlagCHG), 120, battery.EstimatedTime{}, []byte{bq27541.CmdFlags}},
		{"high byte only", uint16(bq27541.FlagFC), 120, battery.EstimatedTime{}, []byte{bq27541.CmdFlags}},
		{"discharging", uint16(bq27541.FlagDSG), 120, battery.EstimatedTime{Seconds: 7200, Known: true},
			[]byte{bq27541.CmdFlags, bq27541.CmdAtRateTimeToEmpty}},
		{"socf", uint16(bq27541.FlagSOCF), 3, battery.EstimatedTime{Seconds: 180, Known: true},
			[]byte{bq27541.CmdFlags, bq27541.CmdAtRateTimeToEmpty}},
		{"sentinel", uint16(bq27541.FlagDSG), 0xFFFF, battery.EstimatedTime{},
			[]byte{bq27541.CmdFlags, bq27541.CmdAtRateTimeToEmpty}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, g, tag := newBattery(t)
			g.Set(bq27541.CmdFlags, c.flags)
			g.Set(bq27541.CmdAtRateTimeToEmpty, c.eta)

			res, err := m.Information(tag, battery.LevelEstimatedTime, 0)
			require.NoError(t, err)
			require.Equal(t, c.want, res)
			require.Equal(t, c.reads, g.Reads())
		})
	}
}

func TestEstimatedTimeWireEncoding(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Set(bq27541.CmdFlags, uint16(bq27541.FlagDSG))
	g.Set(bq27541.CmdAtRateTimeToEmpty, 120)

	buf := make([]byte, 4)
	_, err := m.QueryInformation(tag, battery.LevelEstimatedTime, 0, buf)
	require.NoError(t, err)
	require.Equal(t, uint32(7200), binary.LittleEndian.Uint32(buf))

	g.Set(bq27541.CmdAtRateTimeToEmpty, 0xFFFF)
	_, err = m.QueryInformation(tag, battery.LevelEstimatedTime, 0, buf)
	require.NoError(t, err)
	require.Equal(t, battery.UnknownTime, binary.LittleEndian.Uint32(buf))
}

func TestIdentityStrings(t *testing.T) {
	cases := map[battery.InformationLevel]string{
		battery.LevelUniqueID:        "OP7PPBATTERY2333",
		battery.LevelManufactureName: "ONEPLUS",
		battery.LevelDeviceName:      "BLPA33",
		battery.LevelSerialNumber:    "2333",
	}
	m, g, tag := newBattery(t)
	for level, want := range cases {
		buf := make([]byte, battery.MaxStringSize*2)
		n, err := m.QueryInformation(tag, level, 0, buf)
		require.NoError(t, err, level.String())
		require.Equal(t, (len(want)+1)*2, n, "length includes the terminator")
		require.Equal(t, []byte{0, 0}, buf[n-2:n])
		require.Equal(t, want, battery.DecodeString(buf[:n]))
	}
	require.Empty(t, g.Reads(), "identity strings never touch the bus")
}

func TestManufactureDate(t *testing.T) {
	m, g, tag := newBattery(t)
	buf := make([]byte, 4)
	n, err := m.QueryInformation(tag, battery.LevelManufactureDate, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 1, 0xE8, 0x07}, buf) // 2024 = 0x07E8
	require.Empty(t, g.Reads())
}

func TestGranularityInformation(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Set(0x10, 100)

	res, err := m.Information(tag, battery.LevelGranularityInformation, 0)
	require.NoError(t, err)
	require.Equal(t, battery.ReportingScale{Granularity: 1, Capacity: 3600}, res)

	buf := make([]byte, 8)
	n, err := m.QueryInformation(tag, battery.LevelGranularityInformation, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[0:]))
	require.Equal(t, uint32(3600), binary.LittleEndian.Uint32(buf[4:]))
}

func TestTemperatureIsRaw(t *testing.T) {
	m, g, tag := newBattery(t)
	g.Set(bq27541.CmdTemperature, 2982)

	buf := make([]byte, 4)
	n, err := m.QueryInformation(tag, battery.LevelTemperature, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, uint32(2982), binary.LittleEndian.Uint32(buf))
}

func TestUnknownLevelRejected(t *testing.T) {
	m, g, tag := newBattery(t)
	buf := bytes.Repeat([]byte{0x5A}, 64)

	for _, level := range []battery.InformationLevel{9, 42, 0xFFFFFFFF} {
		n, err := m.QueryInformation(tag, level, 0, buf)
		require.Equal(t, errcode.InvalidParameter, errcode.Of(err))
		require.Zero(t, n)
	}
	require.Equal(t, bytes.Repeat([]byte{0x5A}, 64), buf)
	require.Empty(t, g.Reads())

	res, err := m.Information(tag, 9, 0)
	require.Nil(t, res)
	require.ErrorIs(t, err, errcode.InvalidParameter)
}

func TestBufferTooSmallReportsRequiredLength(t *testing.T) {
	m, _, tag := newBattery(t)

	small := bytes.Repeat([]byte{0x11}, 35)
	n, err := m.QueryInformation(tag, battery.LevelStaticInformation, 0, small)
	require.Equal(t, errcode.BufferTooSmall, errcode.Of(err))
	require.Equal(t, 36, n)
	require.Equal(t, bytes.Repeat([]byte{0x11}, 35), small)

	n, err = m.QueryInformation(tag, battery.LevelDeviceName, 0, nil)
	require.ErrorIs(t, err, errcode.BufferTooSmall)
	require.Equal(t, 14, n)

	// Retrying with the reported size succeeds.
	buf := make([]byte, n)
	_, err = m.QueryInformation(tag, battery.LevelDeviceName, 0, buf)
	require.NoError(t, err)
	require.Equal(t, "BLPA33", battery.DecodeString(buf))
}

func TestResultSizes(t *testing.T) {
	for _, r := range []battery.Result{
		battery.StaticInfo{},
		battery.EstimatedTime{},
		battery.IdentityString{Of: battery.LevelDeviceName},
		battery.ManufactureDate{},
		battery.ReportingScale{},
		battery.Temperature{},
	} {
		require.Positive(t, r.Size(), r.Level().String())
		require.Len(t, battery.MarshalResult(r), r.Size())
	}
}

func TestIdentityStringIsBounded(t *testing.T) {
	long := battery.IdentityString{Of: battery.LevelDeviceName, Value: string(bytes.Repeat([]byte{'x'}, 400))}
	require.Equal(t, battery.MaxStringSize*2, long.Size())
	b := battery.MarshalResult(long)
	require.Equal(t, []byte{0, 0}, b[len(b)-2:])
}

func TestLevelNames(t *testing.T) {
	for l := battery.LevelStaticInformation; l <= battery.LevelSerialNumber; l++ {
		require.True(t, l.Valid())
		got, ok := battery.ParseInformationLevel(l.String())
		require.True(t, ok)
		require.Equal(t, l, got)
	}
	require.False(t, battery.InformationLevel(9).Valid())
	_, ok := battery.ParseInformationLevel("bogus")
	require.False(t, ok)

	s, ok := battery.ParseSetLevel("charger_id")
	require.True(t, ok)
	require.Equal(t, battery.LevelChargerID, s)

	// decimal values pass through unvalidated
	l, ok := battery.ParseInformationLevel("42")
	require.True(t, ok)
	require.Equal(t, battery.InformationLevel(42), l)
	s, ok = battery.ParseSetLevel("2")
	require.True(t, ok)
	require.Equal(t, battery.LevelDischarge, s)
	_, ok = battery.ParseSetLevel("-1")
	require.False(t, ok)
}
