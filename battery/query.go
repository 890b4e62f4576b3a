package battery

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"batterycode-go/errcode"
)

// Fixed identity of the pack.
const (
	uniqueIDPrefix   = "OP7PPBATTERY"
	uniqueIDSuffix   = 2333
	manufactureName  = "ONEPLUS"
	deviceName       = "BLPA33"
	serialNumber     = 2333
	manufactureDay   = 1
	manufactureMonth = 1
	manufactureYear  = 2024
)

var chemistryLION = [4]byte{'L', 'I', 'O', 'N'}

const staticCapabilities = CapSystemBattery |
	CapSetChargeSupported |
	CapSetDischargeSupported |
	CapSetChargingSourceSupported |
	CapSetChargerIDSupported

// QueryInformation composes the answer for level and copies its wire form
// into buf. On success n is the encoded length. If buf is nil or shorter
// than the result, it fails with BufferTooSmall and n still reports the
// required length; buf is left untouched. Any other failure returns n == 0.
func (m *Miniclass) QueryInformation(tag uint32, level InformationLevel, atRate int32, buf []byte) (n int, err error) {
	const op = "query_information"
	if err := m.enter(op, tag); err != nil {
		return 0, err
	}

	res, err := m.compose(op, level, atRate)
	if err != nil {
		return 0, m.exit(op, err)
	}
	n = res.Size()
	if n <= 0 {
		panic("battery: result without length for " + level.String())
	}
	if buf == nil || len(buf) < n {
		return n, m.exit(op, errcode.New(errcode.BufferTooSmall, op,
			"need "+strconv.Itoa(n)+" bytes, have "+strconv.Itoa(len(buf))))
	}
	res.put(buf[:n])
	return n, m.exit(op, nil)
}

// Information is the typed form of QueryInformation.
func (m *Miniclass) Information(tag uint32, level InformationLevel, atRate int32) (Result, error) {
	const op = "information"
	if err := m.enter(op, tag); err != nil {
		return nil, err
	}
	res, err := m.compose(op, level, atRate)
	return res, m.exit(op, err)
}

// compose dispatches on level. Callers hold the guard.
func (m *Miniclass) compose(op string, level InformationLevel, atRate int32) (Result, error) {
	m.log.WithFields(logrus.Fields{"op": op, "level": level.String()}).Debug("query for information level")

	switch level {
	case LevelStaticInformation:
		return m.staticInfo(op)
	case LevelEstimatedTime:
		return m.estimatedTime(op, atRate)
	case LevelUniqueID:
		return m.identity(LevelUniqueID, uniqueIDPrefix+strconv.Itoa(uniqueIDSuffix)), nil
	case LevelManufactureName:
		return m.identity(LevelManufactureName, manufactureName), nil
	case LevelDeviceName:
		return m.identity(LevelDeviceName, deviceName), nil
	case LevelSerialNumber:
		return m.identity(LevelSerialNumber, strconv.Itoa(serialNumber)), nil
	case LevelManufactureDate:
		return ManufactureDate{Day: manufactureDay, Month: manufactureMonth, Year: manufactureYear}, nil
	case LevelGranularityInformation:
		raw, err := m.read(op, regPercentage)
		if err != nil {
			return nil, err
		}
		rs := ReportingScale{Granularity: 1, Capacity: reportingCapacity(raw)}
		m.log.WithFields(logrus.Fields{"capacity": rs.Capacity, "granularity": rs.Granularity}).Debug("reporting scale")
		return rs, nil
	case LevelTemperature:
		raw, err := m.read(op, regTemperature)
		if err != nil {
			return nil, err
		}
		m.log.WithField("temperature", raw).Debug("battery temperature")
		return Temperature{DeciKelvin: uint32(raw)}, nil
	default:
		return nil, errcode.New(errcode.InvalidParameter, op, "unsupported level "+strconv.FormatUint(uint64(level), 10))
	}
}

func (m *Miniclass) staticInfo(op string) (Result, error) {
	info := StaticInfo{
		Capabilities: staticCapabilities,
		Technology:   TechnologyRechargeable,
		Chemistry:    chemistryLION,
		CriticalBias: 0,
	}

	raw, err := m.read(op, regDesignCapacity)
	if err != nil {
		return nil, err
	}
	info.DesignedCapacity = capacityFromRaw(raw)

	raw, err = m.read(op, regFullCharge)
	if err != nil {
		return nil, err
	}
	info.FullChargedCapacity = capacityFromRaw(raw)
	info.DefaultAlert1, info.DefaultAlert2 = AlertThresholds(info.FullChargedCapacity)

	raw, err = m.read(op, regCycleCount)
	if err != nil {
		return nil, err
	}
	info.CycleCount = uint32(raw)

	m.log.WithFields(logrus.Fields{
		"capabilities": uint32(info.Capabilities),
		"technology":   info.Technology,
		"chemistry":    string(info.Chemistry[:]),
		"designed":     info.DesignedCapacity,
		"full":         info.FullChargedCapacity,
		"alert1":       info.DefaultAlert1,
		"alert2":       info.DefaultAlert2,
		"critical":     info.CriticalBias,
		"cycles":       info.CycleCount,
	}).Debug("battery information")
	return info, nil
}

func (m *Miniclass) estimatedTime(op string, atRate int32) (Result, error) {
	if atRate != 0 {
		m.log.WithField("at_rate", atRate).Debug("estimated time unknown for non-zero rate")
		return EstimatedTime{}, nil
	}

	flags, err := m.read(op, regFlags)
	if err != nil {
		return nil, err
	}
	if byte(flags)&etaFlags == 0 {
		m.log.Debug("estimated time unknown: not discharging")
		return EstimatedTime{}, nil
	}

	raw, err := m.read(op, regETA)
	if err != nil {
		return nil, err
	}
	secs, ok := etaSeconds(raw)
	if ok {
		m.log.WithField("seconds", secs).Debug("estimated time")
	}
	return EstimatedTime{Seconds: secs, Known: ok}, nil
}

func (m *Miniclass) identity(level InformationLevel, s string) Result {
	m.log.WithFields(logrus.Fields{"level": level.String(), "value": s}).Debug("identity string")
	return IdentityString{Of: level, Value: s}
}
