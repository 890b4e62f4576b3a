package battery

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"batterycode-go/errcode"
)

// Command is a set-information request. The set of implementations is
// closed; each one maps to exactly one SetLevel.
type Command interface {
	SetLevel() SetLevel
	// MarshalBinary encodes the wire payload; nil for Charge and Discharge.
	MarshalBinary() ([]byte, error)
	fields() logrus.Fields
}

// ChargingSourceType identifies what is feeding the charger.
type ChargingSourceType uint32

const (
	ChargingSourceAC       ChargingSourceType = 1
	ChargingSourceUSB      ChargingSourceType = 2
	ChargingSourceWireless ChargingSourceType = 3
)

type Charge struct{}

func (Charge) SetLevel() SetLevel             { return LevelCharge }
func (Charge) MarshalBinary() ([]byte, error) { return nil, nil }
func (Charge) fields() logrus.Fields          { return nil }

type Discharge struct{}

func (Discharge) SetLevel() SetLevel             { return LevelDischarge }
func (Discharge) MarshalBinary() ([]byte, error) { return nil, nil }
func (Discharge) fields() logrus.Fields          { return nil }

type ChargingSource struct {
	Type       ChargingSourceType
	MaxCurrent uint32 // mA
}

func (ChargingSource) SetLevel() SetLevel { return LevelChargingSource }
func (c ChargingSource) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	le.PutUint32(b[0:], uint32(c.Type))
	le.PutUint32(b[4:], c.MaxCurrent)
	return b, nil
}
func (c ChargingSource) fields() logrus.Fields {
	return logrus.Fields{"type": uint32(c.Type), "max_current_mA": c.MaxCurrent}
}

type CriticalBias struct {
	MilliWatts uint32
}

func (CriticalBias) SetLevel() SetLevel { return LevelCriticalBias }
func (c CriticalBias) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	le.PutUint32(b, c.MilliWatts)
	return b, nil
}
func (c CriticalBias) fields() logrus.Fields { return logrus.Fields{"critical_bias_mW": c.MilliWatts} }

type ChargerID struct {
	ID uuid.UUID
}

func (ChargerID) SetLevel() SetLevel { return LevelChargerID }
func (c ChargerID) MarshalBinary() ([]byte, error) {
	b := make([]byte, 16)
	putGUID(b, c.ID)
	return b, nil
}
func (c ChargerID) fields() logrus.Fields { return logrus.Fields{"charger_id": c.ID.String()} }

type ChargerStatus struct {
	Type ChargingSourceType
}

func (ChargerStatus) SetLevel() SetLevel { return LevelChargerStatus }
func (c ChargerStatus) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	le.PutUint32(b, uint32(c.Type))
	return b, nil
}
func (c ChargerStatus) fields() logrus.Fields { return logrus.Fields{"type": uint32(c.Type)} }

// DecodeCommand turns a wire payload into its typed command. Charge and
// Discharge ignore the payload. Every other level needs a non-nil payload
// before the level itself is checked.
func DecodeCommand(level SetLevel, payload []byte) (Command, error) {
	const op = "decode_command"
	switch level {
	case LevelCharge:
		return Charge{}, nil
	case LevelDischarge:
		return Discharge{}, nil
	}
	if payload == nil {
		return nil, errcode.New(errcode.InvalidParameter, op, "nil payload")
	}
	short := func(want int) error {
		return errcode.New(errcode.InvalidParameter, op,
			level.String()+" payload needs "+strconv.Itoa(want)+" bytes, got "+strconv.Itoa(len(payload)))
	}
	switch level {
	case LevelChargingSource:
		if len(payload) < 8 {
			return nil, short(8)
		}
		return ChargingSource{
			Type:       ChargingSourceType(le.Uint32(payload[0:])),
			MaxCurrent: le.Uint32(payload[4:]),
		}, nil
	case LevelCriticalBias:
		if len(payload) < 4 {
			return nil, short(4)
		}
		return CriticalBias{MilliWatts: le.Uint32(payload)}, nil
	case LevelChargerID:
		if len(payload) < 16 {
			return nil, short(16)
		}
		return ChargerID{ID: getGUID(payload)}, nil
	case LevelChargerStatus:
		if len(payload) < 4 {
			return nil, short(4)
		}
		return ChargerStatus{Type: ChargingSourceType(le.Uint32(payload))}, nil
	default:
		return nil, errcode.New(errcode.NotSupported, op, "set level "+strconv.FormatUint(uint64(level), 10))
	}
}

// SetInformation acknowledges cmd. Nothing is actuated here.
func (m *Miniclass) SetInformation(tag uint32, cmd Command) error {
	const op = "set_information"
	if err := m.enter(op, tag); err != nil {
		return err
	}
	if cmd == nil {
		return m.exit(op, errcode.New(errcode.InvalidParameter, op, "nil command"))
	}
	m.acknowledge(cmd)
	return m.exit(op, nil)
}

// SetInformationRaw is the wire form of SetInformation.
func (m *Miniclass) SetInformationRaw(tag uint32, level SetLevel, payload []byte) error {
	const op = "set_information"
	if err := m.enter(op, tag); err != nil {
		return err
	}
	cmd, err := DecodeCommand(level, payload)
	if err != nil {
		return m.exit(op, err)
	}
	m.acknowledge(cmd)
	return m.exit(op, nil)
}

func (m *Miniclass) acknowledge(cmd Command) {
	m.log.WithFields(cmd.fields()).WithField("level", cmd.SetLevel().String()).Info("set information acknowledged")
}

// GUIDs travel in the mixed-endian layout: the first three groups are
// little-endian, the last eight bytes are in order.

func getGUID(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])
	return u
}

func putGUID(b []byte, u uuid.UUID) {
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:16], u[8:])
}
