package battery

import (
	"github.com/sirupsen/logrus"
)

// Status is a live snapshot. It is recomputed on every call.
type Status struct {
	PowerState PowerState
	Capacity   uint32 // mWh
	Voltage    uint32 // mV
	Rate       int32
}

const statusSize = 16

// MarshalBinary encodes the battery class status layout.
func (s Status) MarshalBinary() ([]byte, error) {
	b := make([]byte, statusSize)
	le.PutUint32(b[0:], uint32(s.PowerState))
	le.PutUint32(b[4:], s.Capacity)
	le.PutUint32(b[8:], s.Voltage)
	le.PutUint32(b[12:], uint32(s.Rate))
	return b, nil
}

// QueryStatus reads rate, voltage and remaining capacity, in that order.
// Any read failure aborts the whole snapshot.
func (m *Miniclass) QueryStatus(tag uint32) (Status, error) {
	const op = "query_status"
	if err := m.enter(op, tag); err != nil {
		return Status{}, err
	}

	var st Status
	rate, err := m.read(op, regRate)
	if err != nil {
		return Status{}, m.exit(op, err)
	}
	st.Rate = int32(rate)
	st.PowerState = PowerDischarging

	volt, err := m.read(op, regVoltage)
	if err != nil {
		return Status{}, m.exit(op, err)
	}
	pct, err := m.read(op, regPercentage)
	if err != nil {
		return Status{}, m.exit(op, err)
	}
	st.Capacity = capacityFromRaw(pct)
	st.Voltage = uint32(volt)

	m.log.WithFields(logrus.Fields{
		"power_state": uint32(st.PowerState),
		"capacity":    st.Capacity,
		"voltage":     st.Voltage,
		"rate":        st.Rate,
	}).Debug("battery status")
	return st, m.exit(op, nil)
}
