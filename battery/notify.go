package battery

import "batterycode-go/errcode"

// Notify holds the thresholds a host would like to be told about.
type Notify struct {
	PowerState   PowerState
	LowCapacity  uint32
	HighCapacity uint32
}

// SetStatusNotify is not offered: status must be polled with QueryStatus.
func (m *Miniclass) SetStatusNotify(tag uint32, _ Notify) error {
	const op = "set_status_notify"
	if err := m.enter(op, tag); err != nil {
		return err
	}
	return m.exit(op, errcode.New(errcode.NotSupported, op, "status notification"))
}

// DisableStatusNotify always fails once the tag is accepted.
func (m *Miniclass) DisableStatusNotify(tag uint32) error {
	const op = "disable_status_notify"
	if err := m.enter(op, tag); err != nil {
		return err
	}
	return m.exit(op, errcode.New(errcode.NotSupported, op, "status notification"))
}
