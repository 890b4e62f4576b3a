// Package battery implements the miniclass side of the battery class
// contract for a BQ27541 fuel gauge: tag-gated queries, status snapshots
// and advisory set-information commands against one battery instance.
//
// Every exported operation holds the instance lock for its whole duration,
// bus reads included, so a tag cannot change underneath a request.
package battery

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"batterycode-go/errcode"
)

// Sensor is the synchronous register-read primitive supplied by the
// transport. *bq27541.Device satisfies it.
type Sensor interface {
	ReadRegister(reg byte) (uint16, error)
}

// Miniclass is the device state for one attached battery.
type Miniclass struct {
	mu     sync.Mutex
	tags   tagManager
	sensor Sensor
	log    logrus.FieldLogger
}

type Option func(*Miniclass)

// WithLogger routes traces to l. The default discards them.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Miniclass) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates the device state. The tag starts at TagInvalid until
// PrepareHardware runs.
func New(sensor Sensor, opts ...Option) *Miniclass {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	m := &Miniclass{
		sensor: sensor,
		log:    quiet,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// PrepareHardware assigns the first tag at attach time.
func (m *Miniclass) PrepareHardware() {
	m.mu.Lock()
	m.tags.advance()
	tag := m.tags.current()
	m.mu.Unlock()
	m.log.WithField("tag", tag).Info("battery prepared")
}

// Invalidate marks static properties stale. Requests built against the
// previous tag fail with NoSuchDevice from now on.
func (m *Miniclass) Invalidate() {
	m.mu.Lock()
	m.tags.advance()
	tag := m.tags.current()
	m.mu.Unlock()
	m.log.WithField("tag", tag).Info("battery tag advanced")
}

// QueryTag returns the current tag, or NoSuchDevice while it is TagInvalid.
func (m *Miniclass) QueryTag() (uint32, error) {
	const op = "query_tag"
	m.mu.Lock()
	tag := m.tags.current()
	m.mu.Unlock()

	var err error
	if tag == TagInvalid {
		err = errcode.New(errcode.NoSuchDevice, op, "no battery tag assigned")
	}
	m.leave(op, err)
	return tag, err
}

// enter takes the guard and validates the tag. On success the caller owns
// the lock and must release it.
func (m *Miniclass) enter(op string, tag uint32) error {
	m.mu.Lock()
	m.log.WithField("op", op).Debug("entering")
	if err := m.tags.validate(op, tag); err != nil {
		m.mu.Unlock()
		return m.leave(op, err)
	}
	return nil
}

// exit releases the guard taken by enter.
func (m *Miniclass) exit(op string, err error) error {
	m.mu.Unlock()
	return m.leave(op, err)
}

func (m *Miniclass) leave(op string, err error) error {
	m.log.WithFields(logrus.Fields{"op": op, "status": errcode.Of(err)}).Debug("leaving")
	return err
}
