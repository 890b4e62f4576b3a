// Package bq27541test provides a scriptable in-memory BQ27541 that satisfies
// tinygo drivers.I2C, for host-side tests and bench runs without hardware.
package bq27541test

import (
	"errors"
	"sync"

	"batterycode-go/drivers/bq27541"
)

// ErrNack is returned for registers armed with Fail.
var ErrNack = errors.New("bq27541test: nack")

// Gauge emulates the word-register command set. Unset registers read as 0.
type Gauge struct {
	mu    sync.Mutex
	addr  uint16
	regs  map[byte]uint16
	fail  map[byte]error
	reads []byte
	hook  func(reg byte)
}

// New returns a gauge answering on bq27541.AddressDefault.
func New() *Gauge {
	return &Gauge{
		addr: bq27541.AddressDefault,
		regs: make(map[byte]uint16),
		fail: make(map[byte]error),
	}
}

// NewDefault returns a gauge preloaded with a plausible discharging cell.
func NewDefault() *Gauge {
	g := New()
	g.Set(bq27541.CmdDesignCapacity, 1650)
	g.Set(bq27541.CmdFullChargeCapacity, 1600)
	g.Set(bq27541.CmdRemainingCapacity, 1200)
	g.Set(bq27541.CmdCycleCount, 12)
	g.Set(bq27541.CmdVoltage, 3850)
	g.Set(bq27541.CmdTemperature, 2982) // 25.05 °C
	g.Set(bq27541.CmdNominalAvailCap, 1180)
	g.Set(bq27541.CmdAverageCurrent, uint16(0xFFFF-420+1))
	g.Set(bq27541.CmdFlags, uint16(bq27541.FlagDSG))
	g.Set(bq27541.CmdAtRateTimeToEmpty, 170)
	return g
}

// Set stores a register value.
func (g *Gauge) Set(reg byte, v uint16) {
	g.mu.Lock()
	g.regs[reg] = v
	g.mu.Unlock()
}

// Get returns the stored register value.
func (g *Gauge) Get(reg byte) uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.regs[reg]
}

// SetAddress moves the gauge to another 7-bit address.
func (g *Gauge) SetAddress(addr uint16) {
	g.mu.Lock()
	g.addr = addr
	g.mu.Unlock()
}

// Fail makes every read of reg return err (ErrNack if nil).
func (g *Gauge) Fail(reg byte, err error) {
	if err == nil {
		err = ErrNack
	}
	g.mu.Lock()
	g.fail[reg] = err
	g.mu.Unlock()
}

// Heal clears an injected failure.
func (g *Gauge) Heal(reg byte) {
	g.mu.Lock()
	delete(g.fail, reg)
	g.mu.Unlock()
}

// OnRead installs a callback run (outside the gauge lock) before every read.
func (g *Gauge) OnRead(fn func(reg byte)) {
	g.mu.Lock()
	g.hook = fn
	g.mu.Unlock()
}

// Reads returns the register addresses read so far, in order.
func (g *Gauge) Reads() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]byte(nil), g.reads...)
}

// ResetReads clears the read log.
func (g *Gauge) ResetReads() {
	g.mu.Lock()
	g.reads = g.reads[:0]
	g.mu.Unlock()
}

// Tx implements drivers.I2C: a one-byte command write followed by a word read.
func (g *Gauge) Tx(addr uint16, w, r []byte) error {
	if addr != g.addr {
		return ErrNack
	}
	if len(w) != 1 {
		return ErrNack
	}
	reg := w[0]

	g.mu.Lock()
	hook := g.hook
	g.mu.Unlock()
	if hook != nil {
		hook(reg)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads = append(g.reads, reg)
	if err, ok := g.fail[reg]; ok {
		return err
	}
	v := g.regs[reg]
	if len(r) > 0 {
		r[0] = byte(v)
	}
	if len(r) > 1 {
		r[1] = byte(v >> 8)
	}
	return nil
}
