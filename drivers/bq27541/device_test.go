package bq27541_test

import (
	"errors"
	"testing"

	"batterycode-go/drivers/bq27541"
	"batterycode-go/drivers/bq27541/bq27541test"
)

func TestReadRegisterLittleEndian(t *testing.T) {
	g := bq27541test.New()
	g.Set(bq27541.CmdVoltage, 0x0F0A)
	d := bq27541.New(g, bq27541.DefaultConfig())

	v, err := d.ReadRegister(bq27541.CmdVoltage)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0x0F0A {
		t.Fatalf("got 0x%04X, want 0x0F0A", v)
	}
	if got := g.Reads(); len(got) != 1 || got[0] != bq27541.CmdVoltage {
		t.Fatalf("unexpected bus log: %v", got)
	}
}

func TestReadErrorPropagates(t *testing.T) {
	g := bq27541test.New()
	g.Fail(bq27541.CmdFlags, nil)
	d := bq27541.New(g, bq27541.DefaultConfig())

	if _, err := d.Flags(); !errors.Is(err, bq27541test.ErrNack) {
		t.Fatalf("expected nack, got %v", err)
	}
}

func TestWrongAddressNacks(t *testing.T) {
	g := bq27541test.New()
	d := bq27541.New(g, bq27541.Config{Address: 0x0B})
	if _, err := d.Voltage_mV(); err == nil {
		t.Fatal("expected a nack from the wrong address")
	}
}

func TestTypedReadouts(t *testing.T) {
	g := bq27541test.NewDefault()
	d := bq27541.New(g, bq27541.Config{})

	if d.Address() != bq27541.AddressDefault {
		t.Fatalf("zero address should default, got 0x%X", d.Address())
	}
	cur, err := d.AverageCurrent_mA()
	if err != nil || cur != -420 {
		t.Fatalf("current = %d, %v; want -420", cur, err)
	}
	f, err := d.Flags()
	if err != nil || !f.Has(bq27541.FlagDSG) || f.Has(bq27541.FlagCHG) {
		t.Fatalf("flags = %04x, %v", f, err)
	}
	mC, err := d.Temperature_mC()
	if err != nil || mC != 25050 {
		t.Fatalf("temp = %d mC, %v; want 25050", mC, err)
	}

	g.Set(bq27541.CmdAtRateTimeToEmpty, bq27541.TimeUnknown)
	if _, ok, err := d.TimeToEmpty_min(); err != nil || ok {
		t.Fatalf("sentinel should report !ok, got ok=%v err=%v", ok, err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := bq27541.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, a := range []uint16{0, 0x80} {
		if err := (bq27541.Config{Address: a}).Validate(); !errors.Is(err, bq27541.ErrAddress) {
			t.Fatalf("address 0x%X: expected ErrAddress, got %v", a, err)
		}
	}
}
