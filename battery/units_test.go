package battery

import (
	"testing"

	"batterycode-go/drivers/bq27541"
)

func TestMahToMwh(t *testing.T) {
	for _, x := range []uint32{0, 1, 100, 1650, 65535 * 2} {
		if got := MahToMwh(x); got != x*9 {
			t.Fatalf("MahToMwh(%d) = %d", x, got)
		}
	}
}

func TestCapacityConventions(t *testing.T) {
	if got := capacityFromRaw(100); got != 1800 {
		t.Fatalf("capacityFromRaw(100) = %d, want 1800", got)
	}
	if got := reportingCapacity(100); got != 3600 {
		t.Fatalf("reportingCapacity(100) = %d, want 3600", got)
	}
	// No 16-bit overflow on large reads.
	if got := reportingCapacity(0xFFFF); got != 0xFFFF*4*9 {
		t.Fatalf("reportingCapacity(0xFFFF) = %d", got)
	}
}

func TestAlertThresholdsTruncate(t *testing.T) {
	cases := []struct{ full, a1, a2 uint32 }{
		{0, 0, 0},
		{99, 6, 8},
		{100, 7, 9},
		{28800, 2016, 2592},
		{14, 0, 1},
	}
	for _, c := range cases {
		a1, a2 := AlertThresholds(c.full)
		if a1 != c.a1 || a2 != c.a2 {
			t.Fatalf("AlertThresholds(%d) = %d,%d want %d,%d", c.full, a1, a2, c.a1, c.a2)
		}
	}
}

func TestEtaSeconds(t *testing.T) {
	if s, ok := etaSeconds(120); !ok || s != 7200 {
		t.Fatalf("etaSeconds(120) = %d,%v", s, ok)
	}
	if _, ok := etaSeconds(bq27541.TimeUnknown); ok {
		t.Fatal("sentinel must not produce an estimate")
	}
	if s, ok := etaSeconds(0); !ok || s != 0 {
		t.Fatalf("zero minutes is a real estimate, got %d,%v", s, ok)
	}
}
