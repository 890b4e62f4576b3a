package battery

import "batterycode-go/drivers/bq27541"

// MahToMwh applies the fixed nominal-voltage scale. There is no per-pack
// calibration.
func MahToMwh(v uint32) uint32 { return v * 9 }

// capacityFromRaw doubles a capacity register read before conversion. The
// doubling is a register scaling convention of this gauge integration; its
// physical meaning is not documented.
func capacityFromRaw(raw uint16) uint32 { return MahToMwh(uint32(raw) * 2) }

// reportingCapacity is the granularity-scale capacity: the register is
// doubled once more on top of the capacityFromRaw convention.
func reportingCapacity(raw uint16) uint32 { return MahToMwh(uint32(raw) * 2 * 2) }

// AlertThresholds returns the error (7%) and warning (9%) levels of full,
// truncating.
func AlertThresholds(full uint32) (alert1, alert2 uint32) {
	return full * 7 / 100, full * 9 / 100
}

// etaSeconds converts gauge minutes; ok is false for the no-estimate sentinel.
func etaSeconds(raw uint16) (uint32, bool) {
	if raw == bq27541.TimeUnknown {
		return 0, false
	}
	return uint32(raw) * 60, true
}
