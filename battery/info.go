package battery

import (
	"encoding/binary"
	"unicode/utf16"
)

// Result is one composed answer to QueryInformation. The set of
// implementations is closed; a switch over Level() covers every variant.
type Result interface {
	Level() InformationLevel
	// Size is the encoded length in bytes. It is never zero.
	Size() int
	// put encodes into b, which is exactly Size() bytes.
	put(b []byte)
}

// MarshalResult encodes r in the battery class wire layout.
func MarshalResult(r Result) []byte {
	b := make([]byte, r.Size())
	r.put(b)
	return b
}

var le = binary.LittleEndian

// ---- Static information ----

const staticInfoSize = 36

// StaticInfo is the BatteryInformation block.
type StaticInfo struct {
	Capabilities        Capabilities
	Technology          uint8
	Chemistry           [4]byte
	DesignedCapacity    uint32 // mWh
	FullChargedCapacity uint32 // mWh
	DefaultAlert1       uint32 // mWh, error threshold
	DefaultAlert2       uint32 // mWh, warning threshold
	CriticalBias        uint32 // mWh
	CycleCount          uint32
}

func (StaticInfo) Level() InformationLevel { return LevelStaticInformation }
func (StaticInfo) Size() int               { return staticInfoSize }
func (s StaticInfo) put(b []byte) {
	le.PutUint32(b[0:], uint32(s.Capabilities))
	b[4] = s.Technology
	b[5], b[6], b[7] = 0, 0, 0 // reserved
	copy(b[8:12], s.Chemistry[:])
	le.PutUint32(b[12:], s.DesignedCapacity)
	le.PutUint32(b[16:], s.FullChargedCapacity)
	le.PutUint32(b[20:], s.DefaultAlert1)
	le.PutUint32(b[24:], s.DefaultAlert2)
	le.PutUint32(b[28:], s.CriticalBias)
	le.PutUint32(b[32:], s.CycleCount)
}

// ---- Estimated time ----

// EstimatedTime is the runtime estimate. Known is false when the gauge has
// no estimate; the wire form then carries UnknownTime.
type EstimatedTime struct {
	Seconds uint32
	Known   bool
}

func (EstimatedTime) Level() InformationLevel { return LevelEstimatedTime }
func (EstimatedTime) Size() int               { return 4 }
func (e EstimatedTime) put(b []byte) {
	v := UnknownTime
	if e.Known {
		v = e.Seconds
	}
	le.PutUint32(b, v)
}

// ---- Identity strings ----

// IdentityString is a fixed identity answer, encoded as UTF-16LE plus a
// NUL terminator.
type IdentityString struct {
	Of    InformationLevel
	Value string
}

func (s IdentityString) Level() InformationLevel { return s.Of }

func (s IdentityString) units() []uint16 {
	u := utf16.Encode([]rune(s.Value))
	if len(u) > MaxStringSize-1 {
		u = u[:MaxStringSize-1]
	}
	return u
}

func (s IdentityString) Size() int { return (len(s.units()) + 1) * 2 }
func (s IdentityString) put(b []byte) {
	u := s.units()
	for i, c := range u {
		le.PutUint16(b[i*2:], c)
	}
	le.PutUint16(b[len(u)*2:], 0)
}

// ---- Manufacture date ----

type ManufactureDate struct {
	Day   uint8
	Month uint8
	Year  uint16
}

func (ManufactureDate) Level() InformationLevel { return LevelManufactureDate }
func (ManufactureDate) Size() int               { return 4 }
func (d ManufactureDate) put(b []byte) {
	b[0] = d.Day
	b[1] = d.Month
	le.PutUint16(b[2:], d.Year)
}

// ---- Granularity ----

// ReportingScale is a single granularity entry: Granularity applies up to
// Capacity mWh.
type ReportingScale struct {
	Granularity uint32
	Capacity    uint32
}

func (ReportingScale) Level() InformationLevel { return LevelGranularityInformation }
func (ReportingScale) Size() int               { return 8 }
func (r ReportingScale) put(b []byte) {
	le.PutUint32(b[0:], r.Granularity)
	le.PutUint32(b[4:], r.Capacity)
}

// ---- Temperature ----

// Temperature is the raw gauge reading in tenths of a kelvin.
type Temperature struct {
	DeciKelvin uint32
}

func (Temperature) Level() InformationLevel { return LevelTemperature }
func (Temperature) Size() int               { return 4 }
func (t Temperature) put(b []byte)          { le.PutUint32(b, t.DeciKelvin) }

// ---- Decoders (host side) ----

// DecodeStaticInfo parses the wire form produced for LevelStaticInformation.
func DecodeStaticInfo(b []byte) (StaticInfo, bool) {
	if len(b) < staticInfoSize {
		return StaticInfo{}, false
	}
	var s StaticInfo
	s.Capabilities = Capabilities(le.Uint32(b[0:]))
	s.Technology = b[4]
	copy(s.Chemistry[:], b[8:12])
	s.DesignedCapacity = le.Uint32(b[12:])
	s.FullChargedCapacity = le.Uint32(b[16:])
	s.DefaultAlert1 = le.Uint32(b[20:])
	s.DefaultAlert2 = le.Uint32(b[24:])
	s.CriticalBias = le.Uint32(b[28:])
	s.CycleCount = le.Uint32(b[32:])
	return s, true
}

// DecodeString parses a NUL-terminated UTF-16LE identity string.
func DecodeString(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		c := le.Uint16(b[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}
