package models

// Optional value types. SNMP devices routinely omit or garble individual
// fields; an absent value must stay distinguishable from a legitimate zero,
// so records carry these instead of bare ints. Downstream code treats an
// unknown value as "omit", never as a default.

// OptInt is an int that may be unknown.
type OptInt struct {
	V     int
	Known bool
}

// IntOf returns a known OptInt.
func IntOf(v int) OptInt { return OptInt{V: v, Known: true} }

// OptUint64 is a uint64 that may be unknown.
type OptUint64 struct {
	V     uint64
	Known bool
}

// Uint64Of returns a known OptUint64.
func Uint64Of(v uint64) OptUint64 { return OptUint64{V: v, Known: true} }

// OptFloat is a float64 that may be unknown.
type OptFloat struct {
	V     float64
	Known bool
}

// FloatOf returns a known OptFloat.
func FloatOf(v float64) OptFloat { return OptFloat{V: v, Known: true} }
