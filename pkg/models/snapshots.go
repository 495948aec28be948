package models

import "time"

// DiagnosticsSnapshot holds the device-level facts read by the diagnostics
// category: system identity plus the vendor fields parsed from it.
type DiagnosticsSnapshot struct {
	SysName     string
	SysDescr    string
	UptimeTicks OptUint64 // sysUpTime, hundredths of a second

	Manufacturer string
	Model        string
	Firmware     string
	Vendor       VendorFamily

	TakenAt time.Time
}

// Uptime converts sysUpTime ticks to a duration.
func (d *DiagnosticsSnapshot) Uptime() time.Duration {
	if !d.UptimeTicks.Known {
		return 0
	}
	return time.Duration(d.UptimeTicks.V) * 10 * time.Millisecond
}

// BandwidthSample is one interface's traffic reading. Rates are derived
// from two consecutive counter reads and are unknown until a second poll.
type BandwidthSample struct {
	RxOctets OptUint64
	TxOctets OptUint64
	RxBPS    OptFloat
	TxBPS    OptFloat
}

// BandwidthSnapshot holds the per-interface samples of one bandwidth poll.
type BandwidthSnapshot struct {
	UseHC   bool // 64-bit counters in use
	Ports   map[int]BandwidthSample
	TakenAt time.Time
}

// EnvironmentSnapshot holds whatever environmental readings a device
// exposes. Maps are nil when the device does not implement the table at
// all; absent scalar values are unknown.
type EnvironmentSnapshot struct {
	CPU5s   OptFloat // percent
	CPU60s  OptFloat
	CPU300s OptFloat

	MemTotalKB OptInt
	MemFreeKB  OptInt

	FanRPM    map[int]int
	FanStatus map[int]int // 2=OK, 3=FAILED, 1=NOT PRESENT
	PSUStatus map[int]int

	TempsC        map[int]int
	UnitTempC     OptInt
	UnitTempState OptInt

	PowerMWTotal OptFloat

	TakenAt time.Time
}

// PoE health codes (POWER-ETHERNET-MIB pethMainPseOperStatus convention).
const (
	PoEHealthy  = 1
	PoEDisabled = 2
	PoEFaulty   = 3
)

// PoEHealthText maps a health code to its display string.
func PoEHealthText(code int) string {
	switch code {
	case PoEHealthy:
		return "HEALTHY"
	case PoEDisabled:
		return "DISABLED"
	case PoEFaulty:
		return "FAULTY"
	default:
		return "FAULTY"
	}
}

// PoESnapshot holds power-over-ethernet totals and per-port draw.
type PoESnapshot struct {
	BudgetW    OptFloat
	UsedW      OptFloat
	AvailableW OptFloat
	Health     OptInt

	// PortPowerMW is per-ifIndex delivered power, when the device exposes
	// a per-port table.
	PortPowerMW map[int]float64

	TakenAt time.Time
}

// Supported reports whether the device returned any PoE data at all.
// Entities are only created for supported snapshots.
func (p *PoESnapshot) Supported() bool {
	return p.BudgetW.Known || p.UsedW.Known || p.AvailableW.Known ||
		p.Health.Known || len(p.PortPowerMW) > 0
}
