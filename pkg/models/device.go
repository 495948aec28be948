// Package models defines the shared data model for the SNMP switch manager:
// devices, poll categories, canonical interface records, rule sets, and the
// entity descriptors the reconciler synchronizes with the host registry.
package models

import "time"

// PollCategory identifies one independently scheduled polling stream.
type PollCategory string

const (
	CategoryInterfaces    PollCategory = "interfaces"
	CategoryDiagnostics   PollCategory = "diagnostics"
	CategoryBandwidth     PollCategory = "bandwidth"
	CategoryEnvironmental PollCategory = "environmental"
	CategoryPoE           PollCategory = "poe"
)

// AllCategories lists every poll category in a stable order.
var AllCategories = []PollCategory{
	CategoryInterfaces,
	CategoryDiagnostics,
	CategoryBandwidth,
	CategoryEnvironmental,
	CategoryPoE,
}

// CategoryMode selects how a category's data is exposed: folded into
// attributes of existing entities, or as individual per-metric sensors.
type CategoryMode string

const (
	ModeAttributes CategoryMode = "attributes"
	ModeSensors    CategoryMode = "sensors"
)

// SNMPVersion selects the wire authentication scheme.
type SNMPVersion string

const (
	SNMPv2c SNMPVersion = "v2c"
	SNMPv3  SNMPVersion = "v3"
)

// Poll interval bounds. Values outside are clamped on load.
const (
	MinPollInterval = 30 * time.Second
	MaxPollInterval = 3600 * time.Second
)

// ClampInterval forces an interval into the supported range.
func ClampInterval(d time.Duration) time.Duration {
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// Credentials holds SNMP authentication material for one device.
// Community is used for v2c; the remaining fields for v3 USM.
type Credentials struct {
	Community string

	Username          string
	AuthProtocol      string // "MD5", "SHA", "SHA-256", ...
	AuthPassphrase    string
	PrivacyProtocol   string // "DES", "AES", "AES-256", ...
	PrivacyPassphrase string
	SecurityLevel     string // "noAuthNoPriv", "authNoPriv", "authPriv"
	ContextName       string
}

// CategoryConfig holds the per-category polling settings of one device.
type CategoryConfig struct {
	Enabled  bool
	Interval time.Duration
	Mode     CategoryMode
}

// Device is one managed switch. ID is the stable identity key: it is
// assigned once at creation and never changes, including across a
// v2c<->v3 credential switch, so the host registry never sees a
// credential change as a new device.
type Device struct {
	ID      string
	Name    string
	Host    string
	Port    uint16
	Version SNMPVersion
	Creds   Credentials

	Categories map[PollCategory]CategoryConfig

	// CustomOIDs overrides diagnostics field OIDs per device
	// (keys: "hostname", "uptime", "manufacturer", "model", "firmware").
	CustomOIDs map[string]string

	// DisabledVendorFilters lists built-in vendor candidate predicates
	// switched off for this device, by predicate ID.
	DisabledVendorFilters []string
}

// Clone returns a deep copy. The manager hands clones to the poll
// scheduler and the store so that settings updates, which mutate the
// live maps under the device state lock, never race with readers that
// hold no lock at all.
func (d *Device) Clone() *Device {
	out := *d
	if d.Categories != nil {
		out.Categories = make(map[PollCategory]CategoryConfig, len(d.Categories))
		for cat, cc := range d.Categories {
			out.Categories[cat] = cc
		}
	}
	if d.CustomOIDs != nil {
		out.CustomOIDs = make(map[string]string, len(d.CustomOIDs))
		for k, v := range d.CustomOIDs {
			out.CustomOIDs[k] = v
		}
	}
	if d.DisabledVendorFilters != nil {
		out.DisabledVendorFilters = append([]string(nil), d.DisabledVendorFilters...)
	}
	return &out
}

// CategoryConfigOrDefault returns the device's settings for a category,
// falling back to a disabled default when none is configured.
func (d *Device) CategoryConfigOrDefault(cat PollCategory) CategoryConfig {
	if cc, ok := d.Categories[cat]; ok {
		cc.Interval = ClampInterval(cc.Interval)
		if cc.Mode == "" {
			cc.Mode = ModeAttributes
		}
		return cc
	}
	return CategoryConfig{Enabled: false, Interval: MinPollInterval, Mode: ModeAttributes}
}

// VendorFamily is the closed set of vendor classifications. It is derived
// once per device from diagnostics data and then treated as a fixed tag.
type VendorFamily string

const (
	VendorGeneric  VendorFamily = "generic"
	VendorCiscoSG  VendorFamily = "cisco_sg"
	VendorJuniper  VendorFamily = "juniper"
	VendorMikroTik VendorFamily = "mikrotik"
	VendorZyxel    VendorFamily = "zyxel"
	VendorDell     VendorFamily = "dell"
)
