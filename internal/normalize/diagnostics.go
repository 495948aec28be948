package normalize

import (
	"strings"
	"time"

	"github.com/OtisPresley/snmp-switch-manager/internal/classify"
	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// Diagnostics builds the device-level snapshot from one diagnostics fetch.
// Precedence per field: per-device custom OID, then vendor-specific OID,
// then generic sysDescr parsing.
func Diagnostics(rv snmp.RawValues, dev *models.Device, now time.Time) models.DiagnosticsSnapshot {
	snap := models.DiagnosticsSnapshot{TakenAt: now}

	sysDescr, _ := rv.GetString(snmp.OIDSysDescr)
	snap.SysDescr = strings.TrimSpace(sysDescr)

	nameOID := customOID(dev, "hostname", snmp.OIDSysName)
	if s, ok := rv.GetString(nameOID); ok {
		snap.SysName = strings.TrimSpace(s)
	}

	uptimeOID := customOID(dev, "uptime", snmp.OIDSysUpTime)
	if v, ok := rv.Get(uptimeOID); ok {
		if ticks, ok := v.Uint64(); ok {
			snap.UptimeTicks = models.Uint64Of(ticks)
		}
	}

	// Model hint: first non-empty entPhysicalModelName row.
	for _, row := range rv.Rows(snmp.OIDEntPhysicalModelName) {
		if s, ok := row.Value.String(); ok {
			if s = strings.TrimSpace(s); s != "" {
				snap.Model = s
				break
			}
		}
	}

	snap.Manufacturer, snap.Firmware = parseSysDescr(snap.SysDescr, snap.Model)

	lower := strings.ToLower(snap.SysDescr)

	// Cisco small-business: ENTITY-MIB software revision of the base
	// chassis is more accurate than the sysDescr tail.
	if strings.Contains(snap.Model, "CBS") || strings.Contains(snap.SysDescr, "CBS") {
		if s, ok := rv.GetString(snmp.OIDEntPhysicalSoftwareRevCBS); ok && strings.TrimSpace(s) != "" {
			snap.Firmware = strings.TrimSpace(s)
		}
	}

	if strings.Contains(lower, "zyxel") {
		if s, ok := rv.GetString(snmp.OIDZyxelMfgName); ok && strings.TrimSpace(s) != "" {
			snap.Manufacturer = strings.TrimSpace(s)
		}
		if s, ok := rv.GetString(snmp.OIDZyxelFirmware); ok && strings.TrimSpace(s) != "" {
			snap.Firmware = strings.TrimSpace(s)
		}
	}

	if strings.Contains(lower, "mikrotik") || strings.Contains(lower, "routeros") {
		snap.Manufacturer = "MikroTik"
		if s, ok := rv.GetString(snmp.OIDMikroTikSoftwareVersion); ok && strings.TrimSpace(s) != "" {
			snap.Firmware = strings.TrimSpace(s)
		}
		if s, ok := rv.GetString(snmp.OIDMikroTikModel); ok && strings.TrimSpace(s) != "" {
			snap.Model = strings.TrimSpace(s)
		}
	}

	// Custom OIDs beat everything.
	for key, dst := range map[string]*string{
		"manufacturer": &snap.Manufacturer,
		"firmware":     &snap.Firmware,
		"model":        &snap.Model,
	} {
		oid := dev.CustomOIDs[key]
		if oid == "" {
			continue
		}
		if s, ok := rv.GetString(oid); ok && strings.TrimSpace(s) != "" {
			*dst = strings.TrimSpace(s)
		}
	}

	snap.Vendor = classify.DetectVendor(snap.SysDescr, snap.Manufacturer)
	return snap
}

// customOID returns the device's override for a diagnostics field, or the
// standard OID.
func customOID(dev *models.Device, key, fallback string) string {
	if oid := dev.CustomOIDs[key]; oid != "" {
		return oid
	}
	return fallback
}

// parseSysDescr extracts manufacturer and firmware from the conventional
// comma-separated sysDescr layout: "<vendor> <model>, <firmware>, ...".
// When the model hint appears in the head, the remainder is the
// manufacturer; otherwise everything but the last head token is.
func parseSysDescr(sysDescr, modelHint string) (manufacturer, firmware string) {
	if sysDescr == "" {
		return "", ""
	}
	parts := strings.Split(sysDescr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) >= 2 {
		firmware = parts[1]
	}
	head := parts[0]
	if modelHint != "" && strings.Contains(head, modelHint) {
		manufacturer = strings.TrimSpace(strings.ReplaceAll(head, modelHint, ""))
	} else if toks := strings.Fields(head); len(toks) > 1 {
		manufacturer = strings.Join(toks[:len(toks)-1], " ")
	}
	return manufacturer, firmware
}
