// Package normalize turns raw fetched OID payloads into the canonical
// data model: interface records, diagnostics, bandwidth counters,
// environmental readings, and PoE state. Each builder tolerates missing
// and garbled cells; a bad value makes a field unknown, never fails the
// snapshot.
package normalize

import (
	"sort"
	"strings"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// ifSpeed returns this sentinel for links at or above 4.3 Gbps; the real
// rate then only exists in ifHighSpeed.
const ifSpeedSentinel = 4294967295

// Interfaces builds the canonical interface records from one interfaces
// fetch. Records are keyed and returned in ascending ifIndex order.
func Interfaces(rv snmp.RawValues) []models.InterfaceRecord {
	recs := map[int]*models.InterfaceRecord{}

	rec := func(idx int) *models.InterfaceRecord {
		r, ok := recs[idx]
		if !ok {
			r = &models.InterfaceRecord{IfIndex: idx, PortType: models.PortUnknown}
			recs[idx] = r
		}
		return r
	}

	for _, row := range rv.Rows(snmp.OIDIfDescr) {
		if row.Index <= 0 {
			continue
		}
		if s, ok := row.Value.String(); ok {
			rec(row.Index).Descr = strings.TrimSpace(s)
		}
	}
	for _, row := range rv.Rows(snmp.OIDIfName) {
		if row.Index <= 0 {
			continue
		}
		if s, ok := row.Value.String(); ok {
			rec(row.Index).Name = strings.TrimSpace(s)
		}
	}
	for _, row := range rv.Rows(snmp.OIDIfAlias) {
		if row.Index <= 0 {
			continue
		}
		if s, ok := row.Value.String(); ok {
			rec(row.Index).Alias = strings.TrimSpace(s)
		}
	}
	for _, row := range rv.Rows(snmp.OIDIfType) {
		if row.Index <= 0 {
			continue
		}
		if n, ok := row.Value.Int(); ok {
			rec(row.Index).IfType = models.IntOf(n)
		}
	}
	for _, row := range rv.Rows(snmp.OIDIfAdminStatus) {
		if row.Index <= 0 {
			continue
		}
		if n, ok := row.Value.Int(); ok {
			rec(row.Index).AdminStatus = models.IntOf(n)
		}
	}
	for _, row := range rv.Rows(snmp.OIDIfOperStatus) {
		if row.Index <= 0 {
			continue
		}
		if n, ok := row.Value.Int(); ok {
			rec(row.Index).OperStatus = models.IntOf(n)
		}
	}

	applySpeeds(rv, rec)
	applyVLANs(rv, rec)

	for idx, a := range attributeIPv4(rv) {
		if idx <= 0 {
			continue
		}
		r := rec(idx)
		r.IPv4 = a.Addr
		r.IPv4Prefix = a.Prefix
	}

	out := make([]models.InterfaceRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IfIndex < out[j].IfIndex })
	return out
}

// applySpeeds fills SpeedBPS: ifSpeed first (bits per second, sentinel
// excluded), then ifHighSpeed overrides where present. ifHighSpeed is
// defined as Mbps but some devices return bps; values at or above one
// million are taken as already-bps to avoid a millionfold inflation.
func applySpeeds(rv snmp.RawValues, rec func(int) *models.InterfaceRecord) {
	for _, row := range rv.Rows(snmp.OIDIfSpeed) {
		if row.Index <= 0 {
			continue
		}
		bps, ok := row.Value.Uint64()
		if !ok || bps == 0 || bps == ifSpeedSentinel {
			continue
		}
		rec(row.Index).SpeedBPS = models.Uint64Of(bps)
	}
	for _, row := range rv.Rows(snmp.OIDIfHighSpeed) {
		if row.Index <= 0 {
			continue
		}
		v, ok := row.Value.Uint64()
		if !ok || v == 0 {
			continue
		}
		bps := v * 1_000_000
		if v >= 1_000_000 {
			bps = v
		}
		rec(row.Index).SpeedBPS = models.Uint64Of(bps)
	}
}

// applyVLANs resolves PVID, membership, tagging, and the trunk heuristic
// through the bridge port mapping. Current and static Q-BRIDGE tables are
// merged because some platforms populate only one of the two.
func applyVLANs(rv snmp.RawValues, rec func(int) *models.InterfaceRecord) {
	basePortByIfIndex := map[int]int{}
	for _, row := range rv.Rows(snmp.OIDDot1dBasePortIfIndex) {
		basePort := row.Index
		ifIndex, ok := row.Value.Int()
		if !ok || basePort <= 0 || ifIndex <= 0 {
			continue
		}
		basePortByIfIndex[ifIndex] = basePort
	}
	if len(basePortByIfIndex) == 0 {
		return
	}

	pvidByBasePort := map[int]int{}
	for _, row := range rv.Rows(snmp.OIDDot1qPvid) {
		if pvid, ok := row.Value.Int(); ok && pvid > 0 && row.Index > 0 {
			pvidByBasePort[row.Index] = pvid
		}
	}

	allowed := map[int]map[int]bool{}
	untagged := map[int]map[int]bool{}
	collectVLANPorts(rv, snmp.OIDDot1qVlanCurrentEgressPorts, allowed)
	collectVLANPorts(rv, snmp.OIDDot1qVlanCurrentUntaggedPorts, untagged)
	collectVLANPorts(rv, snmp.OIDDot1qVlanStaticEgressPorts, allowed)
	collectVLANPorts(rv, snmp.OIDDot1qVlanStaticUntaggedPorts, untagged)

	for ifIndex, basePort := range basePortByIfIndex {
		r := rec(ifIndex)
		r.BridgePort = true

		pvid, hasPVID := pvidByBasePort[basePort]
		if hasPVID {
			r.PVID = models.IntOf(pvid)
		}

		allowedSet := allowed[basePort]
		untaggedSet := untagged[basePort]
		r.AllowedVLANs = sortedVLANs(allowedSet)
		r.UntaggedVLANs = sortedVLANs(untaggedSet)

		var tagged []int
		switch {
		case len(allowedSet) == 0:
		case len(untaggedSet) > 0:
			for _, v := range r.AllowedVLANs {
				if !untaggedSet[v] {
					tagged = append(tagged, v)
				}
			}
		case hasPVID:
			for _, v := range r.AllowedVLANs {
				if v != pvid {
					tagged = append(tagged, v)
				}
			}
		default:
			tagged = append(tagged, r.AllowedVLANs...)
		}
		r.TaggedVLANs = tagged

		r.Trunk = len(allowedSet) > 1 || len(tagged) > 0
	}
}

// collectVLANPorts inverts one PortList table (VLAN -> ports) into
// port -> VLAN set. The current tables carry a TimeFilter component, so
// only the trailing VLAN id of the instance is meaningful.
func collectVLANPorts(rv snmp.RawValues, base string, out map[int]map[int]bool) {
	for _, row := range rv.Rows(base) {
		vlan := row.Index
		if vlan <= 0 {
			continue
		}
		bits, ok := row.Value.Bytes()
		if !ok {
			continue
		}
		for _, bp := range decodePortList(bits) {
			set, ok := out[bp]
			if !ok {
				set = map[int]bool{}
				out[bp] = set
			}
			set[vlan] = true
		}
	}
}

func sortedVLANs(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
