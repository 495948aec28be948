package classify

import (
	"strings"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// IF-MIB ifType codes that are virtual regardless of naming: loopback,
// propVirtual, l2vlan, ieee8023adLag, tunnel.
var virtualIfTypes = map[int]bool{
	24:  true,
	53:  true,
	131: true,
	135: true,
	161: true,
}

var virtualNameTokens = []string{
	"vlan",
	"loopback",
	"mgmt",
	"management",
	"irb",
	"bdi",
	"svi",
	"bridge",
	"port-channel",
	"bond",
	"lag",
}

var ethernetNameTokens = []string{
	"gigabit",
	"gige",
	"gi",
	"fastethernet",
	"fa",
	"ethernet",
	"eth",
	"tengig",
	"ten",
	"te",
	"ge",
	"xe",
}

// Built-in vendor filter IDs. Each can be disabled per device.
const (
	FilterCiscoSGPhysical = "cisco_sg_physical_fa_gi_te"
	FilterCiscoSGVLAN     = "cisco_sg_vlan_admin_or_oper"
	FilterCiscoSGHasIP    = "cisco_sg_other_has_ip"
	FilterJunosPhysical   = "junos_physical_ge_xe"
	FilterJunosL3Subif    = "junos_l3_subif_has_ip"
	FilterJunosVLAN       = "junos_vlan_admin_or_oper"
	FilterJunosHasIP      = "junos_other_has_ip"
)

// Annotated is one classified interface: its record with port type filled
// in, the vendor-candidate verdict, and the possibly vendor-adjusted raw
// name the rule engine should match and rename against.
type Annotated struct {
	Record    models.InterfaceRecord
	Candidate bool
	RawName   string
}

// Classify tags every record with a port type and computes the
// vendor-candidate baseline. The internal CPU pseudo-interface some
// platforms expose is dropped outright. Disabled is the device's set of
// switched-off built-in filter IDs.
func Classify(recs []models.InterfaceRecord, vendor models.VendorFamily, disabled []string) []Annotated {
	off := map[string]bool{}
	for _, id := range disabled {
		off[id] = true
	}

	out := make([]Annotated, 0, len(recs))
	for _, rec := range recs {
		rawName := rec.DisplayBase()
		if strings.EqualFold(strings.TrimSpace(rawName), "CPU") {
			continue
		}

		rec.PortType = PortType(&rec, rawName)

		a := Annotated{Record: rec, RawName: strings.TrimSpace(rawName)}
		a.Candidate = candidate(&a, vendor, off)
		out = append(out, a)
	}
	return out
}

// PortType classifies one interface as physical, virtual, or unknown.
// Heuristic by intent: an unrecognized vendor string falls to unknown and
// stays a candidate rather than disappearing.
func PortType(rec *models.InterfaceRecord, rawName string) models.PortType {
	nm := strings.ToLower(strings.TrimSpace(rawName))

	if rec.IfType.Known && virtualIfTypes[rec.IfType.V] {
		return models.PortVirtual
	}
	for _, tok := range virtualNameTokens {
		if strings.Contains(nm, tok) {
			return models.PortVirtual
		}
	}
	if strings.HasPrefix(nm, "br") || strings.HasPrefix(nm, "lo") {
		return models.PortVirtual
	}

	if rec.BridgePort {
		return models.PortPhysical
	}

	if rec.IfType.Known && rec.IfType.V == 6 {
		if strings.HasPrefix(nm, "port") {
			return models.PortPhysical
		}
		for _, tok := range ethernetNameTokens {
			if strings.Contains(nm, tok) {
				return models.PortPhysical
			}
		}
	}

	return models.PortUnknown
}

// candidate computes the vendor baseline. Generic devices keep everything
// except unconfigured link aggregates; the Cisco SG and Junos families
// apply their selection rules instead.
func candidate(a *Annotated, vendor models.VendorFamily, off map[string]bool) bool {
	lower := strings.ToLower(a.RawName)

	portChannel := strings.HasPrefix(lower, "po") ||
		strings.HasPrefix(lower, "port-channel") ||
		strings.HasPrefix(lower, "link aggregate")
	configured := a.Record.IPv4 != "" || a.Record.Alias != ""
	if portChannel && !configured && vendor != models.VendorCiscoSG {
		return false
	}

	switch vendor {
	case models.VendorCiscoSG:
		return ciscoSGCandidate(a, off)
	case models.VendorJuniper:
		return junosCandidate(a, off)
	default:
		return true
	}
}

func ciscoSGCandidate(a *Annotated, off map[string]bool) bool {
	lower := strings.ToLower(a.RawName)
	admin, hasAdmin := optVal(a.Record.AdminStatus)
	oper, hasOper := optVal(a.Record.OperStatus)
	hasIP := a.Record.IPv4 != ""

	if !off[FilterCiscoSGPhysical] &&
		(strings.HasPrefix(lower, "fa") || strings.HasPrefix(lower, "gi") || strings.HasPrefix(lower, "te")) &&
		(!hasOper || oper != models.StatusNotPresent) {
		return true
	}

	if !off[FilterCiscoSGVLAN] {
		switch {
		case isDigits(lower):
			// SG switches expose VLAN interfaces as bare digits ("1"
			// for VLAN 1). Keep only configured ones, and give them a
			// matchable name.
			if (oper == models.StatusUp || admin == models.StatusDown) && hasIP {
				a.RawName = "VLAN " + a.RawName
				return true
			}
		case strings.HasPrefix(lower, "vlan"):
			if hasAdmin && (admin == models.StatusUp || admin == models.StatusDown) &&
				operVisible(oper, hasOper) {
				return true
			}
		case strings.HasPrefix(lower, "po"):
			if oper == models.StatusUp || admin == models.StatusDown {
				return true
			}
		}
	}

	if !off[FilterCiscoSGHasIP] && hasIP {
		return true
	}
	return false
}

func junosCandidate(a *Annotated, off map[string]bool) bool {
	name := a.RawName
	lower := strings.ToLower(name)
	admin, hasAdmin := optVal(a.Record.AdminStatus)
	oper, hasOper := optVal(a.Record.OperStatus)
	hasIP := a.Record.IPv4 != ""

	if strings.HasPrefix(lower, "ge-") || strings.HasPrefix(lower, "xe-") {
		if !strings.Contains(name, ".") {
			return !off[FilterJunosPhysical]
		}
		// L3 subinterfaces: keep non-unit-0 ones carrying an address.
		if !off[FilterJunosL3Subif] {
			parts := strings.SplitN(name, ".", 2)
			if len(parts) == 2 && parts[1] != "0" && hasIP {
				return true
			}
		}
	}

	if !off[FilterJunosVLAN] && strings.HasPrefix(lower, "vlan") {
		if hasAdmin && (admin == models.StatusUp || admin == models.StatusDown) &&
			operVisible(oper, hasOper) {
			return true
		}
	}

	if !off[FilterJunosHasIP] && hasIP {
		return true
	}
	return false
}

// operVisible reports whether an oper status is one the VLAN filters show:
// up, down, notPresent, or lowerLayerDown.
func operVisible(oper int, known bool) bool {
	if !known {
		return false
	}
	switch oper {
	case models.StatusUp, models.StatusDown, models.StatusNotPresent, models.StatusLowerLayerDown:
		return true
	}
	return false
}

func optVal(o models.OptInt) (int, bool) {
	return o.V, o.Known
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
