package models

import "fmt"

// PortType classifies an interface as a front-panel port or a logical one.
type PortType string

const (
	PortPhysical PortType = "physical"
	PortVirtual  PortType = "virtual"
	PortUnknown  PortType = "unknown"
)

// IF-MIB admin/oper status codes.
const (
	StatusUp             = 1
	StatusDown           = 2
	StatusTesting        = 3
	StatusUnknown        = 4
	StatusDormant        = 5
	StatusNotPresent     = 6
	StatusLowerLayerDown = 7
)

// AdminStatusText maps ifAdminStatus codes to display strings.
func AdminStatusText(code int) string {
	switch code {
	case StatusUp:
		return "Up"
	case StatusDown:
		return "Down"
	case StatusTesting:
		return "Testing"
	default:
		return "Unknown"
	}
}

// OperStatusText maps ifOperStatus codes to display strings.
func OperStatusText(code int) string {
	switch code {
	case StatusUp:
		return "Up"
	case StatusDown:
		return "Down"
	case StatusTesting:
		return "Testing"
	case StatusUnknown:
		return "Unknown"
	case StatusDormant:
		return "Dormant"
	case StatusNotPresent:
		return "NotPresent"
	case StatusLowerLayerDown:
		return "LowerLayerDown"
	default:
		return "Unknown"
	}
}

// InterfaceRecord is the canonical, vendor-normalized view of one interface.
// Identity is (device, IfIndex); names and aliases are mutable display
// attributes. Records are rebuilt in full on every successful interfaces
// poll, never patched incrementally.
type InterfaceRecord struct {
	IfIndex int

	Name  string // ifName
	Descr string // ifDescr
	Alias string // ifAlias

	IfType      OptInt
	AdminStatus OptInt
	OperStatus  OptInt
	SpeedBPS    OptUint64

	PVID          OptInt
	Trunk         bool
	AllowedVLANs  []int
	TaggedVLANs   []int
	UntaggedVLANs []int

	IPv4       string // dotted quad, empty when none attributed
	IPv4Prefix OptInt

	BridgePort bool
	PortType   PortType
	PoECapable bool
}

// DisplayBase returns the raw name used for rule matching and as the
// starting point for display naming: ifName, else ifDescr, else a
// synthesized ifIndex label.
func (r *InterfaceRecord) DisplayBase() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Descr != "" {
		return r.Descr
	}
	return fmt.Sprintf("ifIndex %d", r.IfIndex)
}

// IPv4CIDR returns "ip/prefix" when both parts are known, the bare IP when
// only the address is, and "" when no address is attributed.
func (r *InterfaceRecord) IPv4CIDR() string {
	if r.IPv4 == "" {
		return ""
	}
	if r.IPv4Prefix.Known {
		return fmt.Sprintf("%s/%d", r.IPv4, r.IPv4Prefix.V)
	}
	return r.IPv4
}
