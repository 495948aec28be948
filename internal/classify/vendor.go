// Package classify assigns port types and the vendor-candidate baseline
// that the rule engine refines. Vendor family is derived once per device
// from diagnostics data and treated as a fixed tag afterwards.
package classify

import (
	"strings"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// DetectVendor maps diagnostics identity strings onto a vendor family.
// Unrecognized devices are generic, which keeps every interface a
// candidate rather than guessing at a family's filter rules.
func DetectVendor(sysDescr, manufacturer string) models.VendorFamily {
	sd := strings.ToLower(sysDescr)
	mfg := strings.ToLower(manufacturer)

	switch {
	case strings.HasPrefix(mfg, "sg") && strings.HasPrefix(sd, "sg"):
		return models.VendorCiscoSG
	case strings.Contains(mfg, "juniper"),
		strings.Contains(sd, "junos"),
		strings.Contains(sd, "ex2200"):
		return models.VendorJuniper
	case strings.Contains(sd, "mikrotik"), strings.Contains(sd, "routeros"):
		return models.VendorMikroTik
	case strings.Contains(sd, "zyxel"):
		return models.VendorZyxel
	case strings.Contains(sd, "dell"), strings.Contains(mfg, "dell"):
		return models.VendorDell
	default:
		return models.VendorGeneric
	}
}
