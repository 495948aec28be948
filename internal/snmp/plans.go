package snmp

import "github.com/OtisPresley/snmp-switch-manager/pkg/models"

// walkSpec is one table subtree in a fetch plan. Optional subtrees that an
// agent does not implement contribute nothing; only required ones fail the
// cycle.
type walkSpec struct {
	base     string
	optional bool
}

// fetchPlan is the OID shopping list of one poll category.
type fetchPlan struct {
	scalars []string
	walks   []walkSpec
}

// planFor builds the fetch plan for a category on a device. Plans are
// deliberately over-inclusive: every vendor variant of a data point is
// fetched and the normalizer picks whichever the agent answered.
func planFor(dev *models.Device, cat models.PollCategory) fetchPlan {
	switch cat {
	case models.CategoryInterfaces:
		return fetchPlan{
			walks: []walkSpec{
				{base: OIDIfDescr},
				{base: OIDIfType, optional: true},
				{base: OIDIfSpeed, optional: true},
				{base: OIDIfAdminStatus, optional: true},
				{base: OIDIfOperStatus, optional: true},
				{base: OIDIfName, optional: true},
				{base: OIDIfHighSpeed, optional: true},
				{base: OIDIfAlias, optional: true},
				{base: OIDDot1dBasePortIfIndex, optional: true},
				{base: OIDDot1qPvid, optional: true},
				{base: OIDDot1qVlanCurrentEgressPorts, optional: true},
				{base: OIDDot1qVlanCurrentUntaggedPorts, optional: true},
				{base: OIDDot1qVlanStaticEgressPorts, optional: true},
				{base: OIDDot1qVlanStaticUntaggedPorts, optional: true},
				{base: OIDIpAdEntAddr, optional: true},
				{base: OIDIpAdEntIfIndex, optional: true},
				{base: OIDIpAdEntNetMask, optional: true},
				{base: OIDIpAddressIfIndex, optional: true},
				{base: OIDOspfIfIpAddress, optional: true},
				{base: OIDRouteInstances, optional: true},
			},
		}

	case models.CategoryDiagnostics:
		p := fetchPlan{
			scalars: []string{
				OIDSysDescr,
				OIDSysUpTime,
				OIDSysName,
				OIDEntPhysicalSoftwareRevCBS,
				OIDZyxelMfgName,
				OIDZyxelFirmware,
				OIDMikroTikSoftwareVersion,
				OIDMikroTikModel,
			},
			walks: []walkSpec{
				{base: OIDEntPhysicalModelName, optional: true},
			},
		}
		for _, oid := range dev.CustomOIDs {
			if oid != "" {
				p.scalars = append(p.scalars, oid)
			}
		}
		return p

	case models.CategoryBandwidth:
		return fetchPlan{
			walks: []walkSpec{
				{base: OIDIfHCInOctets, optional: true},
				{base: OIDIfHCOutOctets, optional: true},
				{base: OIDIfInOctets, optional: true},
				{base: OIDIfOutOctets, optional: true},
			},
		}

	case models.CategoryEnvironmental:
		return fetchPlan{
			scalars: []string{
				OIDDellEnvMemFreeKB,
				OIDDellEnvMemTotalKB,
				OIDDellEnvCPUString,
				OIDDellEnvUnitTempC,
				OIDDellEnvUnitTempStat,
			},
			walks: []walkSpec{
				{base: OIDDellEnvPowerMW, optional: true},
				{base: OIDDellEnvFanRPM, optional: true},
				{base: OIDDellEnvFanStatus, optional: true},
				{base: OIDDellEnvPSUStatus, optional: true},
				{base: OIDDellEnvTempC, optional: true},
				{base: OIDEntPhySensorType, optional: true},
				{base: OIDEntPhySensorScale, optional: true},
				{base: OIDEntPhySensorPrecision, optional: true},
				{base: OIDEntPhySensorValue, optional: true},
				{base: OIDEntPhySensorOperStatus, optional: true},
				{base: OIDHrProcessorLoad, optional: true},
				{base: OIDHrStorageType, optional: true},
				{base: OIDHrStorageAllocUnits, optional: true},
				{base: OIDHrStorageSize, optional: true},
				{base: OIDHrStorageUsed, optional: true},
				{base: OIDHuaweiEntityTempC, optional: true},
			},
		}

	case models.CategoryPoE:
		// Scalar .1 instances cover agents that expose the main PSE group
		// as scalars instead of a per-group table.
		return fetchPlan{
			scalars: []string{
				OIDPethMainPsePower + ".1",
				OIDPethMainPseOperStatus + ".1",
				OIDPethMainPseConsumptionMW + ".1",
			},
			walks: []walkSpec{
				{base: OIDPethMainPsePower, optional: true},
				{base: OIDPethMainPseOperStatus, optional: true},
				{base: OIDPethMainPseConsumptionMW, optional: true},
				{base: OIDDellPoEPortPowerMW, optional: true},
			},
		}

	default:
		return fetchPlan{}
	}
}
