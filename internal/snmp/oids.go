package snmp

// Standard and vendor OIDs used by the category fetch plans.

// SNMPv2-MIB system group (1.3.6.1.2.1.1).
const (
	OIDSysDescr  = "1.3.6.1.2.1.1.1.0"
	OIDSysUpTime = "1.3.6.1.2.1.1.3.0"
	OIDSysName   = "1.3.6.1.2.1.1.5.0"
)

// IF-MIB interface table (1.3.6.1.2.1.2.2.1) and extensions (.31.1.1.1).
const (
	OIDIfIndex       = "1.3.6.1.2.1.2.2.1.1"
	OIDIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDIfType        = "1.3.6.1.2.1.2.2.1.3"
	OIDIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	OIDIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	OIDIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	OIDIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"

	OIDIfName        = "1.3.6.1.2.1.31.1.1.1.1"
	OIDIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	OIDIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
	OIDIfHighSpeed   = "1.3.6.1.2.1.31.1.1.1.15"
	OIDIfAlias       = "1.3.6.1.2.1.31.1.1.1.18"
)

// BRIDGE-MIB / Q-BRIDGE-MIB. The current VLAN membership tables are
// preferred; some platforms (Dell N-series among them) only implement the
// static ones, so both are fetched and merged.
const (
	OIDDot1dBasePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"
	OIDDot1qPvid            = "1.3.6.1.2.1.17.7.1.4.5.1.1"

	OIDDot1qVlanCurrentEgressPorts   = "1.3.6.1.2.1.17.7.1.4.2.1.4"
	OIDDot1qVlanCurrentUntaggedPorts = "1.3.6.1.2.1.17.7.1.4.2.1.5"
	OIDDot1qVlanStaticEgressPorts    = "1.3.6.1.2.1.17.7.1.4.3.1.2"
	OIDDot1qVlanStaticUntaggedPorts  = "1.3.6.1.2.1.17.7.1.4.3.1.4"
)

// IPv4 attribution sources, in fallback order.
const (
	OIDIpAdEntAddr      = "1.3.6.1.2.1.4.20.1.1"
	OIDIpAdEntIfIndex   = "1.3.6.1.2.1.4.20.1.2"
	OIDIpAdEntNetMask   = "1.3.6.1.2.1.4.20.1.3"
	OIDIpAddressIfIndex = "1.3.6.1.2.1.4.34.1.3"
	OIDOspfIfIpAddress  = "1.3.6.1.2.1.14.8.1.1"
	// IP-FORWARD-MIB route column; any column shares the same instance
	// layout, so column 9 is read purely for its instances.
	OIDRouteInstances = "1.3.6.1.2.1.4.24.7.1.9"
)

// ENTITY-MIB and vendor diagnostics overrides.
const (
	OIDEntPhysicalModelName = "1.3.6.1.2.1.47.1.1.1.1.13"

	OIDEntPhysicalSoftwareRevCBS = "1.3.6.1.2.1.47.1.1.1.1.10.67108992"
	OIDZyxelMfgName              = "1.3.6.1.2.1.47.1.1.1.1.12.1"
	OIDZyxelFirmware             = "1.3.6.1.4.1.890.1.15.3.1.6.0"
	OIDMikroTikSoftwareVersion   = "1.3.6.1.4.1.14988.1.1.4.4.0"
	OIDMikroTikModel             = "1.3.6.1.4.1.14988.1.1.7.9.0"
)

// POWER-ETHERNET-MIB (RFC 3621) main PSE group, walked per PSE group
// index, plus the Dell N-series private per-port power table.
const (
	OIDPethMainPsePower           = "1.3.6.1.2.1.105.1.3.1.1.2" // budget, W
	OIDPethMainPseOperStatus      = "1.3.6.1.2.1.105.1.3.1.1.3"
	OIDPethMainPseConsumptionMW   = "1.3.6.1.2.1.105.1.3.1.1.4"
	OIDDellPoEPortPowerMW         = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.15.1.1.1.2.1"
)

// Environmental sources: Dell OS6 private MIB first, then the cross-vendor
// fallbacks (ENTITY-SENSOR-MIB, HOST-RESOURCES-MIB, Huawei entity MIB).
const (
	OIDDellEnvPowerMW      = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.9.1.4.1"
	OIDDellEnvMemFreeKB    = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.1.1.4.1.0"
	OIDDellEnvMemTotalKB   = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.1.1.4.2.0"
	OIDDellEnvCPUString    = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.1.1.4.9.0"
	OIDDellEnvFanRPM       = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.6.1.4.1"
	OIDDellEnvFanStatus    = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.6.1.3.1"
	OIDDellEnvPSUStatus    = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.7.1.2.1"
	OIDDellEnvTempC        = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.8.1.5.1"
	OIDDellEnvUnitTempC    = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.15.1.3.1"
	OIDDellEnvUnitTempStat = "1.3.6.1.4.1.674.10895.5000.2.6132.1.1.43.1.15.1.2.1"

	OIDEntPhySensorType       = "1.3.6.1.2.1.99.1.1.1.1"
	OIDEntPhySensorScale      = "1.3.6.1.2.1.99.1.1.1.2"
	OIDEntPhySensorPrecision  = "1.3.6.1.2.1.99.1.1.1.3"
	OIDEntPhySensorValue      = "1.3.6.1.2.1.99.1.1.1.4"
	OIDEntPhySensorOperStatus = "1.3.6.1.2.1.99.1.1.1.5"

	OIDHrProcessorLoad     = "1.3.6.1.2.1.25.3.3.1.2"
	OIDHrStorageType       = "1.3.6.1.2.1.25.2.3.1.2"
	OIDHrStorageAllocUnits = "1.3.6.1.2.1.25.2.3.1.4"
	OIDHrStorageSize       = "1.3.6.1.2.1.25.2.3.1.5"
	OIDHrStorageUsed       = "1.3.6.1.2.1.25.2.3.1.6"
	OIDHrStorageRAM        = "1.3.6.1.2.1.25.2.1.2"

	OIDHuaweiEntityTempC = "1.3.6.1.4.1.2011.5.25.31.1.1.1.1.11"
)
