package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// ENTITY-SENSOR-MIB entPhySensorType values of interest.
const (
	sensorTypeWatts   = 6
	sensorTypeCelsius = 8
	sensorTypeRPM     = 10
)

// Sanity bounds. Readings outside are sensor garbage, not data.
const (
	minTempC   = -50.0
	maxTempC   = 150.0
	maxHwTempC = 200.0
	maxFanRPM  = 50000.0
	maxWatts   = 100000.0
)

var cpuPercentRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*%`)

// Environment builds the environmental snapshot from one fetch. The Dell
// OS6 private MIB is read first; ENTITY-SENSOR-MIB, HOST-RESOURCES-MIB,
// and the Huawei entity MIB only fill fields still missing, so a device
// that implements several sources keeps its most specific readings.
func Environment(rv snmp.RawValues, now time.Time) models.EnvironmentSnapshot {
	snap := models.EnvironmentSnapshot{TakenAt: now}

	// Dell OS6 per-unit power draw, milliwatts.
	powerTotal := 0.0
	powerSeen := false
	for _, row := range rv.Rows(snmp.OIDDellEnvPowerMW) {
		if mw, ok := row.Value.Float(); ok {
			powerTotal += mw
			powerSeen = true
		}
	}
	if powerSeen {
		snap.PowerMWTotal = models.FloatOf(powerTotal)
	}

	if n, ok := intScalar(rv, snmp.OIDDellEnvMemFreeKB); ok {
		snap.MemFreeKB = models.IntOf(n)
	}
	if n, ok := intScalar(rv, snmp.OIDDellEnvMemTotalKB); ok {
		snap.MemTotalKB = models.IntOf(n)
	}

	// Dell OS6 reports CPU load as a single string with three windows:
	// "    5 Secs ( 18.7%)   60 Secs ( 17.3%)  300 Secs ( 16.9%)".
	if s, ok := rv.GetString(snmp.OIDDellEnvCPUString); ok {
		if m := cpuPercentRe.FindAllStringSubmatch(s, -1); len(m) >= 3 {
			if v, err := strconv.ParseFloat(m[0][1], 64); err == nil {
				snap.CPU5s = models.FloatOf(v)
			}
			if v, err := strconv.ParseFloat(m[1][1], 64); err == nil {
				snap.CPU60s = models.FloatOf(v)
			}
			if v, err := strconv.ParseFloat(m[2][1], 64); err == nil {
				snap.CPU300s = models.FloatOf(v)
			}
		}
	}

	snap.FanRPM = intTable(rv, snmp.OIDDellEnvFanRPM)
	snap.FanStatus = intTable(rv, snmp.OIDDellEnvFanStatus)
	snap.PSUStatus = intTable(rv, snmp.OIDDellEnvPSUStatus)
	snap.TempsC = intTable(rv, snmp.OIDDellEnvTempC)

	if n, ok := intScalar(rv, snmp.OIDDellEnvUnitTempC); ok {
		snap.UnitTempC = models.IntOf(n)
	}
	if n, ok := intScalar(rv, snmp.OIDDellEnvUnitTempStat); ok {
		snap.UnitTempState = models.IntOf(n)
	}

	applyEntitySensors(rv, &snap)
	applyHuaweiTemps(rv, &snap)
	applyHostResources(rv, &snap)

	return snap
}

// applyEntitySensors fills temps, fans, and total power from
// ENTITY-SENSOR-MIB, only where the private MIB left gaps.
func applyEntitySensors(rv snmp.RawValues, snap *models.EnvironmentSnapshot) {
	needTemps := len(snap.TempsC) == 0
	needFans := len(snap.FanRPM) == 0
	needPower := !snap.PowerMWTotal.Known
	if !needTemps && !needFans && !needPower {
		return
	}

	types := intTable(rv, snmp.OIDEntPhySensorType)
	if len(types) == 0 {
		return
	}
	values := intTable(rv, snmp.OIDEntPhySensorValue)
	scales := intTable(rv, snmp.OIDEntPhySensorScale)
	precs := intTable(rv, snmp.OIDEntPhySensorPrecision)
	opers := intTable(rv, snmp.OIDEntPhySensorOperStatus)

	temps := map[int]int{}
	fansRPM := map[int]int{}
	fansStatus := map[int]int{}
	wattsMW := 0.0
	wattsSeen := false

	for idx, t := range types {
		raw, ok := values[idx]
		if !ok {
			continue
		}
		v := sensorValue(raw, scales[idx], precs[idx])

		switch t {
		case sensorTypeCelsius:
			if v >= minTempC && v <= maxTempC {
				temps[idx] = int(math.Round(v))
			}
		case sensorTypeRPM:
			if v >= 0 && v <= maxFanRPM {
				fansRPM[idx] = int(math.Round(v))
				// entPhySensorOperStatus ok(1)/unavailable(2)/
				// nonoperational(3) mapped to the Dell convention
				// 2=OK, 1=NOT PRESENT, 3=FAILED.
				oper, present := opers[idx]
				if !present {
					oper = 1
				}
				switch oper {
				case 1:
					fansStatus[idx] = 2
				case 2:
					fansStatus[idx] = 1
				default:
					fansStatus[idx] = 3
				}
			}
		case sensorTypeWatts:
			if v >= 0 && v <= maxWatts {
				wattsMW += v * 1000.0
				wattsSeen = true
			}
		}
	}

	if needTemps && len(temps) > 0 {
		snap.TempsC = temps
	}
	if needFans && len(fansRPM) > 0 {
		snap.FanRPM = fansRPM
		if len(snap.FanStatus) == 0 {
			snap.FanStatus = fansStatus
		}
	}
	if needPower && wattsSeen {
		snap.PowerMWTotal = models.FloatOf(wattsMW)
	}
}

// applyHuaweiTemps is the last temperature fallback, for Huawei/Quidway
// platforms without ENTITY-SENSOR-MIB.
func applyHuaweiTemps(rv snmp.RawValues, snap *models.EnvironmentSnapshot) {
	if len(snap.TempsC) > 0 {
		return
	}
	temps := map[int]int{}
	for idx, v := range intTable(rv, snmp.OIDHuaweiEntityTempC) {
		f := float64(v)
		if f >= minTempC && f <= maxHwTempC {
			temps[idx] = v
		}
	}
	if len(temps) > 0 {
		snap.TempsC = temps
	}
}

// applyHostResources fills CPU and memory from HOST-RESOURCES-MIB when the
// private MIB carried neither. CPU is averaged across processors and used
// for all three load windows.
func applyHostResources(rv snmp.RawValues, snap *models.EnvironmentSnapshot) {
	if !snap.CPU5s.Known && !snap.CPU60s.Known && !snap.CPU300s.Known {
		sum, n := 0.0, 0
		for _, v := range intTable(rv, snmp.OIDHrProcessorLoad) {
			f := float64(v)
			if f >= 0 && f <= 100 {
				sum += f
				n++
			}
		}
		if n > 0 {
			avg := sum / float64(n)
			snap.CPU5s = models.FloatOf(avg)
			snap.CPU60s = models.FloatOf(avg)
			snap.CPU300s = models.FloatOf(avg)
		}
	}

	if snap.MemTotalKB.Known && snap.MemFreeKB.Known {
		return
	}

	ramIdx := map[int]bool{}
	for _, row := range rv.Rows(snmp.OIDHrStorageType) {
		if s, ok := row.Value.String(); ok && strings.Contains(s, snmp.OIDHrStorageRAM) {
			ramIdx[row.Index] = true
		}
	}
	if len(ramIdx) == 0 {
		return
	}

	alloc := intTable(rv, snmp.OIDHrStorageAllocUnits)
	sizes := intTable(rv, snmp.OIDHrStorageSize)
	useds := intTable(rv, snmp.OIDHrStorageUsed)

	totalBytes, usedBytes := 0, 0
	for idx := range ramIdx {
		au, okA := alloc[idx]
		sz, okS := sizes[idx]
		us, okU := useds[idx]
		if !okA || !okS || !okU {
			continue
		}
		totalBytes += au * sz
		usedBytes += au * us
	}
	if totalBytes <= 0 {
		return
	}
	freeBytes := totalBytes - usedBytes
	if freeBytes < 0 {
		freeBytes = 0
	}
	if !snap.MemTotalKB.Known {
		snap.MemTotalKB = models.IntOf(totalBytes / 1024)
	}
	if !snap.MemFreeKB.Known {
		snap.MemFreeKB = models.IntOf(freeBytes / 1024)
	}
}

// sensorValue applies ENTITY-SENSOR-MIB scale and precision to a raw
// reading: value * 10^(scaleExponent - precision).
func sensorValue(raw, scale, precision int) float64 {
	return float64(raw) * math.Pow10(scaleExponent(scale)-precision)
}

// scaleExponent maps entPhySensorScale enums yocto(1)..yotta(17) onto
// base-10 exponents, with units(9) at 10^0.
func scaleExponent(scale int) int {
	if scale < 1 || scale > 17 {
		return 0
	}
	return (scale - 9) * 3
}

// intTable walks one integer column into index -> value.
func intTable(rv snmp.RawValues, base string) map[int]int {
	out := map[int]int{}
	for _, row := range rv.Rows(base) {
		if row.Index < 0 {
			continue
		}
		if n, ok := row.Value.Int(); ok {
			out[row.Index] = n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func intScalar(rv snmp.RawValues, oid string) (int, bool) {
	v, ok := rv.Get(oid)
	if !ok {
		return 0, false
	}
	return v.Int()
}
