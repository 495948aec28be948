package normalize

import (
	"math"
	"time"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// PoE builds the power-over-ethernet snapshot from one fetch. PSE groups
// are summed: budgets are reported in watts, consumption in milliwatts,
// and health is the worst status across groups with unknown codes treated
// as faulty. Multi-row and scalar-only agents produce identical results
// because the fetch covers both layouts.
func PoE(rv snmp.RawValues, now time.Time) models.PoESnapshot {
	snap := models.PoESnapshot{TakenAt: now}

	budgetW := 0.0
	budgetSeen := false
	for _, row := range rv.Rows(snmp.OIDPethMainPsePower) {
		if v, ok := row.Value.Float(); ok && v >= 0 {
			budgetW += v
			budgetSeen = true
		}
	}

	usedMW := 0.0
	usedSeen := false
	for _, row := range rv.Rows(snmp.OIDPethMainPseConsumptionMW) {
		if v, ok := row.Value.Float(); ok && v >= 0 {
			usedMW += v
			usedSeen = true
		}
	}

	worst := 0
	for _, row := range rv.Rows(snmp.OIDPethMainPseOperStatus) {
		v, ok := row.Value.Int()
		if !ok {
			continue
		}
		if v < models.PoEHealthy || v > models.PoEFaulty {
			v = models.PoEFaulty
		}
		if v > worst {
			worst = v
		}
	}

	if budgetSeen {
		snap.BudgetW = models.FloatOf(budgetW)
	}
	if usedSeen {
		snap.UsedW = models.FloatOf(round3(usedMW / 1000.0))
	}
	if budgetSeen && usedSeen {
		avail := budgetW - usedMW/1000.0
		if avail < 0 {
			avail = 0
		}
		snap.AvailableW = models.FloatOf(round3(avail))
	}
	if worst > 0 {
		snap.Health = models.IntOf(worst)
	}

	// Dell N-series per-port delivered power, keyed by ifIndex.
	for _, row := range rv.Rows(snmp.OIDDellPoEPortPowerMW) {
		if row.Index <= 0 {
			continue
		}
		if mw, ok := row.Value.Float(); ok {
			if snap.PortPowerMW == nil {
				snap.PortPowerMW = map[int]float64{}
			}
			snap.PortPowerMW[row.Index] = mw
		}
	}

	return snap
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
