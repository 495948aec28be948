package normalize

import (
	"time"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// Bandwidth builds the per-interface counter snapshot of one bandwidth
// fetch. When any 64-bit HC rows came back those are used for every port
// and UseHC is set; otherwise the legacy 32-bit counters are, and the rate
// derivation has to correct for wraps. Rates themselves need two
// consecutive snapshots and are filled in by the caller.
func Bandwidth(rv snmp.RawValues, now time.Time) models.BandwidthSnapshot {
	snap := models.BandwidthSnapshot{
		Ports:   map[int]models.BandwidthSample{},
		TakenAt: now,
	}

	hcIn := rv.Rows(snmp.OIDIfHCInOctets)
	hcOut := rv.Rows(snmp.OIDIfHCOutOctets)
	if len(hcIn) > 0 || len(hcOut) > 0 {
		snap.UseHC = true
		fillOctets(hcIn, snap.Ports, func(s *models.BandwidthSample, v uint64) { s.RxOctets = models.Uint64Of(v) })
		fillOctets(hcOut, snap.Ports, func(s *models.BandwidthSample, v uint64) { s.TxOctets = models.Uint64Of(v) })
		return snap
	}

	fillOctets(rv.Rows(snmp.OIDIfInOctets), snap.Ports, func(s *models.BandwidthSample, v uint64) { s.RxOctets = models.Uint64Of(v) })
	fillOctets(rv.Rows(snmp.OIDIfOutOctets), snap.Ports, func(s *models.BandwidthSample, v uint64) { s.TxOctets = models.Uint64Of(v) })
	return snap
}

func fillOctets(rows []snmp.Row, ports map[int]models.BandwidthSample, set func(*models.BandwidthSample, uint64)) {
	for _, row := range rows {
		if row.Index <= 0 {
			continue
		}
		v, ok := row.Value.Uint64()
		if !ok {
			continue
		}
		s := ports[row.Index]
		set(&s, v)
		ports[row.Index] = s
	}
}
