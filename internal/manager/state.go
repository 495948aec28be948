package manager

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/classify"
	"github.com/OtisPresley/snmp-switch-manager/internal/normalize"
	"github.com/OtisPresley/snmp-switch-manager/internal/poll"
	"github.com/OtisPresley/snmp-switch-manager/internal/rules"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// counterState holds the previous octet counters of one interface for
// rate derivation.
type counterState struct {
	rx, tx  uint64
	rxKnown bool
	txKnown bool
}

// deviceState is the per-device aggregate. Everything behind mu is
// owned jointly by the device's scheduler streams and the manager's
// public operations.
type deviceState struct {
	mu sync.Mutex

	dev     *models.Device
	ruleSet models.RuleSet

	ifaceRules *rules.Set
	bwRules    *rules.Set

	vendor models.VendorFamily

	diag   *models.DiagnosticsSnapshot
	ifaces []classify.Annotated
	bw     *models.BandwidthSnapshot
	env    *models.EnvironmentSnapshot
	poe    *models.PoESnapshot

	prevCounters map[int]counterState
	prevAt       time.Time
	prevHC       bool

	// lastGen and lastSeq implement the out-of-order completion
	// guard: a result from an older stream generation, or with a
	// sequence at or below the last applied one, is discarded.
	lastGen map[models.PollCategory]uint64
	lastSeq map[models.PollCategory]uint64

	unavailable map[models.PollCategory]bool

	logger *zap.Logger
}

func newDeviceState(dev *models.Device, rs models.RuleSet, logger *zap.Logger) *deviceState {
	st := &deviceState{
		dev:          dev,
		vendor:       models.VendorGeneric,
		prevCounters: make(map[int]counterState),
		lastGen:      make(map[models.PollCategory]uint64),
		lastSeq:      make(map[models.PollCategory]uint64),
		unavailable:  make(map[models.PollCategory]bool),
		logger:       logger.With(zap.String("device", dev.ID)),
	}
	st.setRules(rs)
	return st
}

// setRules recompiles both rule engines. Caller holds mu.
func (st *deviceState) setRules(rs models.RuleSet) {
	st.ruleSet = rs
	st.ifaceRules, st.bwRules = compileRules(st.logger, rs)
}

// staleResult reports whether a completion belongs to a superseded
// stream. Caller holds mu.
func (st *deviceState) staleResult(res poll.Result) bool {
	if res.Generation < st.lastGen[res.Category] {
		return true
	}
	if res.Generation == st.lastGen[res.Category] && res.Seq <= st.lastSeq[res.Category] {
		return true
	}
	return false
}

// noteResult records the sequence bookkeeping. Caller holds mu.
func (st *deviceState) noteResult(res poll.Result) {
	st.lastGen[res.Category] = res.Generation
	st.lastSeq[res.Category] = res.Seq
}

// anyUnavailableExcept reports whether any category other than cat is
// currently unavailable. Caller holds mu.
func (st *deviceState) anyUnavailableExcept(cat models.PollCategory) bool {
	for c, down := range st.unavailable {
		if c != cat && down {
			return true
		}
	}
	return false
}

// ingest normalizes a successful poll into the matching snapshot.
// Caller holds mu.
func (st *deviceState) ingest(res poll.Result) {
	switch res.Category {
	case models.CategoryInterfaces:
		recs := normalize.Interfaces(res.Raw)
		st.ifaces = classify.Classify(recs, st.vendor, st.dev.DisabledVendorFilters)
	case models.CategoryDiagnostics:
		snap := normalize.Diagnostics(res.Raw, st.dev, res.TakenAt)
		st.diag = &snap
		if snap.Vendor != st.vendor {
			st.vendor = snap.Vendor
			// Re-classify with the now-known vendor so candidate
			// selection does not wait for the next interfaces poll.
			if len(st.ifaces) > 0 {
				recs := make([]models.InterfaceRecord, 0, len(st.ifaces))
				for _, a := range st.ifaces {
					recs = append(recs, a.Record)
				}
				st.ifaces = classify.Classify(recs, st.vendor, st.dev.DisabledVendorFilters)
			}
		}
	case models.CategoryBandwidth:
		snap := normalize.Bandwidth(res.Raw, res.TakenAt)
		st.deriveRates(&snap)
		st.bw = &snap
	case models.CategoryEnvironmental:
		snap := normalize.Environment(res.Raw, res.TakenAt)
		st.env = &snap
	case models.CategoryPoE:
		snap := normalize.PoE(res.Raw, res.TakenAt)
		st.poe = &snap
	}
}

// counter32Span is the modulus of the 32-bit octet counters.
const counter32Span = 1 << 32

// deriveRates fills per-port bit rates from the delta against the
// previous poll's counters. 32-bit counters wrap at 2^32 and the delta
// is corrected for a single wrap; a 64-bit counter that went backwards
// means the device rebooted, so that sample yields no rate. Switching
// between 32-bit and HC counters resets the baseline.
func (st *deviceState) deriveRates(snap *models.BandwidthSnapshot) {
	elapsed := snap.TakenAt.Sub(st.prevAt).Seconds()
	usable := !st.prevAt.IsZero() && elapsed > 0 && snap.UseHC == st.prevHC

	next := make(map[int]counterState, len(snap.Ports))
	for ifIndex, sample := range snap.Ports {
		cs := counterState{
			rx: sample.RxOctets.V, rxKnown: sample.RxOctets.Known,
			tx: sample.TxOctets.V, txKnown: sample.TxOctets.Known,
		}
		next[ifIndex] = cs

		if !usable {
			continue
		}
		prev, ok := st.prevCounters[ifIndex]
		if !ok {
			continue
		}
		if cs.rxKnown && prev.rxKnown {
			if bps, ok := rateBPS(prev.rx, cs.rx, elapsed, snap.UseHC); ok {
				sample.RxBPS = models.FloatOf(bps)
			}
		}
		if cs.txKnown && prev.txKnown {
			if bps, ok := rateBPS(prev.tx, cs.tx, elapsed, snap.UseHC); ok {
				sample.TxBPS = models.FloatOf(bps)
			}
		}
		snap.Ports[ifIndex] = sample
	}

	st.prevCounters = next
	st.prevAt = snap.TakenAt
	st.prevHC = snap.UseHC
}

func rateBPS(prev, cur uint64, elapsed float64, hc bool) (float64, bool) {
	var delta uint64
	switch {
	case cur >= prev:
		delta = cur - prev
	case !hc:
		delta = cur + counter32Span - prev
	default:
		return 0, false
	}
	return float64(delta) * 8 / elapsed, true
}
