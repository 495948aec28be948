// Package manager owns the per-device pipeline: it receives poll
// results, normalizes them into snapshots, applies the rule engine,
// and drives the entity reconciler. All public operations and result
// handling for one device are serialized on that device's state.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/event"
	"github.com/OtisPresley/snmp-switch-manager/internal/metrics"
	"github.com/OtisPresley/snmp-switch-manager/internal/poll"
	"github.com/OtisPresley/snmp-switch-manager/internal/reconcile"
	"github.com/OtisPresley/snmp-switch-manager/internal/rules"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// Poller is the scheduler surface the manager drives. Satisfied by
// *poll.Scheduler.
type Poller interface {
	SetDevice(dev *models.Device)
	SetCategory(dev *models.Device, cat models.PollCategory)
	RemoveDevice(deviceID string)
}

// Writer performs SNMP write operations. Satisfied by *snmp.Client.
type Writer interface {
	SetAlias(ctx context.Context, dev *models.Device, ifIndex int, alias string) error
	SetAdminState(ctx context.Context, dev *models.Device, ifIndex int, up bool) error
}

// Store persists device and rule configuration. May be nil, in which
// case configuration lives only in memory.
type Store interface {
	SaveDevice(ctx context.Context, dev *models.Device, rs models.RuleSet) error
	DeleteDevice(ctx context.Context, deviceID string) error
}

// Manager is the top-level aggregate over all managed devices.
type Manager struct {
	poller     Poller
	writer     Writer
	store      Store
	reconciler *reconcile.Reconciler
	bus        *event.Bus
	logger     *zap.Logger

	mu      sync.RWMutex
	devices map[string]*deviceState
}

// New creates a manager. store may be nil. The poller may also be nil
// at construction and wired afterwards with SetPoller; the manager and
// the scheduler reference each other, so one side has to be attached
// late.
func New(poller Poller, writer Writer, store Store, rec *reconcile.Reconciler, bus *event.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		poller:     poller,
		writer:     writer,
		store:      store,
		reconciler: rec,
		bus:        bus,
		logger:     logger.Named("manager"),
		devices:    make(map[string]*deviceState),
	}
}

// SetPoller attaches the scheduler. Must be called before AddDevice.
func (m *Manager) SetPoller(p Poller) {
	m.poller = p
}

// AddDevice registers a device and starts its polling streams. Adding
// an already-registered ID replaces its configuration.
func (m *Manager) AddDevice(ctx context.Context, dev *models.Device, rs models.RuleSet) error {
	if dev.ID == "" {
		return fmt.Errorf("device id must not be empty")
	}

	m.mu.Lock()
	st, ok := m.devices[dev.ID]
	if !ok {
		st = newDeviceState(dev, rs, m.logger)
		m.devices[dev.ID] = st
	}
	m.mu.Unlock()

	st.mu.Lock()
	st.dev = dev
	st.setRules(rs)
	snap := dev.Clone()
	st.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveDevice(ctx, snap, rs); err != nil {
			return fmt.Errorf("persist device %s: %w", dev.ID, err)
		}
	}

	m.poller.SetDevice(snap)
	m.bus.Publish(ctx, event.Event{Topic: event.TopicDeviceAdded, DeviceID: dev.ID})
	m.logger.Info("device added", zap.String("device", dev.ID), zap.String("host", dev.Host))
	return nil
}

// RemoveDevice stops polling, removes every entity the device owns,
// and forgets its state.
func (m *Manager) RemoveDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	_, ok := m.devices[deviceID]
	delete(m.devices, deviceID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("device %s not registered", deviceID)
	}

	m.poller.RemoveDevice(deviceID)
	if err := m.reconciler.RemoveDevice(deviceID); err != nil {
		return fmt.Errorf("remove entities of %s: %w", deviceID, err)
	}
	if m.store != nil {
		if err := m.store.DeleteDevice(ctx, deviceID); err != nil {
			return fmt.Errorf("delete device %s: %w", deviceID, err)
		}
	}

	m.bus.Publish(ctx, event.Event{Topic: event.TopicDeviceRemoved, DeviceID: deviceID})
	m.logger.Info("device removed", zap.String("device", deviceID))
	return nil
}

// UpdateRules replaces a device's rule set and re-reconciles the
// interface and bandwidth entity sets immediately, without waiting for
// the next poll.
func (m *Manager) UpdateRules(ctx context.Context, deviceID string, rs models.RuleSet) error {
	st, err := m.state(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.setRules(rs)
	snap := st.dev.Clone()
	st.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveDevice(ctx, snap, rs); err != nil {
			return fmt.Errorf("persist rules of %s: %w", deviceID, err)
		}
	}

	m.applyCategory(ctx, st, models.CategoryInterfaces)
	m.applyCategory(ctx, st, models.CategoryBandwidth)
	return nil
}

// UpdateMode switches a category between attributes and sensors mode.
// The mode is part of every entity key, so the reconciler replaces the
// category's entities wholesale.
func (m *Manager) UpdateMode(ctx context.Context, deviceID string, cat models.PollCategory, mode models.CategoryMode) error {
	st, err := m.state(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	cc := st.dev.CategoryConfigOrDefault(cat)
	cc.Mode = mode
	st.dev.Categories[cat] = cc
	st.mu.Unlock()

	m.applyCategory(ctx, st, cat)
	return nil
}

// UpdateInterval changes one category's poll interval. Only that
// category's stream is restarted.
func (m *Manager) UpdateInterval(ctx context.Context, deviceID string, cat models.PollCategory, interval time.Duration) error {
	st, err := m.state(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	cc := st.dev.CategoryConfigOrDefault(cat)
	cc.Interval = models.ClampInterval(interval)
	st.dev.Categories[cat] = cc
	snap := st.dev.Clone()
	st.mu.Unlock()

	m.poller.SetCategory(snap, cat)
	return nil
}

// SetAlias writes ifAlias on the device and updates the local record
// so the change is visible before the next interfaces poll.
func (m *Manager) SetAlias(ctx context.Context, deviceID string, ifIndex int, alias string) error {
	st, err := m.state(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	dev := st.dev.Clone()
	st.mu.Unlock()

	if err := m.writer.SetAlias(ctx, dev, ifIndex, alias); err != nil {
		return err
	}

	st.mu.Lock()
	for i := range st.ifaces {
		if st.ifaces[i].Record.IfIndex == ifIndex {
			st.ifaces[i].Record.Alias = alias
		}
	}
	st.mu.Unlock()

	m.applyCategory(ctx, st, models.CategoryInterfaces)
	return nil
}

// SetAdminState writes ifAdminStatus on the device and updates the
// local record.
func (m *Manager) SetAdminState(ctx context.Context, deviceID string, ifIndex int, up bool) error {
	st, err := m.state(deviceID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	dev := st.dev.Clone()
	st.mu.Unlock()

	if err := m.writer.SetAdminState(ctx, dev, ifIndex, up); err != nil {
		return err
	}

	status := models.StatusDown
	if up {
		status = models.StatusUp
	}
	st.mu.Lock()
	for i := range st.ifaces {
		if st.ifaces[i].Record.IfIndex == ifIndex {
			st.ifaces[i].Record.AdminStatus = models.IntOf(status)
		}
	}
	st.mu.Unlock()

	m.applyCategory(ctx, st, models.CategoryInterfaces)
	return nil
}

// Diagnostics returns the device's latest diagnostics snapshot, or nil
// before the first successful diagnostics poll.
func (m *Manager) Diagnostics(deviceID string) *models.DiagnosticsSnapshot {
	st, err := m.state(deviceID)
	if err != nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.diag
}

// Interfaces returns the latest classified interface records.
func (m *Manager) Interfaces(deviceID string) []models.InterfaceRecord {
	st, err := m.state(deviceID)
	if err != nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]models.InterfaceRecord, 0, len(st.ifaces))
	for _, a := range st.ifaces {
		out = append(out, a.Record)
	}
	return out
}

// HandleResult implements poll.Sink. Results arrive on scheduler
// stream goroutines; the device state mutex serializes them against
// public operations.
func (m *Manager) HandleResult(res poll.Result) {
	ctx := context.Background()
	st, err := m.state(res.Device.ID)
	if err != nil {
		return // device removed while the poll was in flight
	}

	// The stale guard, sequence note, and snapshot ingest share one
	// critical section: once a completion is accepted as newest, its
	// snapshot is authoritative before the lock is released, so a
	// superseded completion can never ingest after its successor.
	st.mu.Lock()
	if st.staleResult(res) {
		st.mu.Unlock()
		return
	}
	st.noteResult(res)

	var tr transition
	if res.Err == nil {
		tr.wasUnavailable = st.unavailable[res.Category]
		delete(st.unavailable, res.Category)
		tr.nowUp = len(st.unavailable) == 0
		st.ingest(res)
	} else if res.Unavailable {
		tr.alreadyDown = st.unavailable[res.Category]
		st.unavailable[res.Category] = true
		tr.othersDown = st.anyUnavailableExcept(res.Category)
	}
	st.mu.Unlock()

	result := "success"
	if res.Err != nil {
		result = string(res.Kind)
	}
	metrics.RecordPoll(string(res.Category), result, res.Duration)

	if res.Err != nil {
		m.handleFailure(ctx, st, res, tr)
		return
	}
	m.handleSuccess(ctx, st, res, tr)
}

// transition captures the availability bookkeeping computed while the
// device state lock was held, for the event publishing that runs after.
type transition struct {
	wasUnavailable bool
	nowUp          bool
	alreadyDown    bool
	othersDown     bool
}

func (m *Manager) state(deviceID string) (*deviceState, error) {
	m.mu.RLock()
	st, ok := m.devices[deviceID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("device %s not registered", deviceID)
	}
	return st, nil
}

func (m *Manager) handleFailure(ctx context.Context, st *deviceState, res poll.Result, tr transition) {
	m.bus.Publish(ctx, event.Event{
		Topic:    event.TopicPollFailed,
		DeviceID: res.Device.ID,
		Payload: event.PollFailedPayload{
			Category: string(res.Category),
			Kind:     string(res.Kind),
			Failures: res.Failures,
		},
	})

	if !res.Unavailable || tr.alreadyDown {
		return
	}

	// Snapshots are retained; the category's entities are marked
	// unavailable, never removed, so a recovering device picks up
	// where it left off.
	m.applyCategory(ctx, st, res.Category)
	if res.Category == models.CategoryBandwidth || res.Category == models.CategoryInterfaces {
		m.applyCategory(ctx, st, otherOf(res.Category))
	}

	if !tr.othersDown {
		m.bus.Publish(ctx, event.Event{Topic: event.TopicDeviceUnavailable, DeviceID: res.Device.ID})
	}
}

func otherOf(cat models.PollCategory) models.PollCategory {
	if cat == models.CategoryInterfaces {
		return models.CategoryBandwidth
	}
	return models.CategoryInterfaces
}

func (m *Manager) handleSuccess(ctx context.Context, st *deviceState, res poll.Result, tr transition) {
	m.applyCategory(ctx, st, res.Category)

	// The interfaces baseline feeds bandwidth selection, and the
	// vendor family from diagnostics reshapes the baseline itself.
	switch res.Category {
	case models.CategoryInterfaces:
		m.applyCategory(ctx, st, models.CategoryBandwidth)
	case models.CategoryDiagnostics:
		m.applyCategory(ctx, st, models.CategoryInterfaces)
		m.applyCategory(ctx, st, models.CategoryBandwidth)
	}

	if tr.wasUnavailable && tr.nowUp {
		m.bus.Publish(ctx, event.Event{Topic: event.TopicDeviceRecovered, DeviceID: res.Device.ID})
	}
}

// applyCategory recomputes the desired entity set for one category and
// reconciles it against the registry.
func (m *Manager) applyCategory(ctx context.Context, st *deviceState, cat models.PollCategory) {
	st.mu.Lock()
	desired := st.desired(cat)
	deviceID := st.dev.ID
	st.mu.Unlock()

	plan, err := m.reconciler.Apply(deviceID, cat, desired)
	if err != nil {
		m.logger.Error("reconcile failed",
			zap.String("device", deviceID),
			zap.String("category", string(cat)),
			zap.Error(err))
		return
	}
	if plan.Empty() {
		return
	}

	m.bus.Publish(ctx, event.Event{
		Topic:    event.TopicEntitiesChanged,
		DeviceID: deviceID,
		Payload: event.EntitiesChangedPayload{
			Category: string(cat),
			Created:  len(plan.Create),
			Updated:  len(plan.Update),
			Removed:  len(plan.Remove),
		},
	})
}

// compileRules builds the two independent rule engines from a rule set.
func compileRules(logger *zap.Logger, rs models.RuleSet) (iface, bw *rules.Set) {
	iface = rules.NewSet(logger, rs.InterfaceInclude, rs.InterfaceExclude, rs.InterfaceRename)
	bw = rules.NewSet(logger, rs.BandwidthInclude, rs.BandwidthExclude, nil)
	return iface, bw
}
