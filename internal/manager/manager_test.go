package manager

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/event"
	"github.com/OtisPresley/snmp-switch-manager/internal/poll"
	"github.com/OtisPresley/snmp-switch-manager/internal/reconcile"
	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

type fakePoller struct {
	mu       sync.Mutex
	set      []string
	category []models.PollCategory
	removed  []string
}

func (f *fakePoller) SetDevice(dev *models.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, dev.ID)
}

func (f *fakePoller) SetCategory(dev *models.Device, cat models.PollCategory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.category = append(f.category, cat)
}

func (f *fakePoller) RemoveDevice(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, deviceID)
}

type fakeWriter struct {
	aliases map[int]string
	admin   map[int]bool
}

func (f *fakeWriter) SetAlias(ctx context.Context, dev *models.Device, ifIndex int, alias string) error {
	if f.aliases == nil {
		f.aliases = make(map[int]string)
	}
	f.aliases[ifIndex] = alias
	return nil
}

func (f *fakeWriter) SetAdminState(ctx context.Context, dev *models.Device, ifIndex int, up bool) error {
	if f.admin == nil {
		f.admin = make(map[int]bool)
	}
	f.admin[ifIndex] = up
	return nil
}

type memRegistry struct {
	mu       sync.Mutex
	entities map[models.EntityKey]*models.EntityDescriptor
}

func newMemRegistry() *memRegistry {
	return &memRegistry{entities: make(map[models.EntityKey]*models.EntityDescriptor)}
}

func (m *memRegistry) List(deviceID string, cat models.PollCategory) []*models.EntityDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EntityDescriptor
	for _, d := range m.entities {
		if d.Key.DeviceID == deviceID && d.Key.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

func (m *memRegistry) Create(desc *models.EntityDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[desc.Key] = desc
	return nil
}

func (m *memRegistry) Update(desc *models.EntityDescriptor) error { return m.Create(desc) }

func (m *memRegistry) Remove(key models.EntityKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, key)
	return nil
}

func (m *memRegistry) byName(name string) *models.EntityDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.entities {
		if d.Name == name {
			return d
		}
	}
	return nil
}

type harness struct {
	mgr    *Manager
	reg    *memRegistry
	poller *fakePoller
	writer *fakeWriter
	bus    *event.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	reg := newMemRegistry()
	poller := &fakePoller{}
	writer := &fakeWriter{}
	bus := event.NewBus(logger)
	mgr := New(poller, writer, nil, reconcile.New(reg, logger), bus, logger)
	return &harness{mgr: mgr, reg: reg, poller: poller, writer: writer, bus: bus}
}

func managedDevice(cats ...models.PollCategory) *models.Device {
	dev := &models.Device{
		ID:         "sw1",
		Name:       "lab-sw-1",
		Host:       "192.0.2.10",
		Version:    models.SNMPv2c,
		Creds:      models.Credentials{Community: "public"},
		Categories: make(map[models.PollCategory]models.CategoryConfig),
	}
	for _, cat := range cats {
		dev.Categories[cat] = models.CategoryConfig{
			Enabled:  true,
			Interval: models.MinPollInterval,
			Mode:     models.ModeAttributes,
		}
	}
	return dev
}

// interfacesRaw builds a raw value map with two ethernet ports and one
// VLAN interface.
func interfacesRaw() snmp.RawValues {
	rv := snmp.RawValues{}
	add := func(base string, idx int, v any) {
		rv[base+"."+strconv.Itoa(idx)] = snmp.ValueOf(v)
	}
	for i, name := range map[int]string{1: "Gi1/0/1", 2: "Gi1/0/2", 10: "Vlan10"} {
		add(snmp.OIDIfDescr, i, name)
		add(snmp.OIDIfName, i, name)
	}
	add(snmp.OIDIfType, 1, 6)
	add(snmp.OIDIfType, 2, 6)
	add(snmp.OIDIfType, 10, 53)
	add(snmp.OIDIfHighSpeed, 1, 1000) // 1 Gbps
	add(snmp.OIDIfAdminStatus, 1, models.StatusUp)
	add(snmp.OIDIfOperStatus, 1, models.StatusUp)
	return rv
}

func result(dev *models.Device, cat models.PollCategory, seq, gen uint64, raw snmp.RawValues) poll.Result {
	return poll.Result{
		Device:     dev,
		Category:   cat,
		Seq:        seq,
		Generation: gen,
		Raw:        raw,
		TakenAt:    time.Now(),
	}
}

func TestInterfacesPollCreatesEntities(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	ent := h.reg.byName("Gi1/0/1")
	if ent == nil {
		t.Fatal("entity Gi1/0/1 not created")
	}
	if got := ent.Attributes["speed_bps"]; got != "1000000000" {
		t.Errorf("speed_bps = %q, want 1000000000", got)
	}
	if !ent.Available {
		t.Error("fresh entity must be available")
	}
	if got := len(h.reg.List(dev.ID, models.CategoryInterfaces)); got != 3 {
		t.Errorf("entities = %d, want 3", got)
	}
}

func TestExcludeDominatesInclude(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	rs := models.RuleSet{
		InterfaceInclude: []models.Rule{{Type: models.RuleInclude, Match: models.MatchStartsWith, Pattern: "Vlan"}},
		InterfaceExclude: []models.Rule{{Type: models.RuleExclude, Match: models.MatchContains, Pattern: "vlan10"}},
	}
	if err := h.mgr.AddDevice(context.Background(), dev, rs); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	if h.reg.byName("Vlan10") != nil {
		t.Error("Vlan10 visible despite matching an exclude rule")
	}
	if h.reg.byName("Gi1/0/1") == nil {
		t.Error("unrelated interface lost")
	}
}

func TestRenameChain(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	rs := models.RuleSet{
		InterfaceRename: []models.Rule{
			{Type: models.RuleRename, Match: models.MatchStartsWith, Pattern: "Gi", Replacement: "GigE "},
			{Type: models.RuleRename, Match: models.MatchEndsWith, Pattern: "1", Replacement: "-A"},
		},
	}
	if err := h.mgr.AddDevice(context.Background(), dev, rs); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	if h.reg.byName("GigE 1/0/1-A") == nil {
		t.Error("rename chain did not produce GigE 1/0/1-A")
	}
}

func TestUpdateRulesReconcilesImmediately(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	rs := models.RuleSet{
		InterfaceExclude: []models.Rule{{Type: models.RuleExclude, Match: models.MatchStartsWith, Pattern: "Gi1/0/2"}},
	}
	if err := h.mgr.UpdateRules(context.Background(), dev.ID, rs); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}

	if h.reg.byName("Gi1/0/2") != nil {
		t.Error("excluded interface still registered after rule update")
	}
	if h.reg.byName("Gi1/0/1") == nil {
		t.Error("unexcluded interface missing after rule update")
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 2, 1, interfacesRaw()))

	// A completion from an earlier sequence must not shrink the set.
	stale := snmp.RawValues{
		snmp.OIDIfDescr + ".1": snmp.ValueOf("Gi1/0/1"),
	}
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, stale))

	if got := len(h.reg.List(dev.ID, models.CategoryInterfaces)); got != 3 {
		t.Errorf("entities = %d after stale completion, want 3", got)
	}

	// Same for an older generation, even with a higher sequence.
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 9, 0, stale))
	if got := len(h.reg.List(dev.ID, models.CategoryInterfaces)); got != 3 {
		t.Errorf("entities = %d after old-generation completion, want 3", got)
	}
}

func TestFailureMarksUnavailableKeepsEntities(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	unavailEvents := 0
	h.bus.Subscribe(event.TopicDeviceUnavailable, func(ctx context.Context, ev event.Event) {
		unavailEvents++
	})

	fail := result(dev, models.CategoryInterfaces, 2, 1, nil)
	fail.Err = &snmp.FetchError{Kind: snmp.KindTimeout, Op: "fetch interfaces"}
	fail.Kind = snmp.KindTimeout
	fail.Failures = poll.StaleThreshold
	fail.Unavailable = true
	h.mgr.HandleResult(fail)

	ents := h.reg.List(dev.ID, models.CategoryInterfaces)
	if len(ents) != 3 {
		t.Fatalf("entities = %d after staleness, want 3 (never removed)", len(ents))
	}
	for _, e := range ents {
		if e.Available {
			t.Errorf("entity %s still available after staleness", e.Key)
		}
	}
	if unavailEvents != 1 {
		t.Errorf("device.unavailable events = %d, want 1", unavailEvents)
	}

	// Recovery flips availability back without churn.
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 3, 1, interfacesRaw()))
	for _, e := range h.reg.List(dev.ID, models.CategoryInterfaces) {
		if !e.Available {
			t.Errorf("entity %s unavailable after recovery", e.Key)
		}
	}
}

func TestRemoveDeviceRemovesEntities(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	if err := h.mgr.RemoveDevice(context.Background(), dev.ID); err != nil {
		t.Fatalf("RemoveDevice: %v", err)
	}
	if got := len(h.reg.List(dev.ID, models.CategoryInterfaces)); got != 0 {
		t.Errorf("entities = %d after removal, want 0", got)
	}
	if len(h.poller.removed) != 1 || h.poller.removed[0] != dev.ID {
		t.Errorf("poller removals = %v, want [%s]", h.poller.removed, dev.ID)
	}
}

func TestSetAliasWritesAndUpdatesRecord(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	h.mgr.HandleResult(result(dev, models.CategoryInterfaces, 1, 1, interfacesRaw()))

	if err := h.mgr.SetAlias(context.Background(), dev.ID, 1, "uplink"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if h.writer.aliases[1] != "uplink" {
		t.Errorf("written alias = %q, want uplink", h.writer.aliases[1])
	}
	ent := h.reg.byName("Gi1/0/1")
	if ent == nil {
		t.Fatal("entity missing")
	}
	if ent.Attributes["alias"] != "uplink" {
		t.Errorf("entity alias = %q before next poll, want uplink", ent.Attributes["alias"])
	}
}

func TestUpdateIntervalRestartsOnlyThatCategory(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryInterfaces, models.CategoryBandwidth)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	if err := h.mgr.UpdateInterval(context.Background(), dev.ID, models.CategoryBandwidth, 60*time.Second); err != nil {
		t.Fatalf("UpdateInterval: %v", err)
	}
	if len(h.poller.category) != 1 || h.poller.category[0] != models.CategoryBandwidth {
		t.Errorf("restarted categories = %v, want [bandwidth]", h.poller.category)
	}
}

// configReadingPoller reads the category map of every device handed to
// it, the way the scheduler does when starting streams, without taking
// any manager lock.
type configReadingPoller struct {
	mu   sync.Mutex
	last *models.Device
}

func (p *configReadingPoller) SetDevice(dev *models.Device) {
	for _, cat := range models.AllCategories {
		_ = dev.CategoryConfigOrDefault(cat)
	}
	p.mu.Lock()
	p.last = dev
	p.mu.Unlock()
}

func (p *configReadingPoller) SetCategory(dev *models.Device, cat models.PollCategory) {
	_ = dev.CategoryConfigOrDefault(cat)
	p.mu.Lock()
	p.last = dev
	p.mu.Unlock()
}

func (p *configReadingPoller) RemoveDevice(deviceID string) {}

func (p *configReadingPoller) lastDevice() *models.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func TestConcurrentSettingsUpdates(t *testing.T) {
	h := newHarness(t)
	poller := &configReadingPoller{}
	h.mgr.SetPoller(poller)

	dev := managedDevice(models.CategoryBandwidth, models.CategoryPoE)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := h.mgr.UpdateMode(context.Background(), dev.ID, models.CategoryPoE, models.ModeSensors); err != nil {
				t.Errorf("UpdateMode: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := h.mgr.UpdateInterval(context.Background(), dev.ID, models.CategoryBandwidth, time.Minute); err != nil {
				t.Errorf("UpdateInterval: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := dev.CategoryConfigOrDefault(models.CategoryPoE).Mode; got != models.ModeSensors {
		t.Errorf("poe mode = %q, want %q", got, models.ModeSensors)
	}
	if got := dev.CategoryConfigOrDefault(models.CategoryBandwidth).Interval; got != time.Minute {
		t.Errorf("bandwidth interval = %v, want %v", got, time.Minute)
	}
}

func TestPollerReceivesDeviceSnapshot(t *testing.T) {
	h := newHarness(t)
	poller := &configReadingPoller{}
	h.mgr.SetPoller(poller)

	dev := managedDevice(models.CategoryBandwidth, models.CategoryPoE)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	if err := h.mgr.UpdateInterval(context.Background(), dev.ID, models.CategoryBandwidth, time.Minute); err != nil {
		t.Fatalf("UpdateInterval: %v", err)
	}
	snap := poller.lastDevice()
	if snap == dev {
		t.Fatal("poller must receive a copy, not the live device")
	}

	if err := h.mgr.UpdateMode(context.Background(), dev.ID, models.CategoryPoE, models.ModeSensors); err != nil {
		t.Fatalf("UpdateMode: %v", err)
	}
	if got := snap.CategoryConfigOrDefault(models.CategoryPoE).Mode; got != models.ModeAttributes {
		t.Errorf("snapshot poe mode = %q after later update, want %q", got, models.ModeAttributes)
	}
}

func diagnosticsRaw(sysName string) snmp.RawValues {
	return snmp.RawValues{
		snmp.OIDSysName:  snmp.ValueOf(sysName),
		snmp.OIDSysDescr: snmp.ValueOf("generic switch, 1.0"),
	}
}

func TestConcurrentCompletionsKeepNewestSnapshot(t *testing.T) {
	h := newHarness(t)
	dev := managedDevice(models.CategoryDiagnostics)
	if err := h.mgr.AddDevice(context.Background(), dev, models.RuleSet{}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for seq := uint64(1); seq <= n; seq++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			h.mgr.HandleResult(result(dev, models.CategoryDiagnostics, seq, 1, diagnosticsRaw("sw-"+strconv.FormatUint(seq, 10))))
		}(seq)
	}
	wg.Wait()

	// The highest sequence number passes the stale guard no matter
	// when it runs, and everything arriving after it is discarded, so
	// its snapshot must be the authoritative one.
	diag := h.mgr.Diagnostics(dev.ID)
	if diag == nil {
		t.Fatal("no diagnostics snapshot")
	}
	if diag.SysName != "sw-20" {
		t.Errorf("SysName = %q, want sw-20", diag.SysName)
	}
}
