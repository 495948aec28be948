package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	// Second run must be a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestDeviceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dev := &models.Device{
		ID:      "dev-1",
		Name:    "lab-sw-1",
		Host:    "192.0.2.10",
		Port:    1161,
		Version: models.SNMPv3,
		Creds: models.Credentials{
			Username:       "monitor",
			AuthProtocol:   "SHA",
			AuthPassphrase: "authpass",
			SecurityLevel:  "authPriv",
		},
		Categories: map[models.PollCategory]models.CategoryConfig{
			models.CategoryInterfaces: {Enabled: true, Interval: 60 * time.Second, Mode: models.ModeAttributes},
		},
		CustomOIDs:            map[string]string{"hostname": "1.3.6.1.4.1.9.2.1.3.0"},
		DisabledVendorFilters: []string{"cisco_sg_vlan_admin_or_oper"},
	}
	rs := models.RuleSet{
		InterfaceExclude: []models.Rule{{Type: models.RuleExclude, Match: models.MatchStartsWith, Pattern: "Vlan"}},
	}

	if err := s.SaveDevice(ctx, dev, rs); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	recs, err := s.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("devices = %d, want 1", len(recs))
	}
	got := recs[0].Device
	if got.ID != dev.ID || got.Host != dev.Host || got.Port != dev.Port || got.Version != dev.Version {
		t.Errorf("identity fields differ: %+v", got)
	}
	if got.Creds.Username != "monitor" || got.Creds.SecurityLevel != "authPriv" {
		t.Errorf("credentials differ: %+v", got.Creds)
	}
	cc := got.Categories[models.CategoryInterfaces]
	if !cc.Enabled || cc.Interval != 60*time.Second {
		t.Errorf("category config differs: %+v", cc)
	}
	if got.CustomOIDs["hostname"] != "1.3.6.1.4.1.9.2.1.3.0" {
		t.Errorf("custom OIDs differ: %v", got.CustomOIDs)
	}
	if len(recs[0].Rules.InterfaceExclude) != 1 {
		t.Errorf("rules differ: %+v", recs[0].Rules)
	}
}

func TestSaveDeviceUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dev := &models.Device{ID: "dev-1", Name: "first", Host: "192.0.2.10", Version: models.SNMPv2c}
	if err := s.SaveDevice(ctx, dev, models.RuleSet{}); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}
	dev.Name = "renamed"
	if err := s.SaveDevice(ctx, dev, models.RuleSet{}); err != nil {
		t.Fatalf("SaveDevice (update): %v", err)
	}

	recs, err := s.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices: %v", err)
	}
	if len(recs) != 1 || recs[0].Device.Name != "renamed" {
		t.Errorf("got %d devices, name %q", len(recs), recs[0].Device.Name)
	}
}

func TestEntityRegistryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	reg := NewEntityRegistry(s, zap.NewNop())

	desc := &models.EntityDescriptor{
		Key: models.EntityKey{
			DeviceID: "dev-1",
			Category: models.CategoryInterfaces,
			Kind:     models.KindInterface,
			Mode:     models.ModeAttributes,
			Ref:      "1",
		},
		Name:       "Gi1/0/1",
		Attributes: map[string]string{"oper_status": "Up"},
		Available:  true,
	}
	if err := reg.Create(desc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got := reg.List("dev-1", models.CategoryInterfaces)
	if len(got) != 1 {
		t.Fatalf("entities = %d, want 1", len(got))
	}
	if !got[0].Equal(desc) {
		t.Errorf("round trip differs: %+v vs %+v", got[0], desc)
	}

	desc.Name = "Uplink"
	desc.Available = false
	if err := reg.Update(desc); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got = reg.List("dev-1", models.CategoryInterfaces)
	if len(got) != 1 || got[0].Name != "Uplink" || got[0].Available {
		t.Errorf("update not reflected: %+v", got[0])
	}

	if err := reg.Remove(desc.Key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := reg.List("dev-1", models.CategoryInterfaces); len(got) != 0 {
		t.Errorf("entities = %d after remove, want 0", len(got))
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	reg := NewEntityRegistry(s, zap.NewNop())

	dev := &models.Device{ID: "dev-1", Name: "sw", Host: "192.0.2.10", Version: models.SNMPv2c}
	if err := s.SaveDevice(ctx, dev, models.RuleSet{}); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}
	if err := reg.Create(&models.EntityDescriptor{
		Key: models.EntityKey{
			DeviceID: "dev-1",
			Category: models.CategoryInterfaces,
			Kind:     models.KindInterface,
			Mode:     models.ModeAttributes,
			Ref:      "1",
		},
		Name:       "Gi1/0/1",
		Attributes: map[string]string{},
		Available:  true,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.DeleteDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if devs, _ := s.LoadDevices(ctx); len(devs) != 0 {
		t.Errorf("devices = %d after delete, want 0", len(devs))
	}
	if ents := reg.List("dev-1", models.CategoryInterfaces); len(ents) != 0 {
		t.Errorf("entities = %d after delete, want 0", len(ents))
	}
}
