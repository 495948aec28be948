package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// deviceConfig is the JSON blob stored in devices.config. Credentials,
// category settings, and per-device overrides are schema-free so new
// fields never need a migration.
type deviceConfig struct {
	Creds                 models.Credentials                              `json:"creds"`
	Categories            map[models.PollCategory]models.CategoryConfig   `json:"categories"`
	CustomOIDs            map[string]string                               `json:"custom_oids,omitempty"`
	DisabledVendorFilters []string                                        `json:"disabled_vendor_filters,omitempty"`
}

// DeviceRecord pairs a device with its persisted rule set.
type DeviceRecord struct {
	Device *models.Device
	Rules  models.RuleSet
}

// SaveDevice upserts a device and its rule set.
func (s *Store) SaveDevice(ctx context.Context, dev *models.Device, rs models.RuleSet) error {
	cfg, err := marshalJSON(deviceConfig{
		Creds:                 dev.Creds,
		Categories:            dev.Categories,
		CustomOIDs:            dev.CustomOIDs,
		DisabledVendorFilters: dev.DisabledVendorFilters,
	})
	if err != nil {
		return fmt.Errorf("encode device %s: %w", dev.ID, err)
	}
	rules, err := marshalJSON(rs)
	if err != nil {
		return fmt.Errorf("encode rules of %s: %w", dev.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, host, port, version, config, rules)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			host = excluded.host,
			port = excluded.port,
			version = excluded.version,
			config = excluded.config,
			rules = excluded.rules,
			updated_at = CURRENT_TIMESTAMP
	`, dev.ID, dev.Name, dev.Host, dev.Port, string(dev.Version), cfg, rules)
	if err != nil {
		return fmt.Errorf("save device %s: %w", dev.ID, err)
	}
	return nil
}

// DeleteDevice removes a device, its rules, and its registered
// entities.
func (s *Store) DeleteDevice(ctx context.Context, deviceID string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE device_id = ?", deviceID); err != nil {
			return fmt.Errorf("delete entities of %s: %w", deviceID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", deviceID); err != nil {
			return fmt.Errorf("delete device %s: %w", deviceID, err)
		}
		return nil
	})
}

// LoadDevices returns every persisted device with its rule set.
func (s *Store) LoadDevices(ctx context.Context) ([]DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, host, port, version, config, rules FROM devices ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var (
			dev       models.Device
			port      int
			version   string
			cfgJSON   string
			rulesJSON string
		)
		if err := rows.Scan(&dev.ID, &dev.Name, &dev.Host, &port, &version, &cfgJSON, &rulesJSON); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		dev.Port = uint16(port)
		dev.Version = models.SNMPVersion(version)

		var cfg deviceConfig
		if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
			return nil, fmt.Errorf("decode device %s: %w", dev.ID, err)
		}
		dev.Creds = cfg.Creds
		dev.Categories = cfg.Categories
		dev.CustomOIDs = cfg.CustomOIDs
		dev.DisabledVendorFilters = cfg.DisabledVendorFilters

		var rs models.RuleSet
		if err := json.Unmarshal([]byte(rulesJSON), &rs); err != nil {
			return nil, fmt.Errorf("decode rules of %s: %w", dev.ID, err)
		}

		out = append(out, DeviceRecord{Device: &dev, Rules: rs})
	}
	return out, rows.Err()
}
