package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// EntityRegistry is the SQLite-backed registered entity set. It
// persists what the reconciler has created so a restart does not
// re-create existing entities.
type EntityRegistry struct {
	store  *Store
	logger *zap.Logger
}

// NewEntityRegistry wraps a store as an entity registry.
func NewEntityRegistry(store *Store, logger *zap.Logger) *EntityRegistry {
	return &EntityRegistry{store: store, logger: logger.Named("registry")}
}

// List returns the registered descriptors of one device and category.
// A query failure yields an empty set and a log line; the reconciler
// then re-creates descriptors, which the upsert tolerates.
func (r *EntityRegistry) List(deviceID string, cat models.PollCategory) []*models.EntityDescriptor {
	rows, err := r.store.db.QueryContext(context.Background(), `
		SELECT kind, mode, ref, name, attributes, available
		FROM entities WHERE device_id = ? AND category = ?
	`, deviceID, string(cat))
	if err != nil {
		r.logger.Error("list entities failed",
			zap.String("device", deviceID),
			zap.String("category", string(cat)),
			zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []*models.EntityDescriptor
	for rows.Next() {
		var (
			kind, mode, ref, name, attrsJSON string
			available                        int
		)
		if err := rows.Scan(&kind, &mode, &ref, &name, &attrsJSON, &available); err != nil {
			r.logger.Error("scan entity failed", zap.Error(err))
			return nil
		}
		var attrs map[string]string
		if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
			r.logger.Warn("bad entity attributes, dropping row",
				zap.String("device", deviceID), zap.String("ref", ref), zap.Error(err))
			continue
		}
		out = append(out, &models.EntityDescriptor{
			Key: models.EntityKey{
				DeviceID: deviceID,
				Category: cat,
				Kind:     models.EntityKind(kind),
				Mode:     models.CategoryMode(mode),
				Ref:      ref,
			},
			Name:       name,
			Attributes: attrs,
			Available:  available != 0,
		})
	}
	return out
}

// Create registers a descriptor. An existing row with the same key is
// overwritten, which makes creation idempotent across restarts.
func (r *EntityRegistry) Create(desc *models.EntityDescriptor) error {
	return r.upsert(desc)
}

// Update rewrites a descriptor's mutable state.
func (r *EntityRegistry) Update(desc *models.EntityDescriptor) error {
	return r.upsert(desc)
}

func (r *EntityRegistry) upsert(desc *models.EntityDescriptor) error {
	attrs, err := marshalJSON(desc.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes of %s: %w", desc.Key, err)
	}
	available := 0
	if desc.Available {
		available = 1
	}
	_, err = r.store.db.ExecContext(context.Background(), `
		INSERT INTO entities (device_id, category, kind, mode, ref, name, attributes, available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, category, kind, mode, ref) DO UPDATE SET
			name = excluded.name,
			attributes = excluded.attributes,
			available = excluded.available,
			updated_at = CURRENT_TIMESTAMP
	`, desc.Key.DeviceID, string(desc.Key.Category), string(desc.Key.Kind),
		string(desc.Key.Mode), desc.Key.Ref, desc.Name, attrs, available)
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", desc.Key, err)
	}
	return nil
}

// Remove deletes one entity by key.
func (r *EntityRegistry) Remove(key models.EntityKey) error {
	_, err := r.store.db.ExecContext(context.Background(), `
		DELETE FROM entities
		WHERE device_id = ? AND category = ? AND kind = ? AND mode = ? AND ref = ?
	`, key.DeviceID, string(key.Category), string(key.Kind), string(key.Mode), key.Ref)
	if err != nil {
		return fmt.Errorf("remove entity %s: %w", key, err)
	}
	return nil
}
