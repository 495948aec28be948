package models

import "fmt"

// EntityKind distinguishes the shapes of entity a category can produce.
type EntityKind string

const (
	KindInterface EntityKind = "interface" // one per visible interface
	KindSensor    EntityKind = "sensor"    // one per metric (sensors mode)
	KindAggregate EntityKind = "aggregate" // one per category (attributes mode)
)

// EntityKey is the identity of a host-visible entity. Two descriptors with
// the same key are the same entity; everything else about a descriptor is
// mutable display state. Mode is part of the key so that switching a
// category between attributes and sensors replaces entities wholesale
// instead of mutating them in place.
type EntityKey struct {
	DeviceID string
	Category PollCategory
	Kind     EntityKind
	Mode     CategoryMode
	// Ref identifies the entity within its category: an ifIndex for
	// interface and per-port entities, a metric id such as "cpu_60s" or
	// "fan_2_rpm" for sensors, empty for aggregates.
	Ref string
}

// String renders a stable unique id suitable for persistence.
func (k EntityKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.DeviceID, k.Category, k.Kind, k.Mode, k.Ref)
}

// EntityDescriptor is the reconciler's unit of truth: desired existence,
// display name, and attribute payload for one entity. Attributes are
// rendered strings so that descriptor comparison is exact.
type EntityDescriptor struct {
	Key        EntityKey
	Name       string
	Attributes map[string]string
	Available  bool
}

// Equal reports whether two descriptors would render identically.
func (d *EntityDescriptor) Equal(o *EntityDescriptor) bool {
	if d.Key != o.Key || d.Name != o.Name || d.Available != o.Available {
		return false
	}
	if len(d.Attributes) != len(o.Attributes) {
		return false
	}
	for k, v := range d.Attributes {
		if ov, ok := o.Attributes[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
