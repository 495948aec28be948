// Package reconcile diffs a desired entity set against the registry's
// current set and applies the minimal create/update/remove instruction
// list. The diff is a pure set operation keyed by EntityKey, so
// applying the same desired set twice is a no-op.
package reconcile

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// Registry is the host-side entity store the reconciler drives. A real
// integration registers entities with the surrounding platform; tests
// use an in-memory implementation.
type Registry interface {
	// List returns the current descriptors owned by one device and
	// category.
	List(deviceID string, cat models.PollCategory) []*models.EntityDescriptor
	Create(desc *models.EntityDescriptor) error
	Update(desc *models.EntityDescriptor) error
	Remove(key models.EntityKey) error
}

// Plan is the instruction list produced by one diff. Slices are ordered
// by entity key for deterministic application.
type Plan struct {
	Create []*models.EntityDescriptor
	Update []*models.EntityDescriptor
	Remove []models.EntityKey
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

// Diff computes the plan that turns current into desired. Descriptors
// present in both but rendering identically produce no instruction.
func Diff(current, desired []*models.EntityDescriptor) *Plan {
	plan := &Plan{}

	curByKey := make(map[models.EntityKey]*models.EntityDescriptor, len(current))
	for _, d := range current {
		curByKey[d.Key] = d
	}

	seen := make(map[models.EntityKey]bool, len(desired))
	for _, want := range desired {
		seen[want.Key] = true
		have, ok := curByKey[want.Key]
		switch {
		case !ok:
			plan.Create = append(plan.Create, want)
		case !have.Equal(want):
			plan.Update = append(plan.Update, want)
		}
	}

	for key := range curByKey {
		if !seen[key] {
			plan.Remove = append(plan.Remove, key)
		}
	}

	sortDescriptors(plan.Create)
	sortDescriptors(plan.Update)
	sort.Slice(plan.Remove, func(i, j int) bool {
		return plan.Remove[i].String() < plan.Remove[j].String()
	})
	return plan
}

func sortDescriptors(descs []*models.EntityDescriptor) {
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Key.String() < descs[j].Key.String()
	})
}

// Reconciler applies desired sets against the registry. All changes for
// one device are serialized so that scheduler-driven updates and
// operator-driven rule changes never interleave half-applied.
type Reconciler struct {
	registry Registry
	logger   *zap.Logger

	mu      sync.Mutex
	devLock map[string]*sync.Mutex
}

// New creates a reconciler over the given registry.
func New(registry Registry, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		logger:   logger.Named("reconcile"),
		devLock:  make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) lockDevice(deviceID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.devLock[deviceID]
	if !ok {
		l = &sync.Mutex{}
		r.devLock[deviceID] = l
	}
	return l
}

// Apply diffs desired against the registry's current set for one
// (device, category) pair and executes the resulting plan. It returns
// the plan actually applied.
func (r *Reconciler) Apply(deviceID string, cat models.PollCategory, desired []*models.EntityDescriptor) (*Plan, error) {
	l := r.lockDevice(deviceID)
	l.Lock()
	defer l.Unlock()

	current := r.registry.List(deviceID, cat)
	plan := Diff(current, desired)
	if plan.Empty() {
		return plan, nil
	}

	for _, desc := range plan.Create {
		if err := r.registry.Create(desc); err != nil {
			return plan, err
		}
	}
	for _, desc := range plan.Update {
		if err := r.registry.Update(desc); err != nil {
			return plan, err
		}
	}
	for _, key := range plan.Remove {
		if err := r.registry.Remove(key); err != nil {
			return plan, err
		}
	}

	r.logger.Debug("reconciled",
		zap.String("device", deviceID),
		zap.String("category", string(cat)),
		zap.Int("created", len(plan.Create)),
		zap.Int("updated", len(plan.Update)),
		zap.Int("removed", len(plan.Remove)))
	return plan, nil
}

// RemoveDevice removes every entity the device owns across all
// categories.
func (r *Reconciler) RemoveDevice(deviceID string) error {
	l := r.lockDevice(deviceID)
	l.Lock()
	defer l.Unlock()

	for _, cat := range models.AllCategories {
		for _, desc := range r.registry.List(deviceID, cat) {
			if err := r.registry.Remove(desc.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
