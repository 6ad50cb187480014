// Package check evaluates device snapshots against the health policy.
//
// Each Check owns one CheckKind and turns a snapshot into exactly one
// verdict. A Registry runs an ordered set of checks; checks share no state
// and never look at each other's results.
package check

import (
	"fmt"
	"math"
	"sync"

	"github.com/kubeadapt/gpu-health/internal/snapshot"
	"github.com/kubeadapt/gpu-health/pkg/model"
)

// Check evaluates one policy rule against a snapshot.
type Check interface {
	// Kind returns the check kind reported in every verdict.
	Kind() model.CheckKind
	// Evaluate returns the verdict for s. It must not retain s.
	Evaluate(s *snapshot.DeviceSnapshot) model.CheckVerdict
}

// DuplicateKindError is returned when a second check claims a registered kind.
type DuplicateKindError struct {
	Kind model.CheckKind
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("check: kind %q already registered", e.Kind)
}

// Registry holds an ordered set of checks with unique kinds.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	checks []Check
}

// NewRegistry creates a Registry with the given checks, in order.
// It returns an error if two checks share a kind.
func NewRegistry(checks ...Check) (*Registry, error) {
	r := &Registry{}
	for _, c := range checks {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns the fixed policy: temperature, ECC, power.
func Default() *Registry {
	return &Registry{checks: []Check{Temperature{}, ECC{}, Power{}}}
}

// Register appends c to the registry.
func (r *Registry) Register(c Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.checks {
		if existing.Kind() == c.Kind() {
			return &DuplicateKindError{Kind: c.Kind()}
		}
	}
	r.checks = append(r.checks, c)
	return nil
}

// Kinds returns the registered kinds in evaluation order.
func (r *Registry) Kinds() []model.CheckKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]model.CheckKind, len(r.checks))
	for i, c := range r.checks {
		kinds[i] = c.Kind()
	}
	return kinds
}

// Evaluate runs every check against s and returns one verdict per check,
// in registration order.
func (r *Registry) Evaluate(s *snapshot.DeviceSnapshot) []model.CheckVerdict {
	r.mu.RLock()
	checks := make([]Check, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	verdicts := make([]model.CheckVerdict, 0, len(checks))
	for _, c := range checks {
		v := c.Evaluate(s)
		v.Check = c.Kind()
		verdicts = append(verdicts, v)
	}
	return verdicts
}

func verdict(kind model.CheckKind, status model.Status, value *float64) model.CheckVerdict {
	return model.CheckVerdict{Check: kind, Status: status, Value: value}
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
