// Package roles models the open role vocabulary. Roles are plain strings, not
// a closed enum: operators register new ones at runtime and the registry is
// the only validity check.
package roles

import (
	"errors"
	"strings"
)

var (
	// ErrEmpty is returned when registering a blank role name.
	ErrEmpty = errors.New("role name is empty")
	// ErrDuplicate is returned when the role is already registered.
	ErrDuplicate = errors.New("role already registered")
	// ErrUnknown is returned when validating a role outside the registry.
	ErrUnknown = errors.New("unknown role")
)

// Role is a validated role name. Construct it through Registry.Resolve so the
// value is known to be registered at the time of the check.
type Role string

// Registry is an insertion-ordered set of role names.
type Registry struct {
	order []string
	index map[string]bool
}

// NewRegistry builds a registry from the given names, dropping blanks and
// duplicates while preserving first-seen order.
func NewRegistry(names []string) *Registry {
	r := &Registry{index: make(map[string]bool, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || r.index[n] {
			continue
		}
		r.order = append(r.order, n)
		r.index[n] = true
	}
	return r
}

// Register adds a new role name.
func (r *Registry) Register(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmpty
	}
	if r.index[name] {
		return ErrDuplicate
	}
	r.order = append(r.order, name)
	r.index[name] = true
	return nil
}

// Contains reports whether the role name is registered.
func (r *Registry) Contains(name string) bool {
	return r.index[name]
}

// Resolve returns the validated Role for a registered name.
func (r *Registry) Resolve(name string) (Role, error) {
	if !r.index[name] {
		return "", ErrUnknown
	}
	return Role(name), nil
}

// List returns the role names in insertion order. The returned slice is a copy.
func (r *Registry) List() []string {
	return append([]string{}, r.order...)
}
