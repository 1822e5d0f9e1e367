package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// Factory creates a fresh plugin instance.
type Factory func() Plugin

// Registration maps a plugin name to its implementation and default position.
type Registration struct {
	Name     string
	Factory  Factory
	Position int
}

// Registry holds all known plugins and the combination rules they contribute.
type Registry struct {
	entries map[string]Registration
	rules   *resolve.Rules
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry with the built-in combination rules.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Registration),
		rules:   resolve.NewRules(),
	}
}

// Canonical normalizes a plugin name so that "Capital_Cost_Plugin",
// "capital cost" and "capital_cost" address the same registration.
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	n = strings.TrimSuffix(n, "_plugin")
	return n
}

// Register adds a plugin under name with its default position.
func (r *Registry) Register(name string, factory Factory, position int) error {
	key := Canonical(name)
	if key == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin %s: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	r.entries[key] = Registration{Name: key, Factory: factory, Position: position}
	return nil
}

// Lookup returns the registration for name or an *UnknownPluginError.
func (r *Registry) Lookup(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.entries[Canonical(name)]; ok {
		return reg, nil
	}
	return Registration{}, &params.UnknownPluginError{Name: name}
}

// Names returns registered plugin names ordered by default position, then name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Position != regs[j].Position {
			return regs[i].Position < regs[j].Position
		}
		return regs[i].Name < regs[j].Name
	})
	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.Name
	}
	return names
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all plugins (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Registration)
}

// Rules exposes the combination-rule vocabulary so plugins can extend it.
func (r *Registry) Rules() *resolve.Rules { return r.rules }

// Build resolves every workflow step against the registry. Unknown names
// fail the whole build before anything runs.
func (r *Registry) Build(steps []Step, env Env) (*Pipeline, error) {
	stages := make([]Stage, 0, len(steps))
	for _, step := range steps {
		reg, err := r.Lookup(step.Name)
		if err != nil {
			return nil, err
		}
		pos := reg.Position
		if step.Position != nil {
			pos = *step.Position
		}
		stages = append(stages, Stage{Plugin: reg.Factory(), Position: pos})
	}
	if env.Rules == nil {
		env.Rules = r.rules
	}
	return NewPipeline(env, stages...), nil
}
