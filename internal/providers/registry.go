// SPDX-License-Identifier: MIT

package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds built-in providers registered at init time plus the
// current plugin set, which is swapped atomically on reload.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Provider
	plugins  map[string]Provider
}

// Default is the process-wide registry the built-ins register into.
var Default = NewRegistry()

// Register adds a built-in provider to the default registry. It panics on
// an invalid or duplicate name; built-ins register from package init, so
// a collision is a programming error.
func Register(p Provider) { Default.Register(p) }

func NewRegistry() *Registry {
	return &Registry{
		builtins: map[string]Provider{},
		plugins:  map[string]Provider{},
	}
}

func (r *Registry) Register(p Provider) {
	name := p.Name()
	if name == "" || name != strings.ToLower(name) {
		panic(fmt.Sprintf("providers: invalid provider name %q", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.builtins[name]; dup {
		panic(fmt.Sprintf("providers: duplicate provider %q", name))
	}
	r.builtins[name] = p
}

// SetPlugins replaces the plugin set in one swap. Plugins whose name
// collides with a built-in are rejected and returned by name.
func (r *Registry) SetPlugins(ps []Provider) (rejected []string) {
	next := make(map[string]Provider, len(ps))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ps {
		name := p.Name()
		if _, taken := r.builtins[name]; taken {
			rejected = append(rejected, name)
			continue
		}
		next[name] = p
	}
	r.plugins = next
	return rejected
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.builtins[name]; ok {
		return p, true
	}
	p, ok := r.plugins[name]
	return p, ok
}

// All returns every registered provider sorted by name.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	out := make([]Provider, 0, len(r.builtins)+len(r.plugins))
	for _, p := range r.builtins {
		out = append(out, p)
	}
	for _, p := range r.plugins {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}

// Configure forwards settings to a provider that accepts them. Unknown
// providers are an error; providers without settings ignore the call.
func (r *Registry) Configure(name string, settings map[string]string) error {
	p, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("providers: unknown provider %q", name)
	}
	if c, ok := p.(Configurable); ok {
		return c.Configure(settings)
	}
	return nil
}
