// Package persona manages assistant identities: personas created through the
// engine and persisted in the store, plus file-defined personas read from
// YAML files in the workspace persona directory.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"parley/internal/logging"
	"parley/internal/types"
)

// Registry is the merged persona view. File-defined personas shadow stored
// personas with the same id.
type Registry struct {
	mu     sync.RWMutex
	stored map[string]types.Persona
	fromFS map[string]types.Persona

	dir      string // YAML persona directory, "" disables file personas
	onChange func(types.Persona)
	onDelete func(id string)
}

// Option customizes a Registry.
type Option func(*Registry)

// WithDir sets the YAML persona directory.
func WithDir(dir string) Option {
	return func(r *Registry) { r.dir = dir }
}

// WithOnChange registers the persistence hook for stored personas.
func WithOnChange(fn func(types.Persona)) Option {
	return func(r *Registry) { r.onChange = fn }
}

// WithOnDelete registers the persistence delete hook.
func WithOnDelete(fn func(id string)) Option {
	return func(r *Registry) { r.onDelete = fn }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		stored: make(map[string]types.Persona),
		fromFS: make(map[string]types.Persona),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load seeds the registry with previously persisted personas.
func (r *Registry) Load(personas []types.Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range personas {
		r.stored[p.ID] = p
	}
}

// Get returns the persona for the id. File personas take precedence.
func (r *Registry) Get(id string) (types.Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.fromFS[id]; ok {
		return p, true
	}
	p, ok := r.stored[id]
	return p, ok
}

// Name returns the persona's display name, or "" for an unknown id.
func (r *Registry) Name(id string) string {
	p, ok := r.Get(id)
	if !ok {
		return ""
	}
	return p.Name
}

// List returns all personas sorted by name, then id.
func (r *Registry) List() []types.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Persona, 0, len(r.stored)+len(r.fromFS))
	for id, p := range r.stored {
		if _, shadowed := r.fromFS[id]; !shadowed {
			out = append(out, p)
		}
	}
	for _, p := range r.fromFS {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Upsert creates or edits a stored persona. Edits apply to future directive
// assembly only; nothing already generated changes.
func (r *Registry) Upsert(p types.Persona) error {
	if p.ID == "" {
		return fmt.Errorf("persona id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona name is required")
	}

	r.mu.Lock()
	r.stored[p.ID] = p
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(p)
	}
	logging.Get(logging.CategorySession).Info("persona %s (%s) saved", p.ID, p.Name)
	return nil
}

// Delete removes a stored persona. File personas cannot be deleted here.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.stored[id]
	delete(r.stored, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("persona %s not found", id)
	}
	if r.onDelete != nil {
		r.onDelete(id)
	}
	return nil
}

// =============================================================================
// YAML FILE PERSONAS
// =============================================================================

// ReloadDir re-reads every YAML persona file in the configured directory and
// replaces the file-persona set wholesale. Unparseable files are skipped
// with a warning.
func (r *Registry) ReloadDir() error {
	if r.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read persona dir: %w", err)
	}

	next := make(map[string]types.Persona)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		p, err := parseFile(path)
		if err != nil {
			logging.Get(logging.CategorySession).Warn("skipping persona file %s: %v", entry.Name(), err)
			continue
		}
		next[p.ID] = p
	}

	r.mu.Lock()
	r.fromFS = next
	r.mu.Unlock()

	logging.Session("loaded %d file personas from %s", len(next), r.dir)
	return nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// parseFile reads one persona definition. A missing id defaults to the file
// name stem.
func parseFile(path string) (types.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Persona{}, err
	}

	var p types.Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Persona{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if p.ID == "" {
		base := filepath.Base(path)
		p.ID = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	if strings.TrimSpace(p.Name) == "" {
		return types.Persona{}, fmt.Errorf("persona name is required")
	}
	return p, nil
}
