package source

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Entry is one registered adapter plus its deployment settings. Priority
// overrides the adapter's own default when set (>= 0); TargetIndustries
// limits which industry queries the source is offered for, with "all"
// meaning no limit.
type Entry struct {
	Adapter          Adapter
	Enabled          bool
	Priority         int
	CostPerRequest   float64
	TargetIndustries []string

	order int // insertion order, stable tie-break
}

// EntryConfig is the YAML shape for per-source registry settings.
type EntryConfig struct {
	Enabled          *bool    `yaml:"enabled"`
	Priority         *int     `yaml:"priority"`
	CostPerRequest   float64  `yaml:"cost_per_request"`
	TargetIndustries []string `yaml:"target_industries"`
}

// RegistryConfig is the top-level YAML registry configuration.
type RegistryConfig struct {
	Sources map[string]EntryConfig `yaml:"sources"`
}

// Registry holds the configured adapters and hands the orchestrator ordered,
// filtered views of them.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	next    int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds an adapter, enabled, at its own declared priority and open
// to all industries. Registering the same name twice replaces the entry but
// keeps its original position in tie-breaks.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.next
	if prev, ok := r.entries[a.Name()]; ok {
		order = prev.order
	} else {
		r.next++
	}
	r.entries[a.Name()] = &Entry{
		Adapter:          a,
		Enabled:          true,
		Priority:         a.Priority(),
		TargetIndustries: []string{"all"},
		order:            order,
	}
}

// Get returns the entry for a source name, or nil.
func (r *Registry) Get(name string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// EnableSource enables a source. Idempotent; unknown names are a no-op.
func (r *Registry) EnableSource(name string) {
	r.setEnabled(name, true)
}

// DisableSource disables a source. Idempotent; unknown names are a no-op.
func (r *Registry) DisableSource(name string) {
	r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		zap.L().Warn("toggling unknown source", zap.String("source", name))
		return
	}
	if e.Enabled == enabled {
		return
	}
	e.Enabled = enabled
	zap.L().Info("source toggled",
		zap.String("source", name),
		zap.Bool("enabled", enabled),
	)
}

// GetEnabledSources returns the enabled, available entries sorted descending
// by priority. The sort is stable: registration order breaks ties.
func (r *Registry) GetEnabledSources() []*Entry {
	return r.filtered(func(*Entry) bool { return true })
}

// GetSourcesForIndustry returns the enabled entries whose target industries
// include "all" or the requested industry, priority-ordered. An empty
// industry matches every source.
func (r *Registry) GetSourcesForIndustry(industry string) []*Entry {
	want := strings.ToLower(strings.TrimSpace(industry))
	return r.filtered(func(e *Entry) bool {
		if want == "" || len(e.TargetIndustries) == 0 {
			return true
		}
		for _, ti := range e.TargetIndustries {
			ti = strings.ToLower(ti)
			if ti == "all" || ti == want {
				return true
			}
		}
		return false
	})
}

func (r *Registry) filtered(keep func(*Entry) bool) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Enabled || !e.Adapter.IsAvailable() || !keep(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].order < out[j].order
	})
	return out
}

// Names returns every registered source name, priority-ordered including
// disabled entries. Used by the CLI source listing.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].order < entries[j].order
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Adapter.Name()
	}
	return names
}

// ApplyConfig overlays YAML settings onto registered entries. Settings for
// adapters that are not registered are skipped with a warning so one config
// file can serve deployments with different adapter sets.
func (r *Registry) ApplyConfig(cfg *RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ec := range cfg.Sources {
		e, ok := r.entries[name]
		if !ok {
			zap.L().Warn("registry config names unknown source", zap.String("source", name))
			continue
		}
		if ec.Enabled != nil {
			e.Enabled = *ec.Enabled
		}
		if ec.Priority != nil {
			e.Priority = *ec.Priority
		}
		if ec.CostPerRequest > 0 {
			e.CostPerRequest = ec.CostPerRequest
		}
		if len(ec.TargetIndustries) > 0 {
			e.TargetIndustries = ec.TargetIndustries
		}
	}
}

// SaveRegistryConfig writes registry settings back to a YAML file.
func SaveRegistryConfig(path string, cfg *RegistryConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "source: marshal registry config")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "source: write registry config %s", path)
}

// LoadRegistryConfig reads registry settings from a YAML file.
func LoadRegistryConfig(path string) (*RegistryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read registry config %s", path)
	}

	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "source: parse registry config")
	}
	return &cfg, nil
}
