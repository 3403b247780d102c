package pollagent

import (
	"slices"
	"sync"
)

// Registry holds tools by unique name. A name registers at most once; a failed Register leaves the
// registry unchanged. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	sealed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds tools atomically: either all of them are added or, on the first violation, none.
func (r *Registry) Register(tools ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return configError(ErrRegisterWhileListening, "")
	}
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || t.handler == nil {
			return configError(ErrNilHandler, "")
		}
		if _, ok := r.tools[t.name]; ok {
			return configError(ErrDuplicateTool, "%q", t.name)
		}
		if _, ok := seen[t.name]; ok {
			return configError(ErrDuplicateTool, "%q", t.name)
		}
		seen[t.name] = struct{}{}
	}
	for _, t := range tools {
		r.tools[t.name] = t
	}
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Tool) int {
		if a.name < b.name {
			return -1
		}
		if a.name > b.name {
			return 1
		}
		return 0
	})
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	tools := r.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.name
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// seal rejects further registrations until unseal.
func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) unseal() {
	r.mu.Lock()
	r.sealed = false
	r.mu.Unlock()
}
