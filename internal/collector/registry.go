package collector

import (
	"sort"
	"sync"
)

// Registry manages collectors by name
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

// NewRegistry creates a new collector registry
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
	}
}

// Register adds a collector, replacing any with the same name
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[c.Name()] = c
}

// Get retrieves a collector by name
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// Prices returns the named collector if it serves price history
func (r *Registry) Prices(name string) (PriceCollector, bool) {
	c, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	pc, ok := c.(PriceCollector)
	return pc, ok
}

// Indicator returns the named collector if it serves a macro series
func (r *Registry) Indicator(name string) (IndicatorCollector, bool) {
	c, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	ic, ok := c.(IndicatorCollector)
	return ic, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
