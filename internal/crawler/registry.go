package crawler

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves crawler names to implementations. The CLI registers
// every concrete crawler at startup and looks them up by name when a
// crawl is requested.
type Registry struct {
	mu       sync.RWMutex
	crawlers map[string]Crawler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{crawlers: make(map[string]Crawler)}
}

// Register adds a crawler under the given name. Registering the same
// name twice is a programming error and fails immediately.
func (r *Registry) Register(name string, c Crawler) error {
	if name == "" {
		return fmt.Errorf("crawler name must not be empty")
	}
	if c == nil {
		return fmt.Errorf("crawler %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.crawlers[name]; ok {
		return fmt.Errorf("crawler %q already registered", name)
	}
	r.crawlers[name] = c
	return nil
}

// Get returns the crawler registered under name.
func (r *Registry) Get(name string) (Crawler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crawlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown crawler %q", name)
	}
	return c, nil
}

// Names returns the registered crawler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.crawlers))
	for name := range r.crawlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
