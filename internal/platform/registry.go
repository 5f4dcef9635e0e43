// Package platform routes answer updates to their destination surface.
package platform

import (
	"fmt"
	"strings"
	"sync"
)

// Handler delivers one answer update to the destination named by target.
// The target keeps its routing prefix; handlers strip what they need.
type Handler func(target, text string) error

// Registry maps target prefixes ("file:", "stdout:") to handlers. When
// several prefixes match, the longest one wins, so "file:tmp:" can shadow
// "file:".
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for targets starting with prefix. Registering the
// same prefix twice replaces the earlier handler.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver routes text to the handler with the longest prefix matching target.
func (r *Registry) Deliver(target, text string) error {
	r.mu.RLock()
	var best string
	found := false
	for prefix := range r.handlers {
		if strings.HasPrefix(target, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	handler := r.handlers[best]
	r.mu.RUnlock()

	if !found {
		return fmt.Errorf("no delivery handler for target: %s", target)
	}
	return handler(target, text)
}
