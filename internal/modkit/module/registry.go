package module

import "sync"

// process-wide port registry, filled during bootstrap in main so sibling
// modules can look each other's ports up by name
var (
	regMu    sync.RWMutex
	registry = map[string]any{}
)

// Register stores a port set under a module name, replacing any previous one
func Register(name string, ports any) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = ports
}

// PortsAs looks a port set up by name and asserts it to T
func PortsAs[T any](name string) (T, bool) {
	regMu.RLock()
	v, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Reset clears the registry between tests
func Reset() {
	regMu.Lock()
	defer regMu.Unlock()
	registry = map[string]any{}
}
