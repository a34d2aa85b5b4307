// Package providers maps payment method names to the client that talks
// to that method's payment provider.
package providers

import (
	"fmt"
	"slices"
	"sync"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/services/auth"
	"nathanbeddoewebdev/payq/internal/util"
)

// Settings carries the non-secret provider configuration.
type Settings struct {
	APIURL string
}

// Factory builds the remote effector for one payment method.
type Factory func(settings Settings, store auth.Store) (actionqueue.RemoteEffector, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a factory under a payment method name. It panics on an
// empty name, a nil factory or a duplicate registration.
func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty payment method name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: payment method %q already registered", name))
	}

	registry[normalizedName] = factory
}

// Get builds the remote effector registered for a payment method.
func Get(name string, settings Settings, store auth.Store) (actionqueue.RemoteEffector, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("providers: unknown payment method %q", name)
	}
	return factory(settings, store)
}

// Reset clears the registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

// List returns the registered payment method names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
