// Package adapters registers payment-provider webhook adapters by name.
package adapters

import (
	"strings"
	"sync"

	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
)

// Registry holds the known adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]paymentdomain.AdapterFactory
}

func NewRegistry(factories ...paymentdomain.AdapterFactory) *Registry {
	registry := &Registry{factories: make(map[string]paymentdomain.AdapterFactory)}
	for _, factory := range factories {
		registry.Register(factory)
	}
	return registry
}

func (r *Registry) Register(factory paymentdomain.AdapterFactory) {
	if factory == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(factory.Provider()))
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

func (r *Registry) ProviderExists(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

func (r *Registry) NewAdapter(provider string, config paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	r.mu.RUnlock()
	if !ok {
		return nil, paymentdomain.ErrProviderNotFound
	}
	return factory.NewAdapter(config)
}
