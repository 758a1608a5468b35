package calendar

import (
	"sync"

	"github.com/guilherme-santos/calgateway/internal"
)

// Mux resolves a provider into the gateway registered for it.
type Mux struct {
	mu       sync.RWMutex
	gateways map[internal.Provider]internal.Gateway
}

func NewMux() *Mux {
	return &Mux{
		gateways: make(map[internal.Provider]internal.Gateway),
	}
}

func (m *Mux) Get(p internal.Provider) (internal.Gateway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gw, ok := m.gateways[p]
	if !ok {
		return nil, internal.Validationf("calendar", "provider %q is not configured", p)
	}
	return gw, nil
}

func (m *Mux) Register(p internal.Provider, gw internal.Gateway) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gateways[p] = gw
}
