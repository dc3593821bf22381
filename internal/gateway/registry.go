package gateway

import (
	"strings"

	"github.com/vendelo/checkout/internal/gateway/domain"
)

// Registry maps gateway identifiers to the fixed, compile-time-known set of
// implemented gateways. Unknown identifiers fail closed; there is no default
// substitution.
type Registry struct {
	gateways map[string]domain.Gateway
	ids      []string
}

func NewRegistry(gateways ...domain.Gateway) *Registry {
	registry := &Registry{gateways: map[string]domain.Gateway{}}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(gw.ID()))
		if id == "" {
			continue
		}
		if _, exists := registry.gateways[id]; !exists {
			registry.ids = append(registry.ids, id)
		}
		registry.gateways[id] = gw
	}
	return registry
}

func (r *Registry) Resolve(id string) (domain.Gateway, error) {
	if r == nil {
		return nil, domain.ErrGatewayNotSupported
	}
	gw, ok := r.gateways[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, domain.ErrGatewayNotSupported
	}
	return gw, nil
}

func (r *Registry) IsSupported(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.gateways[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

func (r *Registry) ListAvailable() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
