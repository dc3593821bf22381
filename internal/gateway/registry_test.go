package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/gateway/mercadopago"
	"github.com/vendelo/checkout/internal/gateway/stripe"
)

func newTestRegistry() *Registry {
	return NewRegistry(
		mercadopago.New(mercadopago.Config{PublicKey: "TEST-pk"}),
		stripe.New(stripe.Config{PublishableKey: "pk_test"}),
	)
}

func TestRegistry_ResolveKnownGateway(t *testing.T) {
	registry := newTestRegistry()

	gw, err := registry.Resolve("mercadopago")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	assert.Equal(t, "mercadopago", gw.ID())
	assert.Equal(t, "Mercado Pago", gw.DisplayName())
	assert.True(t, gw.InterestRate().IsPositive())

	// identifier lookup is case/whitespace tolerant
	gw, err = registry.Resolve("  MercadoPago ")
	assert.NoError(t, err)
	assert.Equal(t, "mercadopago", gw.ID())
}

func TestRegistry_UnknownGatewayFailsClosed(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Resolve("nonexistent")
	if !errors.Is(err, domain.ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}
	assert.False(t, registry.IsSupported("nonexistent"))
}

func TestRegistry_IsSupportedAgreesWithResolve(t *testing.T) {
	registry := newTestRegistry()

	for _, id := range []string{"mercadopago", "stripe", "pagseguro", "", "adyen"} {
		_, err := registry.Resolve(id)
		assert.Equal(t, err == nil, registry.IsSupported(id), "id %q", id)
	}
}

func TestRegistry_ListAvailable(t *testing.T) {
	registry := newTestRegistry()
	assert.Equal(t, []string{"mercadopago", "stripe"}, registry.ListAvailable())
}

func TestRegistry_GenerateInstallmentsDelegates(t *testing.T) {
	registry := newTestRegistry()

	gw, err := registry.Resolve("mercadopago")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	plan := gw.GenerateInstallments(10000, 0)
	if assert.NotEmpty(t, plan) {
		assert.Equal(t, 1, plan[0].Count)
		assert.Equal(t, int64(10000), plan[0].AmountCents)
		assert.False(t, plan[0].HasInterest)
	}
}
