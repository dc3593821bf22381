package gateway

import (
	"net/http"
	"time"

	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/gateway/mercadopago"
	"github.com/vendelo/checkout/internal/gateway/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.registry",
	fx.Provide(func(cfg config.Config) *Registry {
		client := &http.Client{
			Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		}
		return NewRegistry(
			mercadopago.New(mercadopago.Config{
				BaseURL:   cfg.Gateway.MercadoPagoBaseURL,
				PublicKey: cfg.Gateway.MercadoPagoPublicKey,
				Client:    client,
			}),
			stripe.New(stripe.Config{
				BaseURL:        cfg.Gateway.StripeBaseURL,
				PublishableKey: cfg.Gateway.StripePublishableKey,
				Client:         client,
			}),
		)
	}),
)
