// Package processor holds the OAuth configuration for payment-processor
// account connection (MercadoPago, Stripe Connect).
package processor

import (
	"fmt"

	"github.com/hunt-tickets/verify-api/internal/config"
	"github.com/hunt-tickets/verify-api/internal/domain"
	"golang.org/x/oauth2"
)

var mercadoPagoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://auth.mercadopago.com/authorization",
	TokenURL: "https://api.mercadopago.com/oauth/token",
}

var stripeEndpoint = oauth2.Endpoint{
	AuthURL:  "https://connect.stripe.com/oauth/authorize",
	TokenURL: "https://connect.stripe.com/oauth/token",
}

// Configs maps a processor name to its OAuth2 config.
type Configs map[string]*oauth2.Config

// NewConfigs builds the per-processor OAuth configs. Redirects land on the
// API's own callback route so the exchange happens server-side.
func NewConfigs(cfg *config.Config) Configs {
	return Configs{
		domain.ProcessorMercadoPago: {
			ClientID:     cfg.MercadoPagoClientID,
			ClientSecret: cfg.MercadoPagoClientSecret,
			Endpoint:     mercadoPagoEndpoint,
			RedirectURL:  cfg.AppURL + "/v1/payments/mercadopago/callback",
		},
		domain.ProcessorStripe: {
			ClientID:     cfg.StripeClientID,
			ClientSecret: cfg.StripeClientSecret,
			Endpoint:     stripeEndpoint,
			RedirectURL:  cfg.AppURL + "/v1/payments/stripe/callback",
			Scopes:       []string{"read_write"},
		},
	}
}

// Get returns the config for a processor name or ErrBadRequest.
func (c Configs) Get(name string) (*oauth2.Config, error) {
	conf, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment processor %q: %w", name, domain.ErrBadRequest)
	}
	return conf, nil
}
