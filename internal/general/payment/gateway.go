package payment

import (
	"errors"
	"fmt"

	"isuride/internal/general/config"
	"isuride/internal/ports"
)

const (
	ProviderHTTP   = "http"
	ProviderStripe = "stripe"
)

// New picks the gateway client configured by payment.provider.
func New(cfg *config.Config) (ports.PaymentGateway, error) {
	p := cfg.Payment
	switch p.Provider {
	case "", ProviderHTTP:
		return NewHTTPGateway(p.GatewayURL, p.Timeout), nil
	case ProviderStripe:
		if p.StripeKey == "" {
			return nil, errors.New("payment.stripe_key is required for the stripe provider")
		}
		return NewStripeGateway(p.StripeKey, p.Currency, p.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", p.Provider)
	}
}
