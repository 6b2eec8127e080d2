package providers

import (
	"wealthsync/internal/config"
	"wealthsync/internal/logger"
	"wealthsync/internal/models"
)

// Configure builds a registry holding every provider whose configuration is
// complete. Providers with missing configuration are logged and left out, so
// asking for them later yields a configuration error.
func Configure(cfg *config.Config) *Registry {
	log := logger.Get()
	opts := ClientOptions{
		Timeout:   cfg.ProviderTimeout,
		RateLimit: cfg.ProviderRateLimit,
		Burst:     cfg.ProviderBurst,
	}

	var adapters []Adapter
	if err := cfg.ETrade.Validate(); err != nil {
		log.Warnw("Provider not registered", "provider", models.ProviderETrade, "reason", err.Error())
	} else {
		adapters = append(adapters, NewETradeAdapter(cfg.ETrade, opts))
	}
	if err := cfg.Schwab.Validate(); err != nil {
		log.Warnw("Provider not registered", "provider", models.ProviderSchwab, "reason", err.Error())
	} else {
		adapters = append(adapters, NewSchwabAdapter(cfg.Schwab, opts))
	}
	if err := cfg.Plaid.Validate(); err != nil {
		log.Warnw("Provider not registered", "provider", models.ProviderPlaid, "reason", err.Error())
	} else {
		adapters = append(adapters, NewPlaidAdapter(cfg.Plaid, opts))
	}
	if cfg.DemoMode {
		adapters = append(adapters, NewDemoAdapter())
	}

	r := NewRegistry(adapters...)
	log.Infow("Providers registered", "providers", r.Providers())
	return r
}
