package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	openrouterx "github.com/tanpawarit/portfolio-copilot/pkg/openrouter"
)

// NewDecider builds the decider selected by cfg.Provider.
func NewDecider(ctx context.Context, cfg Config) (contractx.Decider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("provider", cfg.provider()).
		Str("model", cfg.Model).
		Msg("llm decider configured")

	switch cfg.provider() {
	case ProviderOpenAI:
		return NewOpenAIDecider(openrouterx.NewClient(cfg.OpenRouter()), cfg)
	case ProviderAnthropic:
		return NewAnthropicDecider(NewAnthropicClient(cfg), cfg)
	default:
		m, err := cfg.OpenRouter().New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		return NewEinoDecider(m)
	}
}
