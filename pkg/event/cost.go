package event

import (
	"errors"
	"fmt"
)

// ErrRateUnknown is returned in strict mode when no rate is configured for
// a provider/model pair.
var ErrRateUnknown = errors.New("no rate configured for model")

// Rate prices one model in USD per 1000 tokens.
type Rate struct {
	PromptPer1K     float64 `json:"prompt_per_1k" mapstructure:"prompt_per_1k"`
	CompletionPer1K float64 `json:"completion_per_1k" mapstructure:"completion_per_1k"`
}

// Pricer computes invocation cost from configured rate tables. It is a pure
// function of its configuration and performs no I/O.
type Pricer struct {
	rates       map[string]Rate // keyed by "provider/model"
	defaultRate Rate
	strict      bool
}

// NewPricer creates a pricer. With strict set, unknown provider/model pairs
// fail with ErrRateUnknown instead of falling back to defaultRate.
func NewPricer(rates map[string]Rate, defaultRate Rate, strict bool) *Pricer {
	if rates == nil {
		rates = map[string]Rate{}
	}
	return &Pricer{
		rates:       rates,
		defaultRate: defaultRate,
		strict:      strict,
	}
}

// RateKey builds the rate-table key for a provider/model pair.
func RateKey(provider, model string) string {
	return provider + "/" + model
}

// Cost returns the USD cost of one invocation:
//
//	cost = (tokensPrompt/1000)*promptRate + (tokensCompletion/1000)*completionRate
func (p *Pricer) Cost(provider, model string, tokensPrompt, tokensCompletion int) (float64, error) {
	rate, ok := p.rates[RateKey(provider, model)]
	if !ok {
		if p.strict {
			return 0, fmt.Errorf("%w: %s", ErrRateUnknown, RateKey(provider, model))
		}
		rate = p.defaultRate
	}

	cost := (float64(tokensPrompt)/1000)*rate.PromptPer1K +
		(float64(tokensCompletion)/1000)*rate.CompletionPer1K

	return cost, nil
}
