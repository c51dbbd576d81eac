package cost

import (
	"github.com/sells-group/interview-prep/internal/config"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate
	Gemini     map[string]ModelRate
	Perplexity float64 // per query
	Tavily     float64 // per credit
	Jina       float64 // per query
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64
	Output float64
}

// FromConfig converts the pricing section of the config.
func FromConfig(p config.PricingConfig) Rates {
	r := Rates{
		Anthropic:  make(map[string]ModelRate, len(p.Anthropic)),
		Gemini:     make(map[string]ModelRate, len(p.Gemini)),
		Perplexity: p.Perplexity.PerQuery,
		Tavily:     p.Tavily.PerCredit,
		Jina:       p.Jina.PerQuery,
	}
	for k, v := range p.Anthropic {
		r.Anthropic[k] = ModelRate{Input: v.Input, Output: v.Output}
	}
	for k, v := range p.Gemini {
		r.Gemini[k] = ModelRate{Input: v.Input, Output: v.Output}
	}
	return r
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. Models missing
// from the config fall back to DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	def := DefaultRates()
	rates.Anthropic = mergeRates(def.Anthropic, rates.Anthropic)
	rates.Gemini = mergeRates(def.Gemini, rates.Gemini)
	return &Calculator{rates: rates}
}

func mergeRates(base, override map[string]ModelRate) map[string]ModelRate {
	out := make(map[string]ModelRate, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Tokens computes the cost of one generation call. Unknown providers and
// models cost nothing.
func (c *Calculator) Tokens(provider, model string, input, output int64) float64 {
	var table map[string]ModelRate
	switch provider {
	case "anthropic":
		table = c.rates.Anthropic
	case "gemini":
		table = c.rates.Gemini
	case "perplexity":
		return c.rates.Perplexity
	}
	rate, ok := table[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Search returns the cost of one search call. Advanced Tavily searches use
// two credits.
func (c *Calculator) Search(provider string, advanced bool) float64 {
	switch provider {
	case "tavily":
		if advanced {
			return 2 * c.rates.Tavily
		}
		return c.rates.Tavily
	case "jina":
		return c.rates.Jina
	case "perplexity":
		return c.rates.Perplexity
	}
	return 0
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
		},
		Perplexity: 0.005,
		Tavily:     0.008,
	}
}
