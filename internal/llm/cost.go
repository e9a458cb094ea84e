package llm

import "strings"

// pricing is USD per million tokens.
type pricing struct {
	input  float64
	output float64
}

// Cache reads are billed at a tenth of the input rate; cache writes carry
// a 25% surcharge.
const (
	cacheReadRate  = 0.10
	cacheWriteRate = 1.25
)

var modelPricing = []struct {
	prefix string
	pricing
}{
	{"claude-3-5-haiku", pricing{input: 0.80, output: 4.00}},
	{"claude-3-haiku", pricing{input: 0.25, output: 1.25}},
	{"claude-sonnet", pricing{input: 3.00, output: 15.00}},
	{"claude-opus", pricing{input: 15.00, output: 75.00}},
	{"claude", pricing{input: 3.00, output: 15.00}},
	{"gpt-4o-mini", pricing{input: 0.15, output: 0.60}},
	{"gpt-4o", pricing{input: 2.50, output: 10.00}},
	{"gpt-4", pricing{input: 30.00, output: 60.00}},
	{"gpt", pricing{input: 0.50, output: 1.50}},
}

// Local models cost nothing.
var zeroPricing = pricing{}

func pricingFor(model string) pricing {
	for _, p := range modelPricing {
		if strings.HasPrefix(model, p.prefix) {
			return p.pricing
		}
	}
	return zeroPricing
}

// EstimateCost converts usage into USD for the given model. Unknown models
// cost zero rather than guessing a rate.
func EstimateCost(model string, u Usage) float64 {
	p := pricingFor(model)
	cost := float64(u.InputTokens) * p.input
	cost += float64(u.CacheReadTokens) * p.input * cacheReadRate
	cost += float64(u.CacheWriteTokens) * p.input * cacheWriteRate
	cost += float64(u.OutputTokens) * p.output
	return cost / 1e6
}
