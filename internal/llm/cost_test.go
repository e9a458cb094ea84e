package llm

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimateCostBaseRates(t *testing.T) {
	u := Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	if got := EstimateCost("claude-sonnet-4-20250514", u); !almostEqual(got, 18.00) {
		t.Errorf("sonnet cost = %f, want 18.00", got)
	}
	if got := EstimateCost("gpt-4o-mini", u); !almostEqual(got, 0.75) {
		t.Errorf("gpt-4o-mini cost = %f, want 0.75", got)
	}
}

func TestEstimateCostCacheRates(t *testing.T) {
	// Cache reads bill at 10% of input; writes at 125%.
	reads := Usage{CacheReadTokens: 1_000_000}
	writes := Usage{CacheWriteTokens: 1_000_000}
	base := Usage{InputTokens: 1_000_000}

	model := "claude-sonnet-4-20250514"
	baseCost := EstimateCost(model, base)
	if got := EstimateCost(model, reads); !almostEqual(got, baseCost*0.10) {
		t.Errorf("cache read cost = %f, want %f", got, baseCost*0.10)
	}
	if got := EstimateCost(model, writes); !almostEqual(got, baseCost*1.25) {
		t.Errorf("cache write cost = %f, want %f", got, baseCost*1.25)
	}
}

func TestEstimateCostCachingSavesMoney(t *testing.T) {
	model := "claude-3-5-haiku-latest"
	uncached := Usage{InputTokens: 50_000, OutputTokens: 500}
	cached := Usage{InputTokens: 2_000, CacheReadTokens: 48_000, OutputTokens: 500}

	if EstimateCost(model, cached) >= EstimateCost(model, uncached) {
		t.Error("serving reads from cache should cost less than full input")
	}
}

func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	u := Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	if got := EstimateCost("llama-3.2-3b", u); got != 0 {
		t.Errorf("unknown model cost = %f, want 0", got)
	}
}

func TestCacheWorthwhile(t *testing.T) {
	small := make([]byte, 100)
	large := make([]byte, 5000)
	if cacheWorthwhile(string(small)) {
		t.Error("tiny prompt should not be cached")
	}
	if !cacheWorthwhile(string(large)) {
		t.Error("large prompt should be cached")
	}
}
