package pricing

import (
	"math"
	"testing"
)

func TestEstimateCost_StaticTable(t *testing.T) {
	cost := EstimateCost("anthropic/claude-opus-4", 1_000_000, 100_000, 500_000, 0, nil)
	if cost == nil {
		t.Fatalf("EstimateCost() = nil, want a value")
	}
	// 1M input @$15 + 100k output @$75 + 500k cache read @$1.5.
	want := 15.0 + 7.5 + 0.75
	if math.Abs(*cost-want) > 1e-9 {
		t.Fatalf("cost = %v, want %v", *cost, want)
	}
}

func TestEstimateCost_PrefixMatch(t *testing.T) {
	// Dated variants resolve to their family rate.
	cost := EstimateCost("anthropic/claude-sonnet-4-20250514", 1_000_000, 0, 0, 0, nil)
	if cost == nil {
		t.Fatalf("EstimateCost() = nil, want prefix match on family rate")
	}
	if math.Abs(*cost-3.0) > 1e-9 {
		t.Fatalf("cost = %v, want 3.0", *cost)
	}
}

func TestEstimateCost_CatalogFallback(t *testing.T) {
	catalog := Catalog{
		"local/llama-3-70b": {InputPerMillion: 0.5, OutputPerMillion: 0.7},
	}

	cost := EstimateCost("local/llama-3-70b", 2_000_000, 1_000_000, 0, 0, catalog)
	if cost == nil {
		t.Fatalf("EstimateCost() = nil, want catalog hit")
	}
	if math.Abs(*cost-1.7) > 1e-9 {
		t.Fatalf("cost = %v, want 1.7", *cost)
	}
}

func TestEstimateCost_UnknownModelIsNil(t *testing.T) {
	cost := EstimateCost("local/mystery-model", 1000, 1000, 0, 0, Catalog{})
	if cost != nil {
		t.Fatalf("EstimateCost() = %v, want nil for unknown model", *cost)
	}
}

func TestEstimateCost_ZeroTokensCoveredModel(t *testing.T) {
	// A priced model with zero tokens is a true zero-cost session,
	// distinct from unresolved pricing.
	cost := EstimateCost("gpt-4o", 0, 0, 0, 0, nil)
	if cost == nil {
		t.Fatalf("EstimateCost() = nil, want zero value")
	}
	if *cost != 0 {
		t.Fatalf("cost = %v, want 0", *cost)
	}
}

func TestParseCatalog(t *testing.T) {
	body := []byte(`{
		"sample_spec": {"max_tokens": "set to max output tokens"},
		"local/llama-3-70b": {"input_cost_per_token": 5e-7, "output_cost_per_token": 7e-7},
		"free-model": {"input_cost_per_token": 0, "output_cost_per_token": 0}
	}`)

	catalog := ParseCatalog(body)
	if len(catalog) != 1 {
		t.Fatalf("catalog len = %d, want 1 (metadata and free entries skipped)", len(catalog))
	}
	rate, ok := catalog["local/llama-3-70b"]
	if !ok {
		t.Fatalf("missing expected catalog entry")
	}
	if math.Abs(rate.InputPerMillion-0.5) > 1e-9 || math.Abs(rate.OutputPerMillion-0.7) > 1e-9 {
		t.Fatalf("rate = %+v", rate)
	}
}

func TestShortModel(t *testing.T) {
	if got := shortModel("anthropic/claude-opus-4"); got != "claude-opus-4" {
		t.Fatalf("shortModel = %q", got)
	}
	if got := shortModel("claude-opus-4"); got != "claude-opus-4" {
		t.Fatalf("shortModel = %q", got)
	}
}
