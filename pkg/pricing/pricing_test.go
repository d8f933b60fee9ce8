package pricing

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  Rate
	}{
		{"exact match", "gpt-4", Rate{30.0, 60.0}},
		{"exact match lowercased", "GPT-4", Rate{30.0, 60.0}},
		{"longest prefix resolves versioned model", "gpt-4-0125-preview", Rate{30.0, 60.0}},
		{"longest prefix prefers more specific key", "gpt-4-turbo-2024-04-09", Rate{10.0, 30.0}},
		{"longest prefix for anthropic dated snapshot", "claude-3-opus-20240229", Rate{15.0, 75.0}},
		{"longest prefix for claude-3-5 family", "claude-3-5-sonnet-20241022", Rate{3.0, 15.0}},
		{"unknown model falls back to default", "some-unreleased-model", Rate{1.0, 2.0}},
		{"whitespace is trimmed", "  gpt-4o  ", Rate{5.0, 15.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.model); got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.model, got, tt.want)
			}
		})
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		name                     string
		model                    string
		inputTokens, outputTokens int64
		want                     float64
	}{
		{"gpt-4 standard invocation", "gpt-4", 1000, 500, 0.060000},
		{"zero tokens yield zero cost", "gpt-4", 0, 0, 0},
		{"unknown model uses default rate", "made-up-model-9000", 1_000_000, 1_000_000, 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cost(tt.model, tt.inputTokens, tt.outputTokens); got != tt.want {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCostFromTotal(t *testing.T) {
	// 1000 total tokens -> 700 input / 300 output at gpt-4 rates.
	got := CostFromTotal("gpt-4", 1000)
	want := Cost("gpt-4", 700, 300)
	if got != want {
		t.Errorf("CostFromTotal() = %v, want %v", got, want)
	}
}
