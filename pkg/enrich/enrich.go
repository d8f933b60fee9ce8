// Package enrich implements the pure, never-failing transform the
// processor applies to every event before alert evaluation and storage.
package enrich

import (
	"time"

	"github.com/wisbric/lynex/pkg/event"
	"github.com/wisbric/lynex/pkg/pricing"
)

// Enrich computes the processor-assigned fields for an event. It never
// fails: missing or malformed fields degrade to zero or omission rather
// than an error.
func Enrich(e event.Envelope, queuedAt time.Time) event.Enriched {
	now := time.Now().UTC()

	enriched := event.Enriched{
		Envelope:    e,
		QueuedAt:    queuedAt,
		ProcessedAt: now,
	}

	if !queuedAt.IsZero() {
		latency := now.Sub(queuedAt).Seconds() * 1000
		if latency < 0 {
			latency = 0
		}
		enriched.QueueLatencyMs = latency
	}

	if e.Type == event.TypeTokenUsage {
		applyCost(&enriched, e.Body)
	}

	return enriched
}

func applyCost(enriched *event.Enriched, body event.Body) {
	// body is a TokenUsageBody whenever e.Type == TypeTokenUsage (NewBody's
	// dispatch guarantees it); the zero value if the assertion ever fails,
	// or if body is nil altogether, degrades to zero cost rather than
	// panicking, matching Enrich's "never fails" contract.
	tb, _ := body.(event.TokenUsageBody)
	model := tb.Model

	raw := map[string]any{}
	if body != nil {
		raw = body.Raw()
	}

	var inputCost, outputCost, totalCost float64
	resolvedModel := pricing.ResolveKey(model)

	switch {
	case tb.HasInputTokens || tb.HasOutputTokens:
		inputCost = pricing.Cost(model, int64(tb.InputTokens), 0)
		outputCost = pricing.Cost(model, 0, int64(tb.OutputTokens))
		totalCost = pricing.Cost(model, int64(tb.InputTokens), int64(tb.OutputTokens))
	default:
		// total_tokens is a client convenience outside the strict
		// token_usage contract, so it's read from the raw body rather
		// than a typed field.
		if total, ok := numericField(raw, "total_tokens", "totalTokens"); ok {
			estimatedInput := int64(total * 0.7)
			estimatedOutput := int64(total) - estimatedInput
			totalCost = pricing.CostFromTotal(model, int64(total))
			inputCost = pricing.Cost(model, estimatedInput, 0)
			outputCost = pricing.Cost(model, 0, estimatedOutput)
		}
	}

	enriched.EstimatedCostUSD = totalCost
	enriched.CostBreakdown = &event.CostBreakdown{
		InputCost:       inputCost,
		OutputCost:      outputCost,
		NormalizedModel: resolvedModel,
	}
}

// numericField reads a field that may be spelled either snake_case or
// camelCase, as pkg/event's validators do.
func numericField(body map[string]any, snake, camel string) (float64, bool) {
	if v, ok := body[snake]; ok {
		f, ok := v.(float64)
		return f, ok
	}
	if v, ok := body[camel]; ok {
		f, ok := v.(float64)
		return f, ok
	}
	return 0, false
}
