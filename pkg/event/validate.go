package event

import "fmt"

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func fieldErr(field, format string, args ...any) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks envelope-level invariants and, where the type has a
// strict body contract, the body fields. Unknown types are never rejected
// (they validate as custom). Returns nil when the envelope is valid.
func Validate(e *Envelope) []ValidationError {
	var errs []ValidationError

	if e.ProjectID == "" {
		errs = append(errs, fieldErr("project_id", "this field is required"))
	}
	if e.Timestamp.IsZero() {
		errs = append(errs, fieldErr("timestamp", "this field is required"))
	}

	errs = append(errs, validateBody(e.Type, e.Body)...)
	return errs
}

// ValidateBatch validates each envelope in a batch. Batch size against
// MaxBatchSize is enforced by the caller (a distinct HTTP status from
// per-field validation failures), not here.
func ValidateBatch(envelopes []Envelope) []ValidationError {
	var errs []ValidationError
	for i := range envelopes {
		for _, e := range Validate(&envelopes[i]) {
			e.Field = fmt.Sprintf("[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return errs
}

// validateBody type-switches on the concrete Body NewBody already built
// for e.Type, so a mismatch between e.Type and the decoded Body variant
// (which NewBody's own dispatch makes impossible in practice) simply
// validates as having no strict contract rather than panicking.
func validateBody(t Type, body Body) []ValidationError {
	switch b := body.(type) {
	case LogBody:
		return validateLogBody(b)
	case ErrorBody:
		return validateErrorBody(b)
	case SpanBody:
		return validateSpanBody(b)
	case TokenUsageBody:
		return validateTokenUsageBody(b)
	case ModelResponseBody:
		return validateModelResponseBody(b)
	default:
		// agent_action, retrieval, tool_call, eval_metric, message, custom,
		// and any unrecognized type have no strict body contract.
		return nil
	}
}

func validateLogBody(b LogBody) []ValidationError {
	var errs []ValidationError

	switch b.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fieldErr("body.level", "must be one of: debug info warn error"))
	}

	if b.Message == "" {
		errs = append(errs, fieldErr("body.message", "this field is required"))
	}

	return errs
}

func validateErrorBody(b ErrorBody) []ValidationError {
	var errs []ValidationError

	if b.Message == "" {
		errs = append(errs, fieldErr("body.message", "this field is required"))
	}

	return errs
}

func validateSpanBody(b SpanBody) []ValidationError {
	var errs []ValidationError

	if b.SpanID == "" {
		errs = append(errs, fieldErr("body.span_id", "this field is required"))
	}
	if b.Name == "" {
		errs = append(errs, fieldErr("body.name", "this field is required"))
	}
	if _, ok := b.Raw()["start"]; !ok {
		errs = append(errs, fieldErr("body.start", "this field is required"))
	}

	return errs
}

func validateTokenUsageBody(b TokenUsageBody) []ValidationError {
	var errs []ValidationError

	if b.Model == "" {
		errs = append(errs, fieldErr("body.model", "this field is required"))
	}

	if !b.HasInputTokens || b.InputTokens < 0 {
		errs = append(errs, fieldErr("body.input_tokens", "must be a non-negative number"))
	}
	if !b.HasOutputTokens || b.OutputTokens < 0 {
		errs = append(errs, fieldErr("body.output_tokens", "must be a non-negative number"))
	}

	return errs
}

func validateModelResponseBody(b ModelResponseBody) []ValidationError {
	var errs []ValidationError

	if b.Model == "" {
		errs = append(errs, fieldErr("body.model", "this field is required"))
	}
	if !b.HasLatencyMs || b.LatencyMs < 0 {
		errs = append(errs, fieldErr("body.latency_ms", "must be a non-negative number"))
	}

	return errs
}
