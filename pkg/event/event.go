// Package event defines the telemetry envelope, its per-type body
// contracts, and canonical JSON decoding that tolerates both camelCase and
// snake_case field names on input.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the accepted event types.
type Type string

const (
	TypeLog           Type = "log"
	TypeError         Type = "error"
	TypeSpan          Type = "span"
	TypeTokenUsage    Type = "token_usage"
	TypeMessage       Type = "message"
	TypeModelResponse Type = "model_response"
	TypeAgentAction   Type = "agent_action"
	TypeRetrieval     Type = "retrieval"
	TypeToolCall      Type = "tool_call"
	TypeEvalMetric    Type = "eval_metric"
	TypeCustom        Type = "custom"
)

// MaxBatchSize is the largest number of envelopes accepted per batch request.
const MaxBatchSize = 100

// SDKInfo identifies the client SDK that produced an event.
type SDKInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Envelope is the canonical, server-side representation of an event. Field
// names here are always snake_case; decoding from the wire tolerates
// camelCase aliases (see UnmarshalJSON).
type Envelope struct {
	EventID       string         `json:"event_id"`
	ProjectID     string         `json:"project_id"`
	Type          Type           `json:"type"`
	Timestamp     time.Time      `json:"timestamp"`
	SDK           SDKInfo        `json:"sdk"`
	Body          Body           `json:"body"`
	Context       map[string]any `json:"context,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
	ParentEventID *string        `json:"parent_event_id,omitempty"`
}

// Body is the sum type for event body payloads. Each Type with a strict
// schema decodes into its own concrete Body implementation; every other
// type (agent_action, retrieval, tool_call, eval_metric, message, custom,
// and anything this server doesn't recognize) decodes into CustomBody.
// Raw always returns the original field data: rule field-path matching
// (pkg/alert) and forwarding the body to storage unchanged both go
// through it rather than through stringly-typed access on a bare map.
type Body interface {
	Raw() map[string]any
}

// CustomBody is the open-ended variant for event types with no strict
// body contract.
type CustomBody struct {
	fields map[string]any
}

func (b CustomBody) Raw() map[string]any      { return b.fields }
func (b CustomBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// LogBody is the body contract for "log" events.
type LogBody struct {
	Level   string
	Message string
	fields  map[string]any
}

func (b LogBody) Raw() map[string]any      { return b.fields }
func (b LogBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// ErrorBody is the body contract for "error" events.
type ErrorBody struct {
	Message string
	fields  map[string]any
}

func (b ErrorBody) Raw() map[string]any      { return b.fields }
func (b ErrorBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// SpanBody is the body contract for "span" events.
type SpanBody struct {
	SpanID string
	Name   string
	fields map[string]any
}

func (b SpanBody) Raw() map[string]any      { return b.fields }
func (b SpanBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// TokenUsageBody is the body contract for "token_usage" events.
// HasInputTokens/HasOutputTokens distinguish an absent field from an
// explicit zero, matching the looser validation the original field-level
// checks performed against a bare map.
type TokenUsageBody struct {
	Model           string
	InputTokens     float64
	HasInputTokens  bool
	OutputTokens    float64
	HasOutputTokens bool
	fields          map[string]any
}

func (b TokenUsageBody) Raw() map[string]any      { return b.fields }
func (b TokenUsageBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// ModelResponseBody is the body contract for "model_response" events.
type ModelResponseBody struct {
	Model        string
	LatencyMs    float64
	HasLatencyMs bool
	fields       map[string]any
}

func (b ModelResponseBody) Raw() map[string]any      { return b.fields }
func (b ModelResponseBody) MarshalJSON() ([]byte, error) { return json.Marshal(b.fields) }

// NewBody builds the typed Body for event type t from already-decoded
// field data. UnmarshalJSON and ParseFields both call this once they know
// the envelope's type; it's exported so callers that already hold a
// decoded map (tests, anything re-deriving a Body) don't need to
// round-trip through JSON to get one.
func NewBody(t Type, fields map[string]any) Body {
	if fields == nil {
		fields = map[string]any{}
	}

	switch t {
	case TypeLog:
		return LogBody{
			Level:   stringAlt(fields, "level", "level"),
			Message: stringAlt(fields, "message", "message"),
			fields:  fields,
		}
	case TypeError:
		return ErrorBody{
			Message: stringAlt(fields, "message", "message"),
			fields:  fields,
		}
	case TypeSpan:
		return SpanBody{
			SpanID: stringAlt(fields, "span_id", "spanId"),
			Name:   stringAlt(fields, "name", "name"),
			fields: fields,
		}
	case TypeTokenUsage:
		in, hasIn := numericAlt(fields, "input_tokens", "inputTokens")
		out, hasOut := numericAlt(fields, "output_tokens", "outputTokens")
		return TokenUsageBody{
			Model:           stringAlt(fields, "model", "model"),
			InputTokens:     in,
			HasInputTokens:  hasIn,
			OutputTokens:    out,
			HasOutputTokens: hasOut,
			fields:          fields,
		}
	case TypeModelResponse:
		lat, hasLat := numericAlt(fields, "latency_ms", "latencyMs")
		return ModelResponseBody{
			Model:        stringAlt(fields, "model", "model"),
			LatencyMs:    lat,
			HasLatencyMs: hasLat,
			fields:       fields,
		}
	default:
		return CustomBody{fields: fields}
	}
}

// stringAlt reads a field that may be spelled either snake_case or
// camelCase.
func stringAlt(fields map[string]any, snake, camel string) string {
	if v, ok := fields[snake].(string); ok {
		return v
	}
	if v, ok := fields[camel].(string); ok {
		return v
	}
	return ""
}

// numericAlt reads a field that may be spelled either snake_case or
// camelCase, as JSON numbers always decode in Go: float64.
func numericAlt(fields map[string]any, snake, camel string) (float64, bool) {
	if v, ok := fields[snake]; ok {
		f, ok := v.(float64)
		return f, ok
	}
	if v, ok := fields[camel]; ok {
		f, ok := v.(float64)
		return f, ok
	}
	return 0, false
}

// wireEnvelope mirrors Envelope but accepts both camelCase and snake_case
// keys for the fields the wire format allows either spelling of. Whichever
// is present wins; snake_case takes priority when both are set.
type wireEnvelope struct {
	EventID    string         `json:"event_id"`
	EventIDAlt string         `json:"eventId"`
	ProjectID  string         `json:"project_id"`
	ProjectAlt string         `json:"projectId"`
	Type       Type           `json:"type"`
	Timestamp  *time.Time     `json:"timestamp"`
	SDK        SDKInfo        `json:"sdk"`
	Body       map[string]any `json:"body"`
	Context    map[string]any `json:"context"`

	TraceID       string  `json:"trace_id"`
	TraceIDAlt    string  `json:"traceId"`
	ParentEventID *string `json:"parent_event_id"`
	ParentAlt     *string `json:"parentEventId"`
}

// UnmarshalJSON decodes the wire envelope, accepting camelCase or
// snake_case for eventId/projectId/traceId/parentEventId, defaulting
// EventID to a fresh UUID and Timestamp to now when absent.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	e.EventID = firstNonEmpty(w.EventID, w.EventIDAlt)
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}

	e.ProjectID = firstNonEmpty(w.ProjectID, w.ProjectAlt)
	e.Type = w.Type
	if e.Type == "" {
		e.Type = TypeCustom
	}

	if w.Timestamp != nil {
		e.Timestamp = *w.Timestamp
	} else {
		e.Timestamp = time.Now().UTC()
	}

	e.SDK = w.SDK
	e.Body = NewBody(e.Type, w.Body)
	e.Context = w.Context
	e.TraceID = firstNonEmpty(w.TraceID, w.TraceIDAlt)

	if w.ParentEventID != nil {
		e.ParentEventID = w.ParentEventID
	} else if w.ParentAlt != nil {
		e.ParentEventID = w.ParentAlt
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CostBreakdown is attached to enriched token_usage events.
type CostBreakdown struct {
	InputCost      float64 `json:"input_cost"`
	OutputCost     float64 `json:"output_cost"`
	NormalizedModel string `json:"normalized_model"`
}

// Enriched carries the server-assigned fields the processor adds before
// storage, alongside the original Envelope.
type Enriched struct {
	Envelope

	QueuedAt         time.Time      `json:"queued_at"`
	ProcessedAt      time.Time      `json:"processed_at"`
	QueueLatencyMs   float64        `json:"queue_latency_ms"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
	CostBreakdown    *CostBreakdown `json:"cost_breakdown,omitempty"`
}
