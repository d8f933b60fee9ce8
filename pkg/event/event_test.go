package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeUnmarshalCamelAndSnakeCase(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "camelCase",
			body: `{"eventId":"evt_1","projectId":"proj_1","type":"log","timestamp":"2025-06-15T10:30:00Z","sdk":{"name":"py","version":"1.0"},"body":{"level":"info","message":"hi"}}`,
		},
		{
			name: "snake_case",
			body: `{"event_id":"evt_1","project_id":"proj_1","type":"log","timestamp":"2025-06-15T10:30:00Z","sdk":{"name":"py","version":"1.0"},"body":{"level":"info","message":"hi"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Envelope
			if err := json.Unmarshal([]byte(tt.body), &e); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if e.EventID != "evt_1" {
				t.Errorf("EventID = %q, want evt_1", e.EventID)
			}
			if e.ProjectID != "proj_1" {
				t.Errorf("ProjectID = %q, want proj_1", e.ProjectID)
			}
		})
	}
}

func TestEnvelopeUnmarshalDefaultsEventIDAndTimestamp(t *testing.T) {
	var e Envelope
	if err := json.Unmarshal([]byte(`{"projectId":"proj_1","type":"log","body":{"level":"info","message":"hi"}}`), &e); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if e.EventID == "" {
		t.Error("expected EventID to default to a generated value")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected Timestamp to default to now")
	}
}

func TestFlattenParseFieldsRoundTrip(t *testing.T) {
	e := Envelope{
		EventID:   "evt_1",
		ProjectID: "proj_1",
		Type:      TypeTokenUsage,
		Timestamp: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		SDK:       SDKInfo{Name: "py", Version: "1.0"},
		Body:      NewBody(TypeTokenUsage, map[string]any{"model": "gpt-4", "input_tokens": 1000.0, "output_tokens": 500.0}),
		Context:   map[string]any{"env": "prod"},
	}
	queuedAt := time.Date(2025, 6, 15, 10, 30, 1, 0, time.UTC)

	fields, err := Flatten(&e, queuedAt)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	got, gotQueuedAt, err := ParseFields(fields)
	if err != nil {
		t.Fatalf("ParseFields() error = %v", err)
	}

	if got.EventID != e.EventID || got.ProjectID != e.ProjectID || got.Type != e.Type {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, e)
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, e.Timestamp)
	}
	if !gotQueuedAt.Equal(queuedAt) {
		t.Errorf("queuedAt = %v, want %v", gotQueuedAt, queuedAt)
	}
	if got.Body.Raw()["model"] != "gpt-4" {
		t.Errorf("Body[model] = %v, want gpt-4", got.Body.Raw()["model"])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{
			name: "valid log event",
			env: Envelope{
				ProjectID: "proj_1",
				Type:      TypeLog,
				Timestamp: time.Now(),
				Body:      NewBody(TypeLog, map[string]any{"level": "info", "message": "hi"}),
			},
			wantErr: false,
		},
		{
			name: "log missing message",
			env: Envelope{
				ProjectID: "proj_1",
				Type:      TypeLog,
				Timestamp: time.Now(),
				Body:      NewBody(TypeLog, map[string]any{"level": "info"}),
			},
			wantErr: true,
		},
		{
			name: "missing project id",
			env: Envelope{
				Type:      TypeCustom,
				Timestamp: time.Now(),
				Body:      NewBody(TypeCustom, map[string]any{}),
			},
			wantErr: true,
		},
		{
			name: "unknown type has no strict body contract",
			env: Envelope{
				ProjectID: "proj_1",
				Type:      "something_new",
				Timestamp: time.Now(),
				Body:      NewBody("something_new", map[string]any{"anything": "goes"}),
			},
			wantErr: false,
		},
		{
			name: "token_usage requires model and tokens",
			env: Envelope{
				ProjectID: "proj_1",
				Type:      TypeTokenUsage,
				Timestamp: time.Now(),
				Body:      NewBody(TypeTokenUsage, map[string]any{"model": "gpt-4", "input_tokens": 1000.0, "output_tokens": 500.0}),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.env)
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Validate() errs = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchPrefixesFieldWithIndex(t *testing.T) {
	envs := []Envelope{
		{ProjectID: "proj_1", Type: TypeCustom, Timestamp: time.Now(), Body: NewBody(TypeCustom, nil)},
		{ProjectID: "proj_1", Type: TypeLog, Timestamp: time.Now(), Body: NewBody(TypeLog, map[string]any{"level": "info"})},
	}

	errs := ValidateBatch(envs)
	if len(errs) != 1 || errs[0].Field != "[1].body.message" {
		t.Errorf("ValidateBatch() = %v, want single indexed body.message error", errs)
	}
}
