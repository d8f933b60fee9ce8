package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields is the flat string-keyed representation carried by the durable
// bus: event_id, project_id, type, timestamp, sdk_name, sdk_version, body
// (JSON string), context (JSON string), queued_at.
type Fields map[string]string

// Flatten serializes an envelope to its bus wire fields and stamps
// queued_at with the given instant.
func Flatten(e *Envelope, queuedAt time.Time) (Fields, error) {
	bodyJSON, err := json.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling body: %w", err)
	}

	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return nil, fmt.Errorf("marshaling context: %w", err)
	}

	return Fields{
		"event_id":    e.EventID,
		"project_id":  e.ProjectID,
		"type":        string(e.Type),
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
		"sdk_name":    e.SDK.Name,
		"sdk_version": e.SDK.Version,
		"body":        string(bodyJSON),
		"context":     string(contextJSON),
		"queued_at":   queuedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// ParseFields reconstructs an Envelope and its queued_at instant from bus
// wire fields.
func ParseFields(f Fields) (Envelope, time.Time, error) {
	var e Envelope

	e.EventID = f["event_id"]
	e.ProjectID = f["project_id"]
	e.Type = Type(f["type"])
	e.SDK = SDKInfo{Name: f["sdk_name"], Version: f["sdk_version"]}

	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"])
	if err != nil {
		return e, time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = ts

	var rawBody map[string]any
	if body := f["body"]; body != "" {
		if err := json.Unmarshal([]byte(body), &rawBody); err != nil {
			return e, time.Time{}, fmt.Errorf("unmarshaling body: %w", err)
		}
	}
	e.Body = NewBody(e.Type, rawBody)
	if ctx := f["context"]; ctx != "" && ctx != "null" {
		if err := json.Unmarshal([]byte(ctx), &e.Context); err != nil {
			return e, time.Time{}, fmt.Errorf("unmarshaling context: %w", err)
		}
	}

	queuedAt, err := time.Parse(time.RFC3339Nano, f["queued_at"])
	if err != nil {
		return e, time.Time{}, fmt.Errorf("parsing queued_at: %w", err)
	}

	return e, queuedAt, nil
}
