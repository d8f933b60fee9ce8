// Package analytics implements the buffered, batched ClickHouse writer
// that lands enriched events into the columnar store (spec §4.9).
package analytics

import (
	"encoding/json"

	"github.com/wisbric/lynex/pkg/event"
)

// Row is a single record of the events table, mirroring its column set
// exactly (spec §6's "Analytics store schema").
type Row struct {
	EventID          string
	ProjectID        string
	Type             string
	Timestamp        int64 // unix seconds, matches ClickHouse DateTime
	SDKName          string
	SDKVersion       string
	Body             string
	Context          string
	QueuedAt         int64
	ProcessedAt      int64
	QueueLatencyMs   float32
	EstimatedCostUSD float64
}

// RowFromEnriched converts an enriched event into its storage row,
// JSON-encoding body/context the same way the bus wire format does.
func RowFromEnriched(e event.Enriched) (Row, error) {
	bodyJSON, err := json.Marshal(e.Body)
	if err != nil {
		return Row{}, err
	}
	contextJSON, err := json.Marshal(e.Context)
	if err != nil {
		return Row{}, err
	}

	return Row{
		EventID:          e.EventID,
		ProjectID:        e.ProjectID,
		Type:             string(e.Type),
		Timestamp:        e.Timestamp.Unix(),
		SDKName:          e.SDK.Name,
		SDKVersion:       e.SDK.Version,
		Body:             string(bodyJSON),
		Context:          string(contextJSON),
		QueuedAt:         e.QueuedAt.Unix(),
		ProcessedAt:      e.ProcessedAt.Unix(),
		QueueLatencyMs:   float32(e.QueueLatencyMs),
		EstimatedCostUSD: e.EstimatedCostUSD,
	}, nil
}
