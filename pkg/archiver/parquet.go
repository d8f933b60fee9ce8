package archiver

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/wisbric/lynex/pkg/analytics"
)

// parquetRowGroups is the number of row groups the writer parallelizes
// over; the archiver's batches are small enough that this is generous
// rather than load-bearing.
const parquetRowGroups = 4

// parquetRow mirrors analytics.Row's column set (spec §6) with the
// struct tags the Parquet writer reads its schema from.
type parquetRow struct {
	EventID          string  `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProjectID        string  `parquet:"name=project_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type             string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp        int64   `parquet:"name=timestamp, type=INT64"`
	SDKName          string  `parquet:"name=sdk_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	SDKVersion       string  `parquet:"name=sdk_version, type=BYTE_ARRAY, convertedtype=UTF8"`
	Body             string  `parquet:"name=body, type=BYTE_ARRAY, convertedtype=UTF8"`
	Context          string  `parquet:"name=context, type=BYTE_ARRAY, convertedtype=UTF8"`
	QueuedAt         int64   `parquet:"name=queued_at, type=INT64"`
	ProcessedAt      int64   `parquet:"name=processed_at, type=INT64"`
	QueueLatencyMs   float32 `parquet:"name=queue_latency_ms, type=FLOAT"`
	EstimatedCostUSD float64 `parquet:"name=estimated_cost_usd, type=DOUBLE"`
}

func toParquetRow(r analytics.Row) parquetRow {
	return parquetRow{
		EventID:          r.EventID,
		ProjectID:        r.ProjectID,
		Type:             r.Type,
		Timestamp:        r.Timestamp,
		SDKName:          r.SDKName,
		SDKVersion:       r.SDKVersion,
		Body:             r.Body,
		Context:          r.Context,
		QueuedAt:         r.QueuedAt,
		ProcessedAt:      r.ProcessedAt,
		QueueLatencyMs:   r.QueueLatencyMs,
		EstimatedCostUSD: r.EstimatedCostUSD,
	}
}

// encodeParquet serializes rows into a Snappy-compressed Parquet file
// (spec §4.11 step 3).
func encodeParquet(rows []analytics.Row) ([]byte, error) {
	var buf bytes.Buffer
	file := writerfile.NewWriterFile(&buf)

	pw, err := writer.NewParquetWriter(file, new(parquetRow), parquetRowGroups)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(toParquetRow(r)); err != nil {
			return nil, fmt.Errorf("writing row %s: %w", r.EventID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalizing parquet file: %w", err)
	}

	return buf.Bytes(), nil
}
