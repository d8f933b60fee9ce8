package archiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wisbric/lynex/pkg/analytics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu        sync.Mutex
	rows      []analytics.Row
	deletedID [][]string
	selectErr error
}

func (f *fakeStore) SelectOlderThan(_ context.Context, _ time.Time, limit int) ([]analytics.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeStore) DeleteByEventIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedID = append(f.deletedID, ids)
	return nil
}

type fakeObjectStore struct {
	mu          sync.Mutex
	uploaded    map[string][]byte
	failUpload  map[string]bool
	verifyCalls []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploaded: make(map[string][]byte), failUpload: make(map[string]bool)}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload[key] {
		return errors.New("upload failed")
	}
	f.uploaded[key] = body
	return nil
}

func (f *fakeObjectStore) Verify(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls = append(f.verifyCalls, key)
	if _, ok := f.uploaded[key]; !ok {
		return errors.New("not found")
	}
	return nil
}

func rowAt(t time.Time, id string) analytics.Row {
	return analytics.Row{
		EventID:   id,
		ProjectID: "proj_1",
		Type:      "log",
		Timestamp: t.Unix(),
		Body:      `{}`,
		Context:   `{}`,
	}
}

func TestRunCycleGroupsByMonthAndExports(t *testing.T) {
	store := &fakeStore{rows: []analytics.Row{
		rowAt(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "evt_jan_1"),
		rowAt(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), "evt_jan_2"),
		rowAt(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), "evt_feb_1"),
	}}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events"})
	a.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

	a.runCycle(context.Background())

	if len(objects.uploaded) != 2 {
		t.Fatalf("uploaded %d objects, want 2 (one per month)", len(objects.uploaded))
	}
	for key := range objects.uploaded {
		if key[:6] != "events" {
			t.Errorf("key %q missing prefix", key)
		}
	}
}

func TestRunCycleDeletesAfterArchiveWhenConfigured(t *testing.T) {
	store := &fakeStore{rows: []analytics.Row{
		rowAt(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "evt_1"),
	}}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events", DeleteAfterArchive: true})
	a.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

	a.runCycle(context.Background())

	if len(store.deletedID) != 1 || len(store.deletedID[0]) != 1 || store.deletedID[0][0] != "evt_1" {
		t.Fatalf("deletedID = %v, want one call deleting evt_1", store.deletedID)
	}
}

func TestRunCycleSkipsDeleteWhenNotConfigured(t *testing.T) {
	store := &fakeStore{rows: []analytics.Row{
		rowAt(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "evt_1"),
	}}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events"})

	a.runCycle(context.Background())

	if len(store.deletedID) != 0 {
		t.Fatalf("deletedID = %v, want none", store.deletedID)
	}
}

func TestRunCycleIsolatesOneMonthBatchFailure(t *testing.T) {
	store := &fakeStore{rows: []analytics.Row{
		rowAt(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "evt_jan"),
		rowAt(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), "evt_feb"),
	}}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events"})
	a.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

	key := "events/2026-01/events_20260731_000000.parquet"
	objects.failUpload[key] = true

	a.runCycle(context.Background())

	if len(objects.uploaded) != 1 {
		t.Fatalf("uploaded %d objects, want 1 (february succeeds despite january failing)", len(objects.uploaded))
	}
}

func TestRunCycleNoRowsIsNoop(t *testing.T) {
	store := &fakeStore{}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events"})

	a.runCycle(context.Background())

	if len(objects.uploaded) != 0 {
		t.Fatalf("uploaded = %v, want none", objects.uploaded)
	}
}

func TestRunCycleSelectErrorIsLoggedAndDoesNotPanic(t *testing.T) {
	store := &fakeStore{selectErr: errors.New("clickhouse unavailable")}
	objects := newFakeObjectStore()
	a := New(store, objects, testLogger(), Config{Prefix: "events"})

	a.runCycle(context.Background())

	if len(objects.uploaded) != 0 {
		t.Fatalf("uploaded = %v, want none", objects.uploaded)
	}
}
