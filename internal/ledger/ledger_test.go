package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"floppy/internal/blobstore"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunMigrationsIdempotent(t *testing.T) {
	l := openTestLedger(t)

	if err := runMigrations(l.db); err != nil {
		t.Fatalf("second run: %v", err)
	}
	version, err := currentVersion(l.db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
}

func TestRecordEventAndTotals(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	events := []blobstore.Event{
		{Kind: blobstore.EventStored, Key: "1", SizeBytes: 10, At: at},
		{Kind: blobstore.EventStored, Key: "2", SizeBytes: 20, At: at},
		{Kind: blobstore.EventDeleted, Key: "1", SizeBytes: 10, At: at.Add(time.Hour)},
	}
	for _, ev := range events {
		if err := l.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("record %s: %v", ev.Kind, err)
		}
	}

	totals, err := l.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	want := Totals{StoredCount: 2, StoredBytes: 30, DeletedCount: 1, DeletedBytes: 10}
	if totals != want {
		t.Fatalf("expected %#v, got %#v", want, totals)
	}

	history, err := l.History(ctx, "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Kind != blobstore.EventStored || history[1].Kind != blobstore.EventDeleted {
		t.Fatalf("unexpected history: %#v", history)
	}
	if !history[1].At.Equal(at.Add(time.Hour)) {
		t.Fatalf("expected event time to round trip, got %s", history[1].At)
	}
}

func TestLedgerAsStoreSink(t *testing.T) {
	l := openTestLedger(t)
	s, err := blobstore.New(t.TempDir(), "http://localhost:8000/", blobstore.WithEventSink(l))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	res, err := s.Put(ctx, []byte("ledgered"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, res.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	totals, err := l.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.StoredCount != 1 || totals.DeletedCount != 1 || totals.StoredBytes != int64(len("ledgered")) {
		t.Fatalf("unexpected totals %#v", totals)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
