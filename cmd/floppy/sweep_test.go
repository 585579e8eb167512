package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"floppy/internal/config"
)

func writeBlobDir(t *testing.T, root, key, name string) {
	t.Helper()
	dir := filepath.Join(root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRunSweepDryRunKeepsFiles(t *testing.T) {
	root := t.TempDir()
	writeBlobDir(t, root, "12345", "2001-01-01T00:00:00Z")

	cfg := config.Default()
	cfg.StorageRoot = root

	report, err := runSweep(context.Background(), &cfg, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(report.Expired) != 1 || report.Expired[0] != "12345" {
		t.Fatalf("expected 12345 reported, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "12345")); err != nil {
		t.Fatalf("dry run removed blob: %v", err)
	}
}

func TestRunSweepDeletesExpired(t *testing.T) {
	root := t.TempDir()
	writeBlobDir(t, root, "12345", "2001-01-01T00:00:00Z")
	writeBlobDir(t, root, "67890", "2999-01-01T00:00:00Z")

	cfg := config.Default()
	cfg.StorageRoot = root
	cfg.LedgerPath = filepath.Join(t.TempDir(), "ledger.db")

	report, err := runSweep(context.Background(), &cfg, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Scanned != 2 || report.Evicted != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "12345")); !os.IsNotExist(err) {
		t.Fatalf("expected expired blob removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "67890")); err != nil {
		t.Fatalf("expected fresh blob kept: %v", err)
	}
}

func TestReadUpload(t *testing.T) {
	data, name, err := readUpload(strings.NewReader("from stdin"), "-")
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if string(data) != "from stdin" || name != "" {
		t.Fatalf("unexpected stdin upload: %q %q", data, name)
	}

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("from file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, name, err = readUpload(nil, path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "from file" || name != "notes.txt" {
		t.Fatalf("unexpected file upload: %q %q", data, name)
	}
}
