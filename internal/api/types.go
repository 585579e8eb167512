package api

import "time"

// ErrorResponse is the JSON error wrapper used by the JSON endpoints. Blob
// endpoints answer errors in plain text.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// LedgerTotals mirrors the event ledger aggregates.
type LedgerTotals struct {
	StoredCount  int64 `json:"stored_count" yaml:"stored_count"`
	StoredBytes  int64 `json:"stored_bytes" yaml:"stored_bytes"`
	DeletedCount int64 `json:"deleted_count" yaml:"deleted_count"`
	DeletedBytes int64 `json:"deleted_bytes" yaml:"deleted_bytes"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	StorageRoot             string        `json:"storage_root" yaml:"storage_root"`
	PublicURL               string        `json:"public_url" yaml:"public_url"`
	Blobs                   int           `json:"blobs" yaml:"blobs"`
	Bytes                   int64         `json:"bytes" yaml:"bytes"`
	MaxBlobBytes            int64         `json:"max_blob_bytes" yaml:"max_blob_bytes"`
	GuardianIntervalMinutes int           `json:"guardian_interval_minutes" yaml:"guardian_interval_minutes"`
	LastSweep               *time.Time    `json:"last_sweep,omitempty" yaml:"last_sweep,omitempty"`
	Ledger                  *LedgerTotals `json:"ledger,omitempty" yaml:"ledger,omitempty"`
}

// BlobEvent is one ledger entry for a key.
type BlobEvent struct {
	Kind      string    `json:"kind" yaml:"kind"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
	At        time.Time `json:"at" yaml:"at"`
}

// HistoryResponse is the response from GET /v1/history/{key}.
type HistoryResponse struct {
	Key    string      `json:"key" yaml:"key"`
	Events []BlobEvent `json:"events" yaml:"events"`
}
