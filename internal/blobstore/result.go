package blobstore

import (
	"fmt"
	"strconv"
	"time"

	"floppy/internal/retention"
)

// PutStatus is the outcome of an upload.
type PutStatus string

const (
	StatusStored    PutStatus = "stored"
	StatusDuplicate PutStatus = "duplicate"
	StatusTooLarge  PutStatus = "too_large"
)

const duplicateNotice = "Someone has already uploaded this file before. No need to recreate it."

// PutResult describes an accepted upload. Duplicates and oversized payloads
// are results, not errors.
type PutResult struct {
	Key           string
	Status        PutStatus
	SizeBytes     int64
	RemainingDays float64
	Text          string
}

// String returns the report shown to the uploader.
func (r PutResult) String() string { return r.Text }

func tooLargeNotice(limit int64) string {
	return fmt.Sprintf("I don't accept fat files. file_size > %dm\n", retention.SizeMB(limit))
}

// infoText renders the three-line report for a stored blob.
func infoText(publicURL, key string, sizeBytes int64, days float64) string {
	return fmt.Sprintf("\nURL: %s?file=%s\nFile size: %dM\nDays remaining: %s\n",
		publicURL, key, retention.SizeMB(sizeBytes), formatDays(days))
}

func formatDays(days float64) string {
	return strconv.FormatFloat(days, 'f', -1, 64)
}

// fileName encodes a creation time as the payload file name.
func fileName(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseFileName(name string) (time.Time, error) {
	return time.Parse(time.RFC3339, name)
}
