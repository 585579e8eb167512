// Package retention computes how long a stored blob is kept.
//
// The lifetime shrinks as the blob grows: a blob gets Budget/size days,
// where size is in megabytes and never taken below MinSizeMB, minus the
// whole days it has already been stored. The result is clamped to
// [0, MaxDays]; zero means the blob may be reclaimed.
package retention

import (
	"math"
	"time"
)

const (
	// MaxDays caps the retention of every blob regardless of size.
	MaxDays = 30.0
	// MinSizeMB is the smallest size used in the formula.
	MinSizeMB = 5.0
	// Budget is the retention budget in megabyte-days.
	Budget = 150.0

	bytesPerMB = 1_000_000
	day        = 24 * time.Hour
)

// RemainingDays returns the retention left for a blob of sizeBytes created
// at createdAt, as seen at now.
func RemainingDays(sizeBytes int64, createdAt, now time.Time) float64 {
	sizeMB := math.Max(float64(sizeBytes)/bytesPerMB, MinSizeMB)
	days := Budget/sizeMB - float64(AgeDays(createdAt, now))
	switch {
	case days > MaxDays:
		return MaxDays
	case days < 0:
		return 0
	default:
		return days
	}
}

// AgeDays is the number of whole days between createdAt and now. A creation
// time in the future counts as age zero.
func AgeDays(createdAt, now time.Time) int64 {
	age := now.Sub(createdAt)
	if age < 0 {
		return 0
	}
	return int64(age / day)
}

// Expired reports whether the blob has no retention left.
func Expired(sizeBytes int64, createdAt, now time.Time) bool {
	return RemainingDays(sizeBytes, createdAt, now) == 0
}

// SizeMB converts bytes to whole megabytes for display.
func SizeMB(sizeBytes int64) int64 {
	return sizeBytes / bytesPerMB
}
