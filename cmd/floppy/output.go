package main

import (
	"fmt"
	"os"
	"time"

	"floppy/internal/format"
)

// outputFormatter is nil for plain text output.
var outputFormatter format.Formatter

func structuredOutput() bool {
	return outputFormatter != nil
}

func writeStructured(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
