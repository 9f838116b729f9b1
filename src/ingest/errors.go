package ingest

import "fmt"

// UnrecognizedFormatError means the header row matched neither known layout.
// It aborts the whole batch before any row is processed.
type UnrecognizedFormatError struct {
	Headers []string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized statement format, headers: %v", e.Headers)
}

// MissingColumnError means a layout was detected but a column needed to
// extract its fields is absent. Also fatal to the batch.
type MissingColumnError struct {
	Format string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s format is missing required column %q", e.Format, e.Column)
}
