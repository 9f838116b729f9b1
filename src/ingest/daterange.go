package ingest

import "time"

// DateRange is the span of parseable dates in a statement, used by the
// caller to build the object-store key for the raw upload.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DateRangeOf scans the buffer for its min and max parseable dates under the
// same two-format detection as NormalizeTransactions, but only the date
// column matters here. Returns nil when the format is undetectable or no
// dates parse; the caller must fall back to something (e.g. the upload date).
func (n *Normalizer) DateRangeOf(raw []byte) *DateRange {
	headers, rows, err := readCSV(raw)
	if err != nil || len(headers) == 0 {
		return nil
	}

	var dateHeader string
	var ok bool
	switch {
	case containsExact(headers, colCreatedOn):
		dateHeader = colCreatedOn
	default:
		dateHeader, ok = resolveHeader(ledgerDateAliases, headers)
		if !ok {
			n.log.Warn("could not determine date column for date range", "headers", headers)
			return nil
		}
	}

	var r *DateRange
	for _, row := range rows {
		date, ok := parseDate(row[dateHeader])
		if !ok {
			continue
		}
		if r == nil {
			r = &DateRange{Start: date, End: date}
			continue
		}
		if date.Before(r.Start) {
			r.Start = date
		}
		if date.After(r.End) {
			r.End = date
		}
	}
	return r
}
