package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Ledger format column aliases. Detection only looks at the primary name of
// each required column; extraction accepts any alias.
var (
	ledgerDateAliases        = []string{"date", "transaction date"}
	ledgerDescriptionAliases = []string{"description"}
	ledgerAmountAliases      = []string{"amount", "value"}
	ledgerBalanceAliases     = []string{"balance", "running balance"}
)

// Transfer format column names as the export writes them. Detection matches
// the three marker columns exactly; a looser match risks classifying ledger
// statements as transfers.
const (
	colCreatedOn      = "Created on"
	colStatus         = "Status"
	colDirection      = "Direction"
	colSourceCurrency = "Source currency"
	colTargetCurrency = "Target currency"
	colSourceAmount   = "Source amount (after fees)"
	colTargetAmount   = "Target amount (after fees)"
	colSourceName     = "Source name"
	colTargetName     = "Target name"
	colReference      = "Reference"
)

// resolveHeader returns the first header matching any of the aliases,
// compared case-insensitively.
func resolveHeader(aliases []string, headers []string) (string, bool) {
	for _, h := range headers {
		for _, a := range aliases {
			if strings.EqualFold(a, h) {
				return h, true
			}
		}
	}
	return "", false
}

func containsExact(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

// readCSV parses the buffer into a header row and data rows keyed by header
// name. Rows made up entirely of empty fields are dropped.
func readCSV(raw []byte) ([]string, []map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []map[string]string
	for _, record := range records[1:] {
		empty := true
		for _, field := range record {
			if strings.TrimSpace(field) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
