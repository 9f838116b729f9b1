// Package ingest turns raw statement CSV bytes into normalized transaction
// records in the reporting currency. It understands exactly two layouts: the
// ledger format (date/description/amount, optional running balance) and the
// multi-currency transfer format. Rows that fail validation are skipped and
// logged; structural problems abort the batch before any row is processed.
package ingest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one normalized transaction. The caller attaches the owning user,
// account, and account type before persistence; a Record carries no identity.
type Record struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Balance     *decimal.Decimal
}

// Rates holds the one fixed conversion the normalizer knows about: amounts in
// ForeignCurrency are multiplied by Rate to reach the reporting currency. Any
// other foreign currency pair is dropped rather than guessed.
type Rates struct {
	ForeignCurrency string
	Rate            decimal.Decimal
}

const transferPlaceholderDescription = "Transfer"

type Normalizer struct {
	reporting string
	rates     Rates
	log       *slog.Logger
}

func New(reportingCurrency string, rates Rates) *Normalizer {
	return &Normalizer{
		reporting: strings.ToUpper(reportingCurrency),
		rates: Rates{
			ForeignCurrency: strings.ToUpper(rates.ForeignCurrency),
			Rate:            rates.Rate,
		},
		log: slog.Default(),
	}
}

// ReportingCurrency returns the uppercase currency code all output amounts
// are denominated in.
func (n *Normalizer) ReportingCurrency() string {
	return n.reporting
}

// NormalizeTransactions parses the buffer and returns records in source row
// order. The output may be shorter than the input: invalid rows are skipped,
// not errored. Structural failures return *UnrecognizedFormatError or
// *MissingColumnError and no records.
func (n *Normalizer) NormalizeTransactions(raw []byte) ([]Record, error) {
	headers, rows, err := readCSV(raw)
	if err != nil {
		return nil, err
	}
	n.log.Debug("detected statement headers", "headers", headers)

	switch {
	case isTransferFormat(headers):
		n.log.Info("detected transfer format")
		return n.normalizeTransferRows(headers, rows)
	case isLedgerFormat(headers):
		n.log.Info("detected ledger format")
		return n.normalizeLedgerRows(headers, rows)
	default:
		return nil, &UnrecognizedFormatError{Headers: headers}
	}
}

func isTransferFormat(headers []string) bool {
	return containsExact(headers, colSourceCurrency) &&
		containsExact(headers, colTargetCurrency) &&
		containsExact(headers, colDirection)
}

func isLedgerFormat(headers []string) bool {
	_, hasDate := resolveHeader([]string{"date"}, headers)
	_, hasDescription := resolveHeader([]string{"description"}, headers)
	_, hasAmount := resolveHeader([]string{"amount"}, headers)
	return hasDate && hasDescription && hasAmount
}

func (n *Normalizer) normalizeLedgerRows(headers []string, rows []map[string]string) ([]Record, error) {
	dateHeader, ok := resolveHeader(ledgerDateAliases, headers)
	if !ok {
		return nil, &MissingColumnError{Format: "ledger", Column: "date"}
	}
	descriptionHeader, ok := resolveHeader(ledgerDescriptionAliases, headers)
	if !ok {
		return nil, &MissingColumnError{Format: "ledger", Column: "description"}
	}
	amountHeader, ok := resolveHeader(ledgerAmountAliases, headers)
	if !ok {
		return nil, &MissingColumnError{Format: "ledger", Column: "amount"}
	}
	balanceHeader, hasBalance := resolveHeader(ledgerBalanceAliases, headers)

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		dateStr := row[dateHeader]
		descriptionStr := row[descriptionHeader]
		amountStr := row[amountHeader]

		if dateStr == "" || amountStr == "" || descriptionStr == "" {
			n.skipRow(i, row, "missing required fields")
			continue
		}

		date, ok := parseDate(dateStr)
		if !ok {
			n.skipRow(i, row, fmt.Sprintf("invalid date %q", dateStr))
			continue
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			n.skipRow(i, row, fmt.Sprintf("invalid amount %q", amountStr))
			continue
		}

		var balance *decimal.Decimal
		if hasBalance && row[balanceHeader] != "" {
			if b, err := parseAmount(row[balanceHeader]); err == nil {
				balance = &b
			}
		}

		// No conversion here: ledger statements are assumed to already be
		// denominated in the reporting currency.
		records = append(records, Record{
			Date:        date,
			Description: descriptionStr,
			Amount:      amount,
			Balance:     balance,
		})
	}

	n.log.Info("finished parsing ledger statement", "rows", len(rows), "records", len(records))
	return records, nil
}

type transferColumns struct {
	date, status, direction           string
	sourceAmount, sourceCurrency      string
	targetAmount, targetCurrency      string
	sourceName, targetName, reference string
	hasSourceName, hasTargetName      bool
	hasReference                      bool
}

func resolveTransferColumns(headers []string) (transferColumns, error) {
	var cols transferColumns
	var ok bool

	if cols.status, ok = resolveHeader([]string{colStatus}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colStatus}
	}
	if cols.direction, ok = resolveHeader([]string{colDirection}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colDirection}
	}
	if cols.sourceAmount, ok = resolveHeader([]string{colSourceAmount}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colSourceAmount}
	}
	if cols.sourceCurrency, ok = resolveHeader([]string{colSourceCurrency}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colSourceCurrency}
	}
	if cols.targetAmount, ok = resolveHeader([]string{colTargetAmount}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colTargetAmount}
	}
	if cols.targetCurrency, ok = resolveHeader([]string{colTargetCurrency}, headers); !ok {
		return cols, &MissingColumnError{Format: "transfer", Column: colTargetCurrency}
	}

	// Date and the naming columns are handled per row; their absence empties
	// the field, which the row gate then skips.
	cols.date, _ = resolveHeader([]string{colCreatedOn}, headers)
	cols.sourceName, cols.hasSourceName = resolveHeader([]string{colSourceName}, headers)
	cols.targetName, cols.hasTargetName = resolveHeader([]string{colTargetName}, headers)
	cols.reference, cols.hasReference = resolveHeader([]string{colReference}, headers)
	return cols, nil
}

func (n *Normalizer) normalizeTransferRows(headers []string, rows []map[string]string) ([]Record, error) {
	cols, err := resolveTransferColumns(headers)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		record, skipReason := n.normalizeTransferRow(row, cols)
		if record == nil {
			n.skipRow(i, row, skipReason)
			continue
		}
		records = append(records, *record)
	}

	n.log.Info("finished parsing transfer statement", "rows", len(rows), "records", len(records))
	return records, nil
}

// normalizeTransferRow reduces a two-currency transfer row to one signed
// reporting-currency amount. It returns a nil record with a skip reason for
// any row that cannot be normalized; skips never abort the batch.
func (n *Normalizer) normalizeTransferRow(row map[string]string, cols transferColumns) (*Record, string) {
	status := strings.ToUpper(row[cols.status])
	if status != "COMPLETED" {
		return nil, fmt.Sprintf("status is %s", status)
	}

	dateStr := row[cols.date]
	direction := strings.ToUpper(row[cols.direction])
	sourceCurrency := strings.ToUpper(row[cols.sourceCurrency])
	targetCurrency := strings.ToUpper(row[cols.targetCurrency])
	sourceAmountStr := row[cols.sourceAmount]
	targetAmountStr := row[cols.targetAmount]

	if dateStr == "" || sourceCurrency == "" || targetCurrency == "" ||
		sourceAmountStr == "" || targetAmountStr == "" || direction == "" {
		return nil, "missing essential fields"
	}

	date, ok := parseDate(dateStr)
	if !ok {
		return nil, fmt.Sprintf("invalid date %q", dateStr)
	}

	// Reporting-currency magnitude, first match wins: prefer a figure already
	// denominated in the reporting currency over any conversion, and only
	// fall back to the fixed rate for the one known foreign currency.
	var magnitude decimal.Decimal
	var err error
	switch {
	case sourceCurrency == n.reporting && targetCurrency == n.reporting:
		magnitude, err = parseAmount(sourceAmountStr)
	case targetCurrency == n.reporting:
		magnitude, err = parseAmount(targetAmountStr)
	case sourceCurrency == n.reporting:
		magnitude, err = parseAmount(sourceAmountStr)
	case sourceCurrency == n.rates.ForeignCurrency:
		magnitude, err = parseAmount(sourceAmountStr)
		if err == nil {
			magnitude = magnitude.Mul(n.rates.Rate)
			n.log.Debug("converted foreign amount at fixed rate",
				"from", sourceCurrency, "to", n.reporting, "rate", n.rates.Rate.String(),
				"value", magnitude.StringFixed(2))
		}
	default:
		return nil, fmt.Sprintf("no reporting-currency counterpart (%s -> %s)", sourceCurrency, targetCurrency)
	}
	if err != nil {
		return nil, fmt.Sprintf("invalid amount: %v", err)
	}

	// Upstream amount strings may already carry a sign; the sign of the
	// output is decided by the Direction column alone.
	magnitude = magnitude.Abs()
	amount := magnitude
	if direction == "OUT" {
		amount = magnitude.Neg()
	}

	var description string
	sourceName := ""
	if cols.hasSourceName {
		sourceName = row[cols.sourceName]
	}
	targetName := ""
	if cols.hasTargetName {
		targetName = row[cols.targetName]
	}
	switch {
	case sourceName != "" && targetName != "":
		description = sourceName + " -> " + targetName
	case sourceName != "":
		description = sourceName
	case targetName != "":
		description = targetName
	}
	if cols.hasReference && row[cols.reference] != "" {
		description += " (" + row[cols.reference] + ")"
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = transferPlaceholderDescription
	}

	// The transfer format never carries a running balance.
	return &Record{
		Date:        date,
		Description: description,
		Amount:      amount,
		Balance:     nil,
	}, ""
}

// skipRow logs a skipped row with its 1-based file position: the header is
// row 1, so data row i lands at i+2.
func (n *Normalizer) skipRow(i int, row map[string]string, reason string) {
	n.log.Warn("skipping statement row", "row", i+2, "reason", reason, "raw", fmt.Sprintf("%v", row))
}

// parseAmount strips everything that is not a digit, decimal point, or minus
// sign and parses what is left as an arbitrary-precision decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("no numeric content in %q", s)
	}
	return decimal.NewFromString(cleaned)
}

// Date layouts the two exports are known to produce.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
