package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New("CAD", Rates{
		ForeignCurrency: "USD",
		Rate:            decimal.RequireFromString("1.39"),
	})
}

const transferHeader = "Created on,Status,Direction,Source currency,Source amount (after fees),Target currency,Target amount (after fees),Source name,Target name,Reference"

func TestNormalizeLedgerStatement(t *testing.T) {
	input := strings.Join([]string{
		"date,description,amount,balance",
		"2024-01-05,Coffee Shop,-4.50,1000.00",
		"2024-01-06,Paycheck,2500.00,3500.00",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, "Coffee Shop", records[0].Description)
	assert.Equal(t, "-4.50", records[0].Amount.StringFixed(2))
	require.NotNil(t, records[0].Balance)
	assert.Equal(t, "1000.00", records[0].Balance.StringFixed(2))

	assert.Equal(t, "Paycheck", records[1].Description)
	assert.Equal(t, "2500.00", records[1].Amount.StringFixed(2))
	require.NotNil(t, records[1].Balance)
	assert.Equal(t, "3500.00", records[1].Balance.StringFixed(2))
}

func TestNormalizeLedgerSkipsInvalidRows(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-05,Coffee Shop,-4.50",
		",Missing Date,10.00",
		"2024-01-07,,10.00",
		"2024-01-08,Missing Amount,",
		"not-a-date,Bad Date,10.00",
		"2024-01-09,Bad Amount,abc",
		"2024-01-10,Kept,12.34",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Coffee Shop", records[0].Description)
	assert.Equal(t, "Kept", records[1].Description)
	assert.Nil(t, records[0].Balance)
}

func TestNormalizeLedgerStripsCurrencyDecoration(t *testing.T) {
	input := strings.Join([]string{
		"date,description,amount,running balance",
		`2024-02-01,Rent,"$-1,850.00","CA$ 3,200.55"`,
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "-1850.00", records[0].Amount.StringFixed(2))
	require.NotNil(t, records[0].Balance)
	assert.Equal(t, "3200.55", records[0].Balance.StringFixed(2))
}

func TestUnrecognizedFormat(t *testing.T) {
	input := "foo,bar,baz\n1,2,3\n"

	_, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	var formatErr *UnrecognizedFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, []string{"foo", "bar", "baz"}, formatErr.Headers)
}

func TestEmptyInputIsUnrecognized(t *testing.T) {
	_, err := testNormalizer(t).NormalizeTransactions(nil)
	var formatErr *UnrecognizedFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Empty(t, formatErr.Headers)
}

func TestTransferMissingColumnIsFatal(t *testing.T) {
	// Marker columns present, so the transfer layout is chosen, but the
	// status column needed for extraction is gone: the batch must abort
	// before any row is processed.
	input := strings.Join([]string{
		"Created on,Direction,Source currency,Source amount (after fees),Target currency,Target amount (after fees)",
		"2024-03-01 10:00:00,OUT,CAD,50.00,CAD,50.00",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	var missingErr *MissingColumnError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "Status", missingErr.Column)
	assert.Empty(t, records)
}

func TestTransferFixedRateConversion(t *testing.T) {
	// USD source with a non-reporting target: rule (d), source amount times
	// the fixed rate, sign from Direction.
	input := strings.Join([]string{
		transferHeader,
		"2024-03-01 10:00:00,COMPLETED,OUT,USD,100.00,EUR,85.00,Me,Landlord,March rent",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "-139.00", records[0].Amount.StringFixed(2))
	assert.Equal(t, "Me -> Landlord (March rent)", records[0].Description)
	assert.Nil(t, records[0].Balance)
}

func TestTransferCurrencyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{
			name: "source and target both reporting uses source amount",
			row:  "2024-03-01 10:00:00,COMPLETED,IN,CAD,40.00,CAD,39.50,,,",
			want: "40.00",
		},
		{
			name: "target reporting uses target amount",
			row:  "2024-03-01 10:00:00,COMPLETED,IN,USD,100.00,CAD,137.20,,,",
			want: "137.20",
		},
		{
			name: "source reporting beats conversion regardless of target amount",
			row:  "2024-03-01 10:00:00,COMPLETED,IN,CAD,100.00,USD,72.00,,,",
			want: "100.00",
		},
		{
			name: "foreign source converts at fixed rate",
			row:  "2024-03-01 10:00:00,COMPLETED,IN,USD,100.00,GBP,58.00,,,",
			want: "139.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := transferHeader + "\n" + tt.row
			records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Amount.StringFixed(2))
		})
	}
}

func TestTransferUnknownCurrencyPairIsSkipped(t *testing.T) {
	input := strings.Join([]string{
		transferHeader,
		"2024-03-01 10:00:00,COMPLETED,OUT,EUR,100.00,GBP,85.00,,,",
		"2024-03-02 10:00:00,COMPLETED,OUT,CAD,20.00,CAD,20.00,,,",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "-20.00", records[0].Amount.StringFixed(2))
}

func TestTransferStatusGate(t *testing.T) {
	input := strings.Join([]string{
		transferHeader,
		"2024-03-01 10:00:00,PENDING,OUT,CAD,50.00,CAD,50.00,,,",
		"2024-03-02 10:00:00,CANCELLED,OUT,CAD,50.00,CAD,50.00,,,",
		"2024-03-03 10:00:00,completed,OUT,CAD,50.00,CAD,50.00,,,",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	// Only the COMPLETED row survives; the gate is case-insensitive.
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), records[0].Date)
}

func TestTransferSignFollowsDirectionOnly(t *testing.T) {
	// The magnitude is made positive before the direction sign is applied,
	// so a signed source amount on an IN row still comes out positive.
	input := strings.Join([]string{
		transferHeader,
		"2024-03-01 10:00:00,COMPLETED,IN,CAD,-75.00,CAD,-75.00,,,",
		"2024-03-02 10:00:00,COMPLETED,OUT,CAD,75.00,CAD,75.00,,,",
		"2024-03-03 10:00:00,COMPLETED,NEUTRAL,CAD,75.00,CAD,75.00,,,",
	}, "\n")

	records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "75.00", records[0].Amount.StringFixed(2))
	assert.Equal(t, "-75.00", records[1].Amount.StringFixed(2))
	// Any direction other than OUT is an inflow.
	assert.Equal(t, "75.00", records[2].Amount.StringFixed(2))
}

func TestTransferDescriptionSynthesis(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"both names", "2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,Alice,Bob,", "Alice -> Bob"},
		{"source only", "2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,Alice,,", "Alice"},
		{"target only", "2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,,Bob,", "Bob"},
		{"with reference", "2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,Alice,Bob,invoice 42", "Alice -> Bob (invoice 42)"},
		{"all empty falls back", "2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,,,", "Transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := transferHeader + "\n" + tt.row
			records, err := testNormalizer(t).NormalizeTransactions([]byte(input))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Description)
		})
	}
}

func TestRowCountInvariant(t *testing.T) {
	ledger := "date,description,amount\n2024-01-05,A,1\n,bad,\n2024-01-06,B,2\n"
	records, err := testNormalizer(t).NormalizeTransactions([]byte(ledger))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(records), 3)

	transfer := transferHeader + "\n" +
		"2024-03-01 10:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,,,\n" +
		"2024-03-02 10:00:00,PENDING,OUT,CAD,5.00,CAD,5.00,,,\n"
	records, err = testNormalizer(t).NormalizeTransactions([]byte(transfer))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(records), 2)
}

func TestReparseIsIdempotent(t *testing.T) {
	input := []byte(strings.Join([]string{
		transferHeader,
		"2024-03-01 10:00:00,COMPLETED,OUT,USD,100.00,EUR,85.00,Me,Landlord,rent",
		"2024-03-02 10:00:00,COMPLETED,IN,USD,10.00,CAD,13.72,Work,Me,",
	}, "\n"))

	n := testNormalizer(t)
	first, err := n.NormalizeTransactions(input)
	require.NoError(t, err)
	second, err := n.NormalizeTransactions(input)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Date.Equal(second[i].Date))
		assert.Equal(t, first[i].Description, second[i].Description)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
}

func TestConfigurableRate(t *testing.T) {
	n := New("CAD", Rates{ForeignCurrency: "USD", Rate: decimal.RequireFromString("2")})
	input := transferHeader + "\n" +
		"2024-03-01 10:00:00,COMPLETED,IN,USD,12.50,EUR,11.00,,,"

	records, err := n.NormalizeTransactions([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "25.00", records[0].Amount.StringFixed(2))
}

func TestResolveHeader(t *testing.T) {
	headers := []string{"Date", "DESCRIPTION", "Amount", "Running Balance"}

	got, ok := resolveHeader(ledgerBalanceAliases, headers)
	require.True(t, ok)
	assert.Equal(t, "Running Balance", got)

	_, ok = resolveHeader([]string{"reference"}, headers)
	assert.False(t, ok)
}

func TestStructuralErrorsAreTyped(t *testing.T) {
	_, err := testNormalizer(t).NormalizeTransactions([]byte("x,y\n1,2\n"))
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*UnrecognizedFormatError)))
	assert.False(t, errors.As(err, new(*MissingColumnError)))
}
