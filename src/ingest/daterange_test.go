package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeOfLedger(t *testing.T) {
	input := strings.Join([]string{
		"date,description,amount",
		"2024-01-15,Mid,1.00",
		"2024-01-02,First,2.00",
		"bogus,Skipped,3.00",
		"2024-01-30,Last,4.00",
	}, "\n")

	r := testNormalizer(t).DateRangeOf([]byte(input))
	require.NotNil(t, r)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), r.End)
}

func TestDateRangeOfTransfer(t *testing.T) {
	input := strings.Join([]string{
		transferHeader,
		"2024-03-10 08:00:00,COMPLETED,OUT,CAD,5.00,CAD,5.00,,,",
		"2024-03-01 09:30:00,PENDING,OUT,CAD,5.00,CAD,5.00,,,",
	}, "\n")

	// The range covers every parseable date, including rows the normalizer
	// would later skip.
	r := testNormalizer(t).DateRangeOf([]byte(input))
	require.NotNil(t, r)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), r.End)
}

func TestDateRangeOfUndetectable(t *testing.T) {
	assert.Nil(t, testNormalizer(t).DateRangeOf([]byte("foo,bar\n1,2\n")))
	assert.Nil(t, testNormalizer(t).DateRangeOf([]byte("")))
	assert.Nil(t, testNormalizer(t).DateRangeOf([]byte("date,description,amount\nnope,x,1\n")))
}
