package importer

import (
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDetails(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	verr, ok := AsValidationError(err)
	require.True(t, ok, "expected ValidationError, got %T: %v", err, err)
	return verr.Details
}

func TestParseBatch_Valid(t *testing.T) {
	payload := Header + "\n" +
		"TX001,2024-01-15T10:30:00Z,100.50,EUR,Payment for services\n" +
		"TX002,2024-01-16T14:20:00Z,-50.25,usd,Refund\n"

	got, err := ParseBatch(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "TX001", got[0].Reference)
	assert.Equal(t, "TX002", got[1].Reference)
	assert.Equal(t, "USD", got[1].Currency)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("-50.25")))
}

func TestParseBatch_Empty(t *testing.T) {
	for _, payload := range []string{"", "\n\n", "  \n\t\n"} {
		_, err := ParseBatch(strings.NewReader(payload))
		assert.Equal(t, []string{"CSV payload is empty"}, requireDetails(t, err), "payload %q", payload)
	}
}

func TestParseBatch_WrongHeaders(t *testing.T) {
	payload := "wrong,headers,here\nTX001,2024-01-15T10:30:00Z,100.50\n"
	_, err := ParseBatch(strings.NewReader(payload))
	assert.Equal(t, []string{
		"Missing required CSV headers: reference, timestamp, amount, currency, description",
	}, requireDetails(t, err))
}

func TestParseBatch_PartialHeaders(t *testing.T) {
	payload := "reference,timestamp,amount,currency\nTX001,2024-01-15T10:30:00Z,100.50,EUR\n"
	_, err := ParseBatch(strings.NewReader(payload))
	assert.Equal(t, []string{"Missing required CSV headers: description"}, requireDetails(t, err))
}

func TestParseBatch_HeaderOnly(t *testing.T) {
	_, err := ParseBatch(strings.NewReader(Header + "\n"))
	assert.Equal(t, []string{"No valid transaction rows found in CSV"}, requireDetails(t, err))
}

func TestParseBatch_AggregatesErrorsAcrossRows(t *testing.T) {
	payload := Header + "\n" +
		"TX001,2024-01-15T10:30:00Z,abc,EUR,first\n" +
		"TX002,2024-01-16T14:20:00Z,100.00,EUR,second\n" +
		"TX003,2024-01-17T09:15:00Z,xyz,EUR,third\n"

	got, err := ParseBatch(strings.NewReader(payload))
	assert.Nil(t, got)
	assert.Equal(t, []string{
		"Line 2: Invalid amount 'abc'",
		"Line 4: Invalid amount 'xyz'",
	}, requireDetails(t, err))
}

func TestParseBatch_LineNumbersKeepRawPosition(t *testing.T) {
	payload := Header + "\n" +
		"\n" +
		"   \n" +
		",2024-01-15T10:30:00Z,100.50,EUR,Missing reference\n"

	_, err := ParseBatch(strings.NewReader(payload))
	assert.Equal(t, []string{"Line 4: Missing reference"}, requireDetails(t, err))
}

func TestParseBatch_ShortRow(t *testing.T) {
	payload := Header + "\nTX001,2024-01-15T10:30:00Z,100.50\n"
	_, err := ParseBatch(strings.NewReader(payload))
	assert.Equal(t, []string{"Line 2: Expected at least 4 columns but found 3"}, requireDetails(t, err))
}

func TestParseBatch_ReorderedColumns(t *testing.T) {
	payload := "Currency, Amount ,description,REFERENCE,timestamp\n" +
		"gbp,12.5,Lunch,TX9,2024-02-01T12:00:00Z\n"

	got, err := ParseBatch(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TX9", got[0].Reference)
	assert.Equal(t, "GBP", got[0].Currency)
	assert.Equal(t, "Lunch", got[0].Description)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("12.5")))
}

func TestParseBatch_QuotedDescription(t *testing.T) {
	payload := Header + "\nTX001,2024-01-15T10:30:00Z,1,EUR,\"ACME, \"\"Invoice 1042\"\"\"\n"
	got, err := ParseBatch(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `ACME, "Invoice 1042"`, got[0].Description)
}

func TestParseBatch_ByteOrderMark(t *testing.T) {
	payload := "\ufeff" + Header + "\r\nTX001,2024-01-15T10:30:00Z,1,EUR,\r\n"
	got, err := ParseBatch(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TX001", got[0].Reference)
	assert.False(t, got[0].HasDescription())
}

func TestParseBatch_DoesNotCheckDuplicates(t *testing.T) {
	payload := Header + "\n" +
		"TX001,2024-01-15T10:30:00Z,1,EUR,\n" +
		"TX001,2024-01-16T10:30:00Z,2,EUR,\n"
	got, err := ParseBatch(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseBatch_Testdata(t *testing.T) {
	f, err := os.Open("../../testdata/transactions.csv")
	require.NoError(t, err)
	defer f.Close()

	got, err := ParseBatch(f)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, "Consulting, invoice 1042", got[3].Description)
	assert.Equal(t, 7, got[3].Timestamp.Hour(), "offset +01:00 normalized to UTC")
	assert.Equal(t, "USD", got[4].Currency)
	assert.False(t, got[4].HasDescription())
}
