package holders_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"dog-holders/internal/features/holders"
	"dog-holders/internal/infra/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// decode mirrors how the client decodes bodies: generic values, numbers as json.Number
func decode(t *testing.T, body string) any {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

// pageBody builds a holders response with one entry per balance
func pageBody(prefix string, balances ...int64) string {
	entries := make([]string, 0, len(balances))
	for i, b := range balances {
		entries = append(entries, fmt.Sprintf(`{"address":"%s%d","balance":%d}`, prefix, i, b))
	}
	return `{"code":0,"message":"success","data":{"count":99999,"list":[` + strings.Join(entries, ",") + `]}}`
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	restore := log.SetLogger(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestParseAssignsConsecutiveRanks(t *testing.T) {
	parser := holders.NewParser(holders.DefaultTotalSupply)
	payload := decode(t, pageBody("bc1q", 900, 800, 700, 600, 500))

	rows, next := parser.Parse(payload, 41)

	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, 41+i, row.Rank)
		assert.Equal(t, fmt.Sprintf("bc1q%d", i), row.Address)
	}
	assert.Equal(t, 46, next)
}

func TestParsePercentage(t *testing.T) {
	tests := []struct {
		balance string
		want    string
	}{
		{`5000000000`, "5.00%"},
		{`"2500000000"`, "2.50%"},
		{`0`, "0.00%"},
		{`12345`, "0.00%"},
		{`99999999999`, "100.00%"},
		{`100000000000`, "100.00%"},
		{`1234567890`, "1.23%"},
		{`1e9`, "1.00%"},
		{`15000000`, "0.01%"},
		{`35000000`, "0.03%"},
		{`125000000`, "0.12%"},
		{`1005000000`, "1.00%"},
		{`2345000000`, "2.34%"},
	}
	parser := holders.NewParser(holders.DefaultTotalSupply)

	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			payload := decode(t, `{"data":{"list":[{"address":"a","balance":`+tt.balance+`}]}}`)

			rows, _ := parser.Parse(payload, 1)

			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Percentage)
		})
	}
}

func TestParseCustomTotalSupply(t *testing.T) {
	parser := holders.NewParser(1_000)

	rows, _ := parser.Parse(decode(t, pageBody("x", 250)), 1)

	require.Len(t, rows, 1)
	assert.Equal(t, "25.00%", rows[0].Percentage)
	assert.Equal(t, int64(250), rows[0].Balance)
}

func TestParseIsIdempotent(t *testing.T) {
	parser := holders.NewParser(holders.DefaultTotalSupply)
	payload := decode(t, pageBody("bc1p", 10, 20, 30))

	first, firstNext := parser.Parse(payload, 7)
	second, secondNext := parser.Parse(payload, 7)

	assert.Equal(t, first, second)
	assert.Equal(t, firstNext, secondNext)
}

func TestParseMissingFieldsUseDefaults(t *testing.T) {
	parser := holders.NewParser(holders.DefaultTotalSupply)
	payload := decode(t, `{"data":{"list":[{"balance":5},{"address":"bc1q"},{"address":null,"balance":1}]}}`)

	rows, next := parser.Parse(payload, 1)

	require.Len(t, rows, 3)
	assert.Equal(t, holders.RankedRow{Rank: 1, Address: "", Percentage: "0.00%", Balance: 5}, rows[0])
	assert.Equal(t, holders.RankedRow{Rank: 2, Address: "bc1q", Percentage: "0.00%", Balance: 0}, rows[1])
	assert.Equal(t, "", rows[2].Address)
	assert.Equal(t, 4, next)
}

func TestParseKeepsDuplicates(t *testing.T) {
	parser := holders.NewParser(holders.DefaultTotalSupply)
	payload := decode(t, `{"data":{"list":[{"address":"dup","balance":3},{"address":"dup","balance":3}]}}`)

	rows, next := parser.Parse(payload, 1)

	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].Address, rows[1].Address)
	assert.Equal(t, 3, next)
}

func TestParseNonObjectPayload(t *testing.T) {
	logs := observeLogs(t)
	parser := holders.NewParser(holders.DefaultTotalSupply)

	rows, next := parser.Parse(decode(t, `["not","an","object"]`), 12)

	assert.Empty(t, rows)
	assert.Equal(t, 12, next)

	entries := logs.FilterMessage("Unexpected holders payload type").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[]interface {}", entries[0].ContextMap()["type"])
}

func TestParseMalformedStructure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing data", `{"code":0}`},
		{"data not object", `{"data":[1,2]}`},
		{"missing list", `{"data":{"count":3}}`},
		{"list not array", `{"data":{"list":{"address":"a"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			parser := holders.NewParser(holders.DefaultTotalSupply)

			rows, next := parser.Parse(decode(t, tt.body), 3)

			assert.Empty(t, rows)
			assert.Equal(t, 3, next)
			assert.Equal(t, 1, logs.FilterMessage("Key error during parsing").Len())
		})
	}
}

func TestParseNullListIsEmptyPage(t *testing.T) {
	logs := observeLogs(t)
	parser := holders.NewParser(holders.DefaultTotalSupply)

	rows, next := parser.Parse(decode(t, `{"data":{"list":null}}`), 100)

	assert.Empty(t, rows)
	assert.Equal(t, 100, next)
	assert.Zero(t, logs.FilterMessage("Key error during parsing").Len())
}

func TestParseStopsAtMalformedEntryKeepingPartialRows(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{"entry not object", `"bc1q"`},
		{"null balance", `{"address":"c","balance":null}`},
		{"fractional balance", `{"address":"c","balance":1.5}`},
		{"negative balance", `{"address":"c","balance":-4}`},
		{"text balance", `{"address":"c","balance":"lots"}`},
		{"overflowing balance", `{"address":"c","balance":99999999999999999999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			parser := holders.NewParser(holders.DefaultTotalSupply)
			body := `{"data":{"list":[{"address":"a","balance":2},{"address":"b","balance":1},` + tt.bad + `,{"address":"d","balance":1}]}}`

			rows, next := parser.Parse(decode(t, body), 10)

			require.Len(t, rows, 2)
			assert.Equal(t, 11, rows[1].Rank)
			assert.Equal(t, 12, next)
			assert.Equal(t, 1, logs.FilterMessage("Key error during parsing").Len())
		})
	}
}
