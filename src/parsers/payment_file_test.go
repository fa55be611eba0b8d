package parsers_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/parsers"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"payments.csv", "", parsers.FormatCSV},
		{"PAYMENTS.CSV", "application/octet-stream", parsers.FormatCSV},
		{"blob", "text/csv", parsers.FormatCSV},
		{"payments.json", "", parsers.FormatJSON},
		{"upload", "application/json; charset=utf-8", parsers.FormatJSON},
		{"payment.txt", "text/plain", parsers.FormatAuto},
		{"", "", parsers.FormatAuto},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"|"+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, parsers.DetectFormat(tt.filename, tt.contentType))
		})
	}
}

func TestJSONParser_Array(t *testing.T) {
	input := `[
		{"user": "Jane", "amount_usd": 1200.5, "originator": null, "meta": {"b": 1, "a": [1, 2]}},
		{"amount_usd": "900", "user": "John", "flag": true},
		42
	]`
	table, err := parsers.NewJSONParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Records, 3)

	first := table.Records[0]
	assert.Equal(t, []string{"user", "amount_usd", "originator", "meta"}, first.Keys())
	assert.Equal(t, "1200.5", cell(t, table, 0, "amount_usd"))
	assert.Equal(t, "", cell(t, table, 0, "originator"))
	assert.Equal(t, `{"b":1,"a":[1,2]}`, cell(t, table, 0, "meta"))

	assert.Equal(t, []string{"amount_usd", "user", "flag"}, table.Records[1].Keys())
	assert.Equal(t, "true", cell(t, table, 1, "flag"))

	assert.Equal(t, 0, table.Records[2].Len())
}

func TestJSONParser_SingleObject(t *testing.T) {
	table, err := parsers.NewJSONParser().Parse(strings.NewReader(`{"user":"Jane","amount_usd":"$1,000"}`))
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "$1,000", cell(t, table, 0, "amount_usd"))
}

func TestJSONParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalar document", `"just a string"`},
		{"truncated object", `{"user": "Jane"`},
		{"truncated array", `[{"user": "Jane"}`},
		{"garbage", `{user: Jane}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsers.NewJSONParser().Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, parsers.ErrParsingFailed))
		})
	}
}

func TestKeyValueParser(t *testing.T) {
	input := "User: Jane Doe\nAmount: $2,500\n\nNotes: referral: partner desk\nfree text line\n"
	table, err := parsers.NewKeyValueParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	assert.Equal(t, []string{"User", "Amount", "Notes", "field_4"}, table.Records[0].Keys())
	assert.Equal(t, "referral: partner desk", cell(t, table, 0, "Notes"))
	assert.Equal(t, "free text line", cell(t, table, 0, "field_4"))
}

func TestKeyValueParser_Empty(t *testing.T) {
	table, err := parsers.NewKeyValueParser().Parse(strings.NewReader("\n  \n"))
	require.NoError(t, err)
	assert.Empty(t, table.Records)
}

func TestParsePaymentFile_Sniffing(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    string
		wantFormat string
		wantRows   int
		wantUser   string
	}{
		{
			name:       "csv by extension",
			filename:   "p.csv",
			content:    "user,amount_usd\nJane,10\n",
			wantFormat: parsers.FormatCSV,
			wantRows:   1,
			wantUser:   "Jane",
		},
		{
			name:       "json sniffed from text file",
			filename:   "p.txt",
			content:    "  [{\"user\":\"Jane\",\"amount_usd\":10}]",
			wantFormat: parsers.FormatAuto,
			wantRows:   1,
			wantUser:   "Jane",
		},
		{
			name:       "key value sniffed",
			filename:   "p.txt",
			content:    "user: Jane\namount_usd: 10\n",
			wantFormat: parsers.FormatAuto,
			wantRows:   1,
			wantUser:   "Jane",
		},
		{
			name:       "csv sniffed",
			filename:   "p.txt",
			content:    "user,amount_usd\nJane,10\nJohn,20\n",
			wantFormat: parsers.FormatAuto,
			wantRows:   2,
			wantUser:   "Jane",
		},
		{
			name:       "comma before colon stays csv",
			filename:   "p.txt",
			content:    "user,time\nJane,10:30\n",
			wantFormat: parsers.FormatAuto,
			wantRows:   1,
			wantUser:   "Jane",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, format, err := parsers.ParsePaymentFile(tt.filename, "", []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, format)
			require.Len(t, table.Records, tt.wantRows)
			assert.Equal(t, tt.wantUser, cell(t, table, 0, "user"))
		})
	}
}
