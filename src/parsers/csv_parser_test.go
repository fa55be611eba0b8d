package parsers_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/parsers"
)

func cell(t *testing.T, table *parsers.Table, row int, key string) string {
	t.Helper()
	require.Less(t, row, len(table.Records))
	v, ok := table.Records[row].Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}

func TestCSVParser_Parse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    int
		check       func(t *testing.T, table *parsers.Table)
	}{
		{
			name:        "simple rows",
			input:       "user,amount_usd\nJane Doe,1000\nJohn Roe,250.50\n",
			wantHeaders: []string{"user", "amount_usd"},
			wantRows:    2,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "Jane Doe", cell(t, table, 0, "user"))
				assert.Equal(t, "250.50", cell(t, table, 1, "amount_usd"))
			},
		},
		{
			name:        "quoted comma and doubled quote",
			input:       "user,notes\n\"Doe, Jane\",\"said \"\"hi\"\"\"\n",
			wantHeaders: []string{"user", "notes"},
			wantRows:    1,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "Doe, Jane", cell(t, table, 0, "user"))
				assert.Equal(t, `said "hi"`, cell(t, table, 0, "notes"))
			},
		},
		{
			name:        "embedded newline in quoted field",
			input:       "user,notes\nJane,\"line one\nline two\"\n",
			wantHeaders: []string{"user", "notes"},
			wantRows:    1,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "line one\nline two", cell(t, table, 0, "notes"))
			},
		},
		{
			name:        "CRLF line endings",
			input:       "user,amount_usd\r\nJane,10\r\nJohn,20\r\n",
			wantHeaders: []string{"user", "amount_usd"},
			wantRows:    2,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "20", cell(t, table, 1, "amount_usd"))
			},
		},
		{
			name:        "bare CR line endings",
			input:       "amount,user\r100,Jane\r200,Bob\r",
			wantHeaders: []string{"amount", "user"},
			wantRows:    2,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "Jane", cell(t, table, 0, "user"))
				assert.Equal(t, "200", cell(t, table, 1, "amount"))
			},
		},
		{
			name:        "blank header gets positional key",
			input:       "user,,amount_usd\nJane,x,5\n",
			wantHeaders: []string{"user", "", "amount_usd"},
			wantRows:    1,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "x", cell(t, table, 0, "col_2"))
			},
		},
		{
			name:        "short record padded and blank records dropped",
			input:       "user,amount_usd,notes\nJane,5\n,,\n\nJohn,6,ok\n",
			wantHeaders: []string{"user", "amount_usd", "notes"},
			wantRows:    2,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "", cell(t, table, 0, "notes"))
				assert.Equal(t, "John", cell(t, table, 1, "user"))
			},
		},
		{
			name:        "byte order mark and padded headers",
			input:       "\ufeff user , amount_usd\nJane,5\n",
			wantHeaders: []string{"user", "amount_usd"},
			wantRows:    1,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, "Jane", cell(t, table, 0, "user"))
			},
		},
		{
			name:        "values are not coerced",
			input:       "user,amount_usd\nJane,\" $1,200.00 \"\n",
			wantHeaders: []string{"user", "amount_usd"},
			wantRows:    1,
			check: func(t *testing.T, table *parsers.Table) {
				assert.Equal(t, " $1,200.00 ", cell(t, table, 0, "amount_usd"))
			},
		},
		{
			name:        "empty input",
			input:       "",
			wantHeaders: []string{},
			wantRows:    0,
		},
		{
			name:        "header only",
			input:       "user,amount_usd\n",
			wantHeaders: []string{"user", "amount_usd"},
			wantRows:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := parsers.ParseCSVString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeaders, table.Headers)
			assert.Len(t, table.Records, tt.wantRows)
			if tt.check != nil {
				tt.check(t, table)
			}
		})
	}
}

func TestCSVParser_KeepsColumnOrder(t *testing.T) {
	table, err := parsers.ParseCSVString("zeta,alpha,mid\n1,2,3\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, table.Records[0].Keys())
}

func TestCSVParser_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"quoted fields", "user,notes,amount_usd\n\"Doe, Jane\",\"a \"\"quoted\"\" note\",100\nJohn,\"multi\nline\",5\n"},
		{"repeated header", "amount,user,user\n100,Jane,Bob\n"},
		{"blank header", "amount,,user\n100,x,Jane\n"},
		{"short row", "amount,user,notes\n100,Jane\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := parsers.ParseCSVString(tt.input)
			require.NoError(t, err)

			out, err := parsers.TableToCSV(first)
			require.NoError(t, err)

			second, err := parsers.ParseCSVString(out)
			require.NoError(t, err)

			assert.Equal(t, first.Headers, second.Headers)
			require.Len(t, second.Records, len(first.Records))
			for i := range first.Records {
				assert.Equal(t, first.Records[i].Keys(), second.Records[i].Keys())
				for _, k := range first.Records[i].Keys() {
					want, _ := first.Records[i].Get(k)
					got, _ := second.Records[i].Get(k)
					assert.Equal(t, want, got, "column %q", k)
				}
			}
		})
	}
}

func TestTableToCSV_RepeatedHeaderKeepsColumnCount(t *testing.T) {
	table, err := parsers.ParseCSVString("amount,user,user,notes\n100,Jane,Bob,late\n")
	require.NoError(t, err)

	out, err := parsers.TableToCSV(table)
	require.NoError(t, err)

	assert.Equal(t, "amount,user,user,notes\n100,Bob,Bob,late\n", out)
}

func TestWriteCSV_QuotesSpecialFields(t *testing.T) {
	out, err := parsers.WriteCSV([]string{"a", "b"}, [][]string{{"x,y", `say "no"`}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n\"x,y\",\"say \"\"no\"\"\"\n", out)
}

func TestCSVParser_ReaderError(t *testing.T) {
	_, err := parsers.NewCSVParser().Parse(&failingReader{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, parsers.ErrParsingFailed))
}

type failingReader struct{}

func (f *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}
