package parsers

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// WriteCSV renders a header and rows as CSV text. Fields containing commas,
// quotes or line breaks are quoted with inner quotes doubled.
func WriteCSV(header []string, rows [][]string) (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return sb.String(), nil
}

// TableToCSV serializes a parsed table back to CSV. Cells are looked up by
// header position, so repeated header names repeat the row's value for that key.
func TableToCSV(table *Table) (string, error) {
	rows := make([][]string, 0, len(table.Records))
	for _, rec := range table.Records {
		row := make([]string, len(table.Headers))
		for i, h := range table.Headers {
			row[i], _ = rec.Get(columnKey(h, i))
		}
		rows = append(rows, row)
	}
	return WriteCSV(table.Headers, rows)
}
