package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable renders headers and rows with rounded borders. Columns
// without an entry in aligns default to left alignment.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	writer := table.NewWriter()
	writer.SetStyle(table.StyleRounded)

	headerRow := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, header := range headers {
		headerRow[i] = header
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		}
	}
	writer.AppendHeader(headerRow)
	writer.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		writer.AppendRow(cells)
	}

	return writer.Render()
}
