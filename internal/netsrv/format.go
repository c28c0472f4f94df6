package netsrv

import "strings"

// Render turns a Result into the formatted text table the protocol
// sends back for every statement — a single-row "Error" table for a
// failure, a one-line status for a DML/DDL statement, or a column-
// aligned table for a row set.
func (r Result) Render() string {
	if r.ErrMessage != "" {
		return renderTable([]string{"Error"}, [][]string{{r.ErrMessage}})
	}
	if r.Message != "" {
		return r.Message + "\n"
	}
	return renderTable(r.Columns, r.Rows)
}

func renderTable(cols []string, rows [][]string) string {
	if len(cols) == 0 {
		return "(0 rows)\n"
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow(&sb, cols, widths)
	writeSeparator(&sb, widths)
	for _, row := range rows {
		writeRow(&sb, row, widths)
	}
	sb.WriteString("(")
	sb.WriteString(pluralRows(len(rows)))
	sb.WriteString(")\n")
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	sb.WriteString("|")
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", w-len(cell)))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func writeSeparator(sb *strings.Builder, widths []int) {
	sb.WriteString("+")
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteString("+")
	}
	sb.WriteString("\n")
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return itoa(n) + " rows"
}
