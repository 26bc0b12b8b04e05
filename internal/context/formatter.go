package context

import (
	"encoding/csv"
	"strings"

	"github.com/stupiduntilnot/csast/internal/knowledge"
)

// Format renders every table as a header line followed by its CSV body,
// header row included. It never truncates and is deterministic.
func Format(b *knowledge.Base) string {
	var sb strings.Builder
	for _, t := range b.Tables {
		sb.WriteString("\n--- ")
		sb.WriteString(t.Name)
		sb.WriteString(" knowledge base ---\n")
		writeCSV(&sb, t)
	}
	return sb.String()
}

func writeCSV(sb *strings.Builder, t knowledge.Table) {
	w := csv.NewWriter(sb)
	// Write only fails on the underlying writer; strings.Builder never does.
	_ = w.Write(t.Header)
	for _, row := range t.Rows {
		_ = w.Write(row)
	}
	w.Flush()
}
