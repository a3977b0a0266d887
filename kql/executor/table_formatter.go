package executor

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/secsim/go-kql/kql"
)

// TableFormatter renders row-sets as markdown tables.
type TableFormatter struct {
	// MaxWidth is the maximum width for a column value.
	MaxWidth int
	// TruncateString is appended when a value is truncated.
	TruncateString string
}

// NewTableFormatter creates a formatter with default settings.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatRowSet formats a row-set as a markdown table with a row-count
// footer.
func (tf *TableFormatter) FormatRowSet(rs *RowSet) string {
	if rs == nil || len(rs.Schema) == 0 {
		return "_Empty result_"
	}
	if len(rs.Rows) == 0 {
		return fmt.Sprintf("_Columns: %s_\n\n_No rows_", strings.Join(rs.Schema.Names(), ", "))
	}

	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(rs.Schema))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header(rs.Schema.Names())

	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for j, val := range row {
			cells[j] = tf.formatValue(val)
		}
		table.Append(cells)
	}

	table.Render()
	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rs.Rows)))
	return tableString.String()
}

func (tf *TableFormatter) formatValue(v kql.Value) string {
	if v == nil {
		return ""
	}
	s := kql.FormatValue(v)
	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		return s[:tf.MaxWidth-len(tf.TruncateString)] + tf.TruncateString
	}
	return s
}
