package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ashureev/datagym/internal/dataset"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats accepted by --output.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

var formats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

func renderDataset(w io.Writer, ds *dataset.Dataset, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, ds)
	case FormatTable, FormatCSV, FormatMarkdown:
	default:
		return fmt.Errorf("unknown output format %q (want one of %v)", format, formats)
	}

	if format == FormatTable && ds.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c.Name
	}
	t.AppendHeader(header)
	for _, row := range ds.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = formatValue(v)
		}
		t.AppendRow(r)
	}

	switch format {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d rows)\n", ds.Len())
	}
	return nil
}

// renderJSON writes one object per row keyed by column name.
func renderJSON(w io.Writer, ds *dataset.Dataset) error {
	results := make([]map[string]any, 0, ds.Len())
	for _, row := range ds.Rows {
		obj := make(map[string]any, len(row))
		for i, c := range ds.Columns {
			obj[c.Name] = row[i]
		}
		results = append(results, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
