package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want table, json or yaml)", format)
	}
}

// render writes v as JSON or YAML, or calls tableFn for table output.
func render(w io.Writer, format string, v any, tableFn func() table.Writer) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		t := tableFn()
		t.SetStyle(table.StyleRounded)
		_, err := fmt.Fprintln(w, t.Render())
		return err
	}
}

func newTable(header table.Row, numericFrom int) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(header)
	configs := make([]table.ColumnConfig, 0, len(header))
	for i := numericFrom; i < len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	return t
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
