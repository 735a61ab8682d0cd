package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/langdag/dagbuilder/internal/api"
)

// printJSON marshals v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML marshals v as YAML. Values go through JSON first so YAML keys
// match the JSON envelope, including custom marshalers.
func printYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

// printFormatted writes v as YAML when requested and JSON otherwise.
func (a *app) printFormatted(v any) error {
	if a.output == "yaml" {
		return printYAML(a.out, v)
	}
	return printJSON(a.out, v)
}

// emit writes a success envelope, or the human rendering in text mode.
func (a *app) emit(o *outcome) error {
	if a.output == "text" && o.text != nil {
		return o.text(a.out)
	}
	return a.printFormatted(api.NewSuccess(o.typ, o.payload))
}

// fail writes err as a failure envelope. In text mode it goes to stderr.
func (a *app) fail(err error) {
	f := api.FailureFrom(err)

	if a.output == "text" {
		fmt.Fprintf(a.errOut, "Error: %s: %s\n", f.Code, f.Message)
		if f.Hint != "" {
			fmt.Fprintf(a.errOut, "Hint: %s\n", f.Hint)
		}
		return
	}
	if perr := a.printFormatted(f); perr != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
	}
}

// newTable returns a borderless table in the style used across the CLI.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	return table
}

// truncate shortens s to at most n terminal columns.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "...")
}
