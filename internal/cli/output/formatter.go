// Package output renders CLI results as colored text, a table, or raw
// JSON.
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/mcpctl/orchestrator/internal/cli/errors"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatRaw  Format = "raw"
)

type Formatter struct {
	format Format
	color  bool
}

func New(format Format, useColor bool) *Formatter {
	return &Formatter{format: format, color: useColor}
}

func (f *Formatter) FormatError(err errors.ClassifiedError) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(err, "", "  ")
		return string(data)
	}

	if f.color {
		msg := color.RedString("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\n" + color.YellowString("Hint: %s", err.Hint)
		}
		return msg
	}
	msg := fmt.Sprintf("Error [%s]: %s", err.Kind, err.Message)
	if err.Hint != "" {
		msg += "\nHint: " + err.Hint
	}
	return msg
}

func (f *Formatter) FormatValue(v any) string {
	if f.format == FormatJSON || f.format == FormatRaw {
		data, _ := json.MarshalIndent(v, "", "  ")
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// ServerRow is the CLI's flat projection of a runtime server, decoupled
// from the daemon's catalog.RuntimeServer so this package stays free of
// that import.
type ServerRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	ToolCount int    `json:"tool_count"`
}

func (f *Formatter) FormatServers(rows []ServerRow) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(rows, "", "  ")
		return string(data)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Name", "Status", "Tools"}),
	)
	for _, r := range rows {
		table.Append([]string{r.ID, r.Name, r.Status, fmt.Sprintf("%d", r.ToolCount)})
	}
	table.Render()
	return ""
}
