package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/plugins"
)

const maxColWidth = 70

var (
	loadedColor   = color.New(color.FgGreen).SprintFunc()
	degradedColor = color.New(color.FgYellow).SprintFunc()
	failedColor   = color.New(color.FgRed).SprintFunc()
	headerColor   = color.New(color.Bold).SprintFunc()
	updateColor   = color.New(color.FgCyan).SprintFunc()
)

func statusLabel(entry host.ReportEntry) string {
	switch {
	case entry.Degraded:
		return degradedColor("degraded")
	case entry.Status == string(plugins.StatusFailed):
		return failedColor("failed")
	case entry.Status == string(plugins.StatusLoaded):
		return loadedColor("loaded")
	default:
		return entry.Status
	}
}

// renderReport prints the load report as a table. Developer details are
// shown only when details is set.
func renderReport(w io.Writer, report *host.Report, details bool) {
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true
	table.AddRow(headerColor("MOD"), headerColor("VERSION"), headerColor("STATUS"), headerColor("MESSAGE"))

	for _, entry := range report.Entries {
		message := entry.ErrorPhrase
		if details && entry.ErrorDetail != "" {
			message = strings.TrimSpace(message + " (" + entry.ErrorDetail + ")")
		}
		if len(entry.Warnings) > 0 {
			warnings := "warnings: " + strings.Join(entry.Warnings, ", ")
			if message == "" {
				message = warnings
			} else {
				message += "; " + warnings
			}
		}
		name := entry.DisplayName
		if entry.ContentPack {
			name += " [content]"
		}
		table.AddRow(name, entry.Version, statusLabel(entry), message)
	}
	fmt.Fprintln(w, table)

	summary := report.Summarize()
	fmt.Fprintf(w, "\n%d loaded, %d failed, %d degraded, %d with warnings\n",
		summary.Loaded, summary.Failed, summary.Degraded, summary.Warnings)

	var updates []host.ReportEntry
	for _, entry := range report.Entries {
		if entry.Update != nil {
			updates = append(updates, entry)
		}
	}
	if len(updates) > 0 {
		fmt.Fprintln(w, "\nUpdates available:")
		for _, entry := range updates {
			fmt.Fprintf(w, "   %s %s: %s\n", entry.DisplayName, updateColor(entry.Update.Version), entry.Update.URL)
		}
	}
}

// renderOrder prints the resolved load order.
func renderOrder(w io.Writer, report *host.Report) {
	if len(report.Order) == 0 {
		fmt.Fprintln(w, "No mods to load.")
		return
	}
	fmt.Fprintln(w, "Load order:")
	for i, id := range report.Order {
		fmt.Fprintf(w, "%4d. %s\n", i+1, id)
	}
}
