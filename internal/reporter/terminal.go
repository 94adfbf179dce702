package reporter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// TerminalReporter outputs the scan result in a human-readable terminal format
type TerminalReporter struct {
	// Plain disables color escape codes, for reports written to files
	Plain bool
}

// Report generates terminal output for the given scan result
func (r *TerminalReporter) Report(result *models.ScanResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Scanned %s packages from %s against %s affected packages (concurrency %d)\n",
		humanize.Comma(int64(result.TotalPackages)),
		result.LockFile,
		humanize.Comma(int64(result.FeedSize)),
		result.Concurrency))
	buf.WriteString(fmt.Sprintf("Versions published after %s are reported as possibly affected\n\n", result.AttackInstantString()))

	if len(result.Confirmed) > 0 {
		buf.WriteString(r.paint(color.Red, fmt.Sprintf("CONFIRMED AFFECTED PACKAGES (%d)\n", len(result.Confirmed))))
		buf.WriteString("These packages are on the list of packages compromised by Shai-Hulud v2.\n\n")

		table := newTable(&buf, "Package", "Installed", "Listed")
		for _, p := range result.Confirmed.Sorted() {
			listed := "-"
			if hits := result.Matches[p.Name]; len(hits) > 0 {
				listed = strings.Join(hits, ", ")
			}
			table.Append([]string{p.Name, strings.Join(p.Versions, ", "), listed})
		}
		table.Render()
		buf.WriteString("\n")
	}

	if len(result.Possible) > 0 {
		buf.WriteString(r.paint(color.Yellow, fmt.Sprintf("POSSIBLY AFFECTED PACKAGES (%d)\n", len(result.Possible))))
		buf.WriteString("An installed version was published after the attack started. Review these manually.\n\n")

		table := newTable(&buf, "Package", "Installed")
		for _, p := range result.Possible.Sorted() {
			table.Append([]string{p.Name, strings.Join(p.Versions, ", ")})
		}
		table.Render()
		buf.WriteString("\n")
	}

	if skipped := result.Skipped(); len(skipped) > 0 {
		buf.WriteString(r.paint(color.Cyan, fmt.Sprintf("SKIPPED PACKAGES (%d)\n", len(skipped))))
		buf.WriteString("Registry metadata could not be retrieved; the publish date check did not run.\n\n")

		table := newTable(&buf, "Package", "Installed")
		for _, p := range skipped {
			table.Append([]string{p.Name, strings.Join(p.Versions, ", ")})
		}
		table.Render()
		buf.WriteString("\n")
	}

	if !result.HasFindings() {
		buf.WriteString(r.paint(color.Green, "No affected packages found.\n"))
	}

	return buf.Bytes(), nil
}

func (r *TerminalReporter) paint(c color.Color, text string) string {
	if r.Plain {
		return text
	}
	return c.Sprint(text)
}

func newTable(buf *bytes.Buffer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}
