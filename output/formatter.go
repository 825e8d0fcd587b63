package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

// OutputManager renders batch summaries and catalog listings in the
// requested format.
type OutputManager struct {
	format string
	output string
}

func NewOutputManager(format string) *OutputManager {
	return &OutputManager{format: format}
}

func (o *OutputManager) SetOutputFile(file string) {
	o.output = file
}

// Summary renders a batch summary.
func (o *OutputManager) Summary(summary models.BatchSummary) error {
	switch o.format {
	case "json":
		return o.writeJSON(summary)
	case "yaml":
		return o.writeYAML(summary)
	default:
		return o.summaryTable(summary)
	}
}

func (o *OutputManager) summaryTable(summary models.BatchSummary) error {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("Scan summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Total:     %d\n", summary.Total)
	fmt.Fprintf(&b, "  Succeeded: %s\n", okStyle.Render(fmt.Sprintf("%d", summary.Succeeded)))
	fmt.Fprintf(&b, "  Unchanged: %d\n", summary.Unchanged)
	if summary.Missing > 0 {
		fmt.Fprintf(&b, "  Missing:   %s\n", warnStyle.Render(fmt.Sprintf("%d", summary.Missing)))
	}
	if summary.Errored > 0 {
		fmt.Fprintf(&b, "  Errored:   %s\n", errStyle.Render(fmt.Sprintf("%d", summary.Errored)))
	}
	if summary.Skipped > 0 {
		fmt.Fprintf(&b, "  Skipped:   %d\n", summary.Skipped)
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  Took %s", summary.Duration.Round(time.Millisecond))))
	b.WriteString("\n")
	return o.write(b.String())
}

// Catalog renders catalog index entries as a table, json or yaml.
func (o *OutputManager) Catalog(entries []models.CatalogEntry) error {
	switch o.format {
	case "json":
		return o.writeJSON(entries)
	case "yaml":
		return o.writeYAML(entries)
	}

	if len(entries) == 0 {
		return o.write("No cataloged models\n")
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tVERSION\tCREATOR\tDOWNLOADS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", e.BaseName, e.Type, e.VersionName, e.Creator, e.DownloadCount)
	}
	w.Flush()
	return o.write(b.String())
}

// Missing renders the active missing-from-upstream entries.
func (o *OutputManager) Missing(entries []models.MissingEntry) error {
	switch o.format {
	case "json":
		return o.writeJSON(entries)
	case "yaml":
		return o.writeYAML(entries)
	}

	if len(entries) == 0 {
		return o.write("No models are missing upstream\n")
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Line())
		b.WriteString("\n")
	}
	return o.write(b.String())
}

// History renders recent scan records, newest first.
func (o *OutputManager) History(records []store.ScanRecord) error {
	switch o.format {
	case "json":
		return o.writeJSON(records)
	case "yaml":
		return o.writeYAML(records)
	}

	if len(records) == 0 {
		return o.write("No recorded scans\n")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDIRECTORY\tTOTAL\tOK\tUNCHANGED\tMISSING\tERRORED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Directory,
			r.Total, r.Succeeded, r.Unchanged, r.Missing, r.Errored)
	}
	w.Flush()
	return o.write(b.String())
}

func (o *OutputManager) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	return o.write(string(data) + "\n")
}

func (o *OutputManager) writeYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	return o.write(string(data))
}

func (o *OutputManager) write(s string) error {
	if o.output != "" {
		return os.WriteFile(o.output, []byte(s), 0644)
	}
	_, err := fmt.Print(s)
	return err
}
