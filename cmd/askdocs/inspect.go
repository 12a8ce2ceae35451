package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dshills/askdocs/internal/chunker"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/pkg/types"
)

var (
	inspectSource string
	inspectOut    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how the documents are split into sections",
	Long: `Chunk the documents the way the indexer does and print every section,
the section count per document and whether the stored fingerprint matches.
Nothing is embedded and no backend is contacted.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectSource, "source", "s", "", "only show sections of this document")
	inspectCmd.Flags().StringVarP(&inspectOut, "out", "o", "", "also write the report to this file")
	rootCmd.AddCommand(inspectCmd)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func runInspect(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	corpus, err := chunker.New().LoadDir(a.Config.DocsDir)
	if err != nil {
		return err
	}
	stored, ok, err := a.Fingerprint.Load(cmd.Context())
	if err != nil {
		return err
	}

	report := inspectReport(corpus, inspectSource, stored, ok)
	fmt.Fprintln(cmd.OutOrStdout(), report)

	if inspectOut != "" {
		if err := os.MkdirAll(filepath.Dir(inspectOut), 0o755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
		if err := os.WriteFile(inspectOut, []byte(report+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		cmd.Printf("Report written to %s\n", inspectOut)
	}
	return nil
}

// inspectReport renders the section table, the per-document counts and the fingerprint state
func inspectReport(corpus *chunker.Corpus, source string, stored fingerprint.Fingerprint, hasStored bool) string {
	var chunks []types.Chunk
	for _, c := range corpus.Chunks {
		if source == "" || c.SourceID == source {
			chunks = append(chunks, c)
		}
	}

	var b strings.Builder
	if len(chunks) == 0 {
		if source != "" {
			fmt.Fprintf(&b, "No sections found for %s\n", source)
		} else {
			b.WriteString("No sections found\n")
		}
	} else {
		sections := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("#", "SOURCE", "INDEX", "HEADER", "BYTES").
			StyleFunc(tableStyle)
		for i, c := range chunks {
			sections.Row(strconv.Itoa(i+1), c.SourceID, strconv.Itoa(c.Index), c.Header, strconv.Itoa(len(c.Text)))
		}
		b.WriteString(sections.Render())
		b.WriteString("\n")
	}

	counts := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DOCUMENT", "SECTIONS", "BYTES").
		StyleFunc(tableStyle)
	for _, d := range corpus.Documents {
		if source != "" && d.SourceID != source {
			continue
		}
		sections := strconv.Itoa(d.Chunks)
		if d.Skipped {
			sections += " (skipped)"
		}
		counts.Row(d.SourceID, sections, strconv.Itoa(d.Bytes))
	}
	b.WriteString(counts.Render())
	b.WriteString("\n")

	current := fingerprint.Compute(corpus.Chunks)
	fmt.Fprintf(&b, "Total sections: %d\n", len(corpus.Chunks))
	fmt.Fprintf(&b, "Current fingerprint: %s\n", current)
	switch {
	case !hasStored:
		b.WriteString("Stored fingerprint: none (index never built)")
	case stored == current:
		fmt.Fprintf(&b, "Stored fingerprint: %s (up to date)", stored)
	default:
		fmt.Fprintf(&b, "Stored fingerprint: %s (stale, run askdocs index)", stored)
	}
	return b.String()
}

func tableStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}
