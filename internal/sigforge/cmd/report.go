package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sigforge/internal/sigforge/colorize"
	"sigforge/internal/sigforge/styles"
)

var reportWidth int

var reportCmd = &cobra.Command{
	Use:   "report <result.json>",
	Short: "Render a prior generate/batch result as a readable Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readResultDoc(args[0])
		if err != nil {
			return err
		}

		width := reportWidth
		if width == 0 {
			width = 100
			if w, _, err := term.GetSize(uintptr(0)); err == nil && w > 0 {
				width = w
			}
		}

		markdown := buildReportMarkdown(doc)
		renderer := styles.GetMarkdownRenderer(width)
		rendered, err := renderer.Render(markdown)
		if err != nil {
			return fmt.Errorf("report: render: %w", err)
		}
		fmt.Print(rendered)

		for _, target := range doc.Targets {
			fmt.Printf("%s\n", target.Name)
			for i, sig := range target.Variants {
				fmt.Printf("  %d. %s  (%s, %.0f%% unique, %s)\n",
					i+1, colorize.ColorizePattern(sig.Pattern), sig.Stability, sig.UniquenessScore*100, sig.Strategy)
			}
		}
		return nil
	},
}

func buildReportMarkdown(doc resultDoc) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# sigforge report\n\n")
	fmt.Fprintf(&b, "- instructions parsed: %d\n", doc.Stats.Total)
	fmt.Fprintf(&b, "- labeled: %d\n", doc.Stats.Labeled)
	fmt.Fprintf(&b, "- dropped lines: %d\n", doc.Stats.Dropped)
	fmt.Fprintf(&b, "- targets generated: %d\n\n", len(doc.Targets))

	if len(doc.NotFound) > 0 {
		fmt.Fprintf(&b, "## Unresolved targets\n\n")
		for _, name := range doc.NotFound {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	if len(doc.Warnings) > 0 {
		fmt.Fprintf(&b, "## Warnings\n\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func init() {
	reportCmd.Flags().IntVar(&reportWidth, "width", 0, "Wrap width (0 autodetects the terminal width)")
}
