package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/export"
)

var exportOpts struct {
	format     string
	moduleName string
}

var exportCmd = &cobra.Command{
	Use:   "export <result.json>",
	Short: "Render a prior generate/batch result into a reverse-engineering tool format",
	Long: `Export reads the JSON result written by "generate" or "batch" and
renders it as AOB text, a pattern+mask pair, an IDA Python script, a
Cheat Engine table script, a C/C++ header, or x64dbg's no-space pattern.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readResultDoc(args[0])
		if err != nil {
			return err
		}

		out, err := export.Export(doc.Targets, export.Format(exportOpts.format), exportOpts.moduleName)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.format, "format", string(export.FormatAOB), "Export format: aob, mask, ida, cheatengine, cpp, x64dbg")
	exportCmd.Flags().StringVar(&exportOpts.moduleName, "module-name", "", "Module name embedded by formats that need one (default game.exe)")
}
