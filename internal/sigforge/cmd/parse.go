package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/parser"
)

var parseFormat string

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Parse a disassembly listing and print decoded instructions",
	Long: `Parse decodes an x64dbg, Cheat Engine, or raw hex disassembly listing
into instructions and prints them as JSON. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		result, err := parser.Parse(text, parser.Options{Format: parser.Format(parseFormat)})
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseFormat, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
}
