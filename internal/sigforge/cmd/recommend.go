package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/parser"
	"sigforge/internal/sigforge"
)

var recommendFormat string

var recommendCmd = &cobra.Command{
	Use:   "recommend <file|->",
	Short: "Suggest targets worth generating signatures for, without generating any",
	Long: `Recommend parses a listing and returns its labeled functions, or
falls back to the smart analyzer's top-scoring anchors when no labels
are present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		result, err := sigforge.Recommend(text, parser.Options{Format: parser.Format(recommendFormat)})
		if err != nil {
			return fmt.Errorf("recommend: %w", err)
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
	recommendCmd.Flags().StringVar(&recommendFormat, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
}
