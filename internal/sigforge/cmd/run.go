package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"sigforge/internal/parser"
	"sigforge/internal/sigforge"
	"sigforge/internal/smartanalyzer"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run <file> [operation]",
	Short: "Run a single non-interactive analysis and exit",
	Long: `Run parses a listing and performs one operation in non-interactive
mode: "recommend" (default), or "smart". Intended for scripting, where
a full subcommand invocation would be overkill.`,
	Example: `
# Recommend targets
sigforge run listing.txt

# Rank every instruction as a signature anchor
sigforge run listing.txt smart
  `,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		operation := "recommend"
		if len(args) > 1 {
			operation = strings.ToLower(args[1])
		}

		if !runQuiet {
			slog.Info("running analysis", "file", file, "operation", operation)
		}

		text, err := readInput(file)
		if err != nil {
			return err
		}

		var payload any
		switch operation {
		case "recommend":
			payload, err = sigforge.Recommend(text, parser.Options{})
		case "smart":
			var parsed parser.Result
			parsed, err = parser.Parse(text, parser.Options{})
			if err == nil {
				payload = smartanalyzer.Analyze(parsed.Instructions, smartanalyzer.DefaultOptions())
			}
		default:
			return fmt.Errorf("run: unknown operation %q (want recommend or smart)", operation)
		}
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("run: marshal: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress the progress log line")
}
