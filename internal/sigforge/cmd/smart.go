package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/parser"
	"sigforge/internal/sigforge"
	"sigforge/internal/signature"
	"sigforge/internal/smartanalyzer"
)

// smartGenerateDefaultTopN mirrors smart_generate's default of
// generating for the top 3 anchors when --top-n isn't given.
const smartGenerateDefaultTopN = 3

var smartOpts struct {
	format        string
	topN          int
	generate      bool
	minLength     int
	maxLength     int
	variants      int
	contextBefore int
	contextAfter  int
	out           string
}

var smartCmd = &cobra.Command{
	Use:   "smart <file|->",
	Short: "Score every instruction as a signature anchor and rank the best ones",
	Long: `Smart parses a listing and runs the smart-anchor analyzer, ranking
instructions by stability, uniqueness, and surrounding context, and
reporting stable contiguous regions. With --generate, it also runs the
signature generator against the top --top-n anchors (smart_generate),
skipping any anchor whose score falls below 45.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		parseOpts := parser.Options{Format: parser.Format(smartOpts.format)}

		if smartOpts.generate {
			topN := smartOpts.topN
			if topN <= 0 {
				topN = smartGenerateDefaultTopN
			}

			sigOpts := signature.DefaultOptions()
			sigOpts.MinLength = smartOpts.minLength
			sigOpts.MaxLength = smartOpts.maxLength
			sigOpts.Variants = smartOpts.variants
			sigOpts.ContextBefore = smartOpts.contextBefore
			sigOpts.ContextAfter = smartOpts.contextAfter
			if err := sigOpts.Validate(); err != nil {
				return fmt.Errorf("smart: %w", err)
			}

			result, err := sigforge.SmartGenerate(text, parseOpts, sigOpts, topN)
			if err != nil {
				return fmt.Errorf("smart: %w", err)
			}

			doc := resultDoc{Stats: result.Parse.Stats, Targets: result.Targets}
			for _, warn := range result.WindowWarns {
				doc.Warnings = append(doc.Warnings, warningText(warn))
			}
			return writeResultDoc(resolveOutPath(smartOpts.out), doc)
		}

		parsed, err := parser.Parse(text, parseOpts)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}

		opts := smartanalyzer.DefaultOptions()
		if smartOpts.topN > 0 {
			opts.MaxTargets = smartOpts.topN
		}

		analysis := smartanalyzer.Analyze(parsed.Instructions, opts)

		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	smartCmd.Flags().StringVar(&smartOpts.format, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
	smartCmd.Flags().IntVar(&smartOpts.topN, "top-n", 0, "Limit ranked targets to the top N (0 uses the analyzer default, or 3 with --generate)")
	smartCmd.Flags().BoolVar(&smartOpts.generate, "generate", false, "Also generate signatures for the top anchors (smart_generate)")
	defaults := signature.DefaultOptions()
	smartCmd.Flags().IntVar(&smartOpts.minLength, "min-length", defaults.MinLength, "Minimum signature length in bytes (--generate only)")
	smartCmd.Flags().IntVar(&smartOpts.maxLength, "max-length", defaults.MaxLength, "Maximum signature length in bytes (--generate only)")
	smartCmd.Flags().IntVar(&smartOpts.variants, "variants", defaults.Variants, "Number of signature variants to keep per target (--generate only)")
	smartCmd.Flags().IntVar(&smartOpts.contextBefore, "context-before", defaults.ContextBefore, "Instructions of context to include before the target (--generate only)")
	smartCmd.Flags().IntVar(&smartOpts.contextAfter, "context-after", defaults.ContextAfter, "Instructions of context after the target, not bounding the signature window (--generate only)")
	smartCmd.Flags().StringVarP(&smartOpts.out, "out", "o", "", "Write JSON result here instead of stdout (--generate only)")
}
