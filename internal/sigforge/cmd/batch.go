package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/parser"
	"sigforge/internal/sigforge"
	"sigforge/internal/signature"
)

var batchOpts struct {
	format        string
	targets       []string
	namedSet      string
	minLength     int
	maxLength     int
	variants      int
	contextBefore int
	contextAfter  int
	out           string
}

var batchCmd = &cobra.Command{
	Use:   "batch <file|->",
	Short: "Resolve a target set and generate signatures for all of it in one call",
	Long: `Batch parses a listing, resolves --targets or a named set
(all, all_jumps, all_calls, all_labeled) to concrete instructions, and
generates signatures for every one of them. Defaults to all_labeled
when neither --targets nor --named-set is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		opts := signature.DefaultOptions()
		opts.MinLength = batchOpts.minLength
		opts.MaxLength = batchOpts.maxLength
		opts.Variants = batchOpts.variants
		opts.ContextBefore = batchOpts.contextBefore
		opts.ContextAfter = batchOpts.contextAfter
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		result, err := sigforge.Batch(text, parser.Options{Format: parser.Format(batchOpts.format)}, batchOpts.targets, batchOpts.namedSet, opts)
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		doc := resultDoc{
			Stats:    result.Parse.Stats,
			Targets:  result.Targets,
			NotFound: result.NotFound,
		}
		for _, warn := range result.WindowWarns {
			doc.Warnings = append(doc.Warnings, warn.Error())
		}

		return writeResultDoc(resolveOutPath(batchOpts.out), doc)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOpts.format, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
	batchCmd.Flags().StringSliceVar(&batchOpts.targets, "targets", nil, "Comma-separated target labels/addresses")
	batchCmd.Flags().StringVar(&batchOpts.namedSet, "named-set", "", "Named target set: all, all_jumps, all_calls, all_labeled")
	defaults := signature.DefaultOptions()
	batchCmd.Flags().IntVar(&batchOpts.minLength, "min-length", defaults.MinLength, "Minimum signature length in bytes")
	batchCmd.Flags().IntVar(&batchOpts.maxLength, "max-length", defaults.MaxLength, "Maximum signature length in bytes")
	batchCmd.Flags().IntVar(&batchOpts.variants, "variants", defaults.Variants, "Number of signature variants to keep per target")
	batchCmd.Flags().IntVar(&batchOpts.contextBefore, "context-before", defaults.ContextBefore, "Instructions of context to include before the target")
	batchCmd.Flags().IntVar(&batchOpts.contextAfter, "context-after", defaults.ContextAfter, "Instructions of context after the target (does not bound the signature window)")
	batchCmd.Flags().StringVarP(&batchOpts.out, "out", "o", "", "Write JSON result here instead of stdout")
}
