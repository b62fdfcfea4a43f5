package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/export"
	"sigforge/internal/generator"
	"sigforge/internal/parser"
	"sigforge/internal/sigforge"
	sigerrors "sigforge/internal/sigforge/errors"
	"sigforge/internal/signature"
)

var generateOpts struct {
	format        string
	targets       []string
	targeted      bool
	minLength     int
	maxLength     int
	variants      int
	contextBefore int
	contextAfter  int
	out           string
}

var generateCmd = &cobra.Command{
	Use:   "generate <file|->",
	Short: "Generate wildcarded byte signatures for explicit targets",
	Long: `Generate parses a listing and runs the nine-strategy signature
generator against each target named by --targets (a label, raw address,
or jump@/call@ qualified address). With --targeted, --targets is
ignored and the signature is anchored on the listing's first
instruction instead (generate_targeted).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !generateOpts.targeted && len(generateOpts.targets) == 0 {
			return fmt.Errorf("generate: --targets is required (or pass --targeted)")
		}

		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		opts := signature.DefaultOptions()
		opts.MinLength = generateOpts.minLength
		opts.MaxLength = generateOpts.maxLength
		opts.Variants = generateOpts.variants
		opts.ContextBefore = generateOpts.contextBefore
		opts.ContextAfter = generateOpts.contextAfter
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("generate: %w", err)
		}

		parseOpts := parser.Options{Format: parser.Format(generateOpts.format)}

		if generateOpts.targeted {
			result, err := sigforge.GenerateTargeted(text, parseOpts, opts)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			doc := resultDoc{Stats: result.Parse.Stats, Targets: []export.TargetSignatures{result.Target}}
			if result.Warn != nil {
				doc.Warnings = append(doc.Warnings, warningText(result.Warn))
			}
			return writeResultDoc(resolveOutPath(generateOpts.out), doc)
		}

		parsed, err := parser.Parse(text, parseOpts)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}

		resolved := generator.FindTargets(parsed.Instructions, generateOpts.targets, "")

		doc := resultDoc{Stats: parsed.Stats}
		for _, want := range generateOpts.targets {
			found := false
			for _, t := range resolved {
				if t.Requested == want {
					found = true
					break
				}
			}
			if !found {
				doc.NotFound = append(doc.NotFound, want)
			}
		}

		for _, target := range resolved {
			variants, warn, err := generator.GenerateForTarget(parsed.Instructions, target.Name, target.Index, opts)
			if err != nil {
				return fmt.Errorf("generate %q: %w", target.Name, err)
			}
			if warn != nil {
				doc.Warnings = append(doc.Warnings, warningText(warn))
			}
			doc.Targets = append(doc.Targets, export.TargetSignatures{Name: target.Name, Variants: variants})
		}

		return writeResultDoc(resolveOutPath(generateOpts.out), doc)
	},
}

func warningText(w *sigerrors.WindowTooShort) string {
	return w.Error()
}

func init() {
	generateCmd.Flags().StringVar(&generateOpts.format, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
	generateCmd.Flags().StringSliceVar(&generateOpts.targets, "targets", nil, "Comma-separated target labels/addresses")
	generateCmd.Flags().BoolVar(&generateOpts.targeted, "targeted", false, "Anchor on the first instruction instead of an explicit target (generate_targeted)")
	defaults := signature.DefaultOptions()
	generateCmd.Flags().IntVar(&generateOpts.minLength, "min-length", defaults.MinLength, "Minimum signature length in bytes")
	generateCmd.Flags().IntVar(&generateOpts.maxLength, "max-length", defaults.MaxLength, "Maximum signature length in bytes")
	generateCmd.Flags().IntVar(&generateOpts.variants, "variants", defaults.Variants, "Number of signature variants to keep per target")
	generateCmd.Flags().IntVar(&generateOpts.contextBefore, "context-before", defaults.ContextBefore, "Instructions of context to include before the target")
	generateCmd.Flags().IntVar(&generateOpts.contextAfter, "context-after", defaults.ContextAfter, "Instructions of context after the target (does not bound the signature window)")
	generateCmd.Flags().StringVarP(&generateOpts.out, "out", "o", "", "Write JSON result here instead of stdout")
}
