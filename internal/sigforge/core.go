// Package sigforge orchestrates the parser, generator, and
// smartanalyzer into the compound operations the CLI and the original
// backend expose directly: Batch (parse + resolve targets + generate
// in one call), GenerateTargeted (parse + generate anchored on the
// first instruction), SmartGenerate (parse + analyze + generate for
// the top-scoring anchors), and Recommend (parse + a lightweight
// target suggestion, no generation).
package sigforge

import (
	"fmt"

	"sigforge/internal/export"
	"sigforge/internal/generator"
	"sigforge/internal/instruction"
	"sigforge/internal/parser"
	sigerrors "sigforge/internal/sigforge/errors"
	"sigforge/internal/signature"
	"sigforge/internal/smartanalyzer"
)

// BatchResult is the outcome of a Batch call: the parse result plus one
// generated signature set per resolved target.
type BatchResult struct {
	Parse       parser.Result
	Targets     []export.TargetSignatures
	NotFound    []string
	WindowWarns []*sigerrors.WindowTooShort
}

// Batch parses text and generates signatures for every resolved
// target in one call. targetNames may mix labels, raw addresses, and
// jump@/call@ qualified addresses; namedSet (e.g. "all_labeled",
// "all_jumps", "all_calls", "all") is used when targetNames is empty.
// An empty targetNames and empty namedSet defaults to "all_labeled".
func Batch(text string, parseOpts parser.Options, targetNames []string, namedSet string, sigOpts signature.Options) (BatchResult, error) {
	parsed, err := parser.Parse(text, parseOpts)
	if err != nil {
		return BatchResult{}, err
	}

	if len(targetNames) == 0 && namedSet == "" {
		namedSet = "all_labeled"
	}
	resolved := generator.FindTargets(parsed.Instructions, targetNames, namedSet)

	var notFound []string
	for _, want := range targetNames {
		found := false
		for _, target := range resolved {
			if target.Requested == want {
				found = true
				break
			}
		}
		if !found {
			notFound = append(notFound, want)
		}
	}

	result := BatchResult{Parse: parsed, NotFound: notFound}
	for _, target := range resolved {
		variants, warn, err := generator.GenerateForTarget(parsed.Instructions, target.Name, target.Index, sigOpts)
		if err != nil {
			return BatchResult{}, fmt.Errorf("sigforge: generating %q: %w", target.Name, err)
		}
		if warn != nil {
			result.WindowWarns = append(result.WindowWarns, warn)
			continue
		}
		result.Targets = append(result.Targets, export.TargetSignatures{Name: target.Name, Variants: variants})
	}

	return result, nil
}

// GenerateTargetedResult is the outcome of GenerateTargeted: one
// signature set anchored on the listing's first instruction.
type GenerateTargetedResult struct {
	Parse  parser.Result
	Target export.TargetSignatures
	Warn   *sigerrors.WindowTooShort
}

// GenerateTargeted is generate_targeted: parse text, then generate a
// signature anchored on its very first instruction, without the
// caller naming a target. Keyed by the first instruction's label, or
// a synthesized "auto@<address>" when it has none.
func GenerateTargeted(text string, parseOpts parser.Options, sigOpts signature.Options) (GenerateTargetedResult, error) {
	parsed, err := parser.Parse(text, parseOpts)
	if err != nil {
		return GenerateTargetedResult{}, err
	}

	name, variants, warn, err := generator.GenerateTargeted(parsed.Instructions, sigOpts)
	if err != nil {
		return GenerateTargetedResult{}, fmt.Errorf("sigforge: generate-targeted: %w", err)
	}

	return GenerateTargetedResult{
		Parse:  parsed,
		Target: export.TargetSignatures{Name: name, Variants: variants},
		Warn:   warn,
	}, nil
}

// smartGenerateMinScore is the composite smart-analyzer score below
// which an anchor is too weak to bother generating a signature for.
const smartGenerateMinScore = 45.0

// SmartGenerateResult is the outcome of SmartGenerate: the smart
// analysis plus one signature set per analyzed anchor that cleared
// smartGenerateMinScore.
type SmartGenerateResult struct {
	Parse       parser.Result
	Analysis    smartanalyzer.Result
	Targets     []export.TargetSignatures
	WindowWarns []*sigerrors.WindowTooShort
}

// SmartGenerate is smart_generate: analyze, then generate signatures
// for its top-N anchors, skipping any scoring below
// smartGenerateMinScore. Each target is named "<mnemonic>@<address>",
// or "smart@<address>" for the rare instruction with no mnemonic.
func SmartGenerate(text string, parseOpts parser.Options, sigOpts signature.Options, topN int) (SmartGenerateResult, error) {
	parsed, err := parser.Parse(text, parseOpts)
	if err != nil {
		return SmartGenerateResult{}, err
	}

	analyzerOpts := smartanalyzer.DefaultOptions()
	analyzerOpts.MaxTargets = topN * 2
	analysis := smartanalyzer.Analyze(parsed.Instructions, analyzerOpts)

	result := SmartGenerateResult{Parse: parsed, Analysis: analysis}
	for i, target := range analysis.TopTargets {
		if i >= topN {
			break
		}
		if target.Score < smartGenerateMinScore {
			continue
		}

		name := "smart@" + target.Address
		if target.Mnemonic != "" {
			name = target.Mnemonic + "@" + target.Address
		}

		variants, warn, err := generator.GenerateForTarget(parsed.Instructions, name, target.InstructionIndex, sigOpts)
		if err != nil {
			return SmartGenerateResult{}, fmt.Errorf("sigforge: smart-generate %q: %w", name, err)
		}
		if warn != nil {
			result.WindowWarns = append(result.WindowWarns, warn)
			continue
		}
		result.Targets = append(result.Targets, export.TargetSignatures{Name: name, Variants: variants})
	}

	return result, nil
}

// RecommendResult is a lightweight alternative to Batch: parse stats
// and a shortlist of target identifiers worth generating signatures
// for, without running the generator at all.
type RecommendResult struct {
	Stats       instruction.Stats
	Recommended []string
}

// Recommend parses text and suggests targets: labeled instructions if
// any exist, otherwise the smart analyzer's top-scoring anchors.
func Recommend(text string, parseOpts parser.Options) (RecommendResult, error) {
	parsed, err := parser.Parse(text, parseOpts)
	if err != nil {
		return RecommendResult{}, err
	}

	if len(parsed.Labels) > 0 {
		return RecommendResult{Stats: parsed.Stats, Recommended: parsed.Labels}, nil
	}

	analysis := smartanalyzer.Analyze(parsed.Instructions, smartanalyzer.DefaultOptions())
	recommended := make([]string, 0, len(analysis.TopTargets))
	for _, target := range analysis.TopTargets {
		recommended = append(recommended, target.Address)
	}
	return RecommendResult{Stats: parsed.Stats, Recommended: recommended}, nil
}
