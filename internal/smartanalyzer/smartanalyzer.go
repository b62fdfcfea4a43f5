// Package smartanalyzer scores instructions as signature anchor
// candidates and locates contiguous stable regions, without requiring
// the caller to pick a target up front.
package smartanalyzer

import (
	"fmt"
	"sort"
	"strings"

	"sigforge/internal/instruction"
)

// Target is a recommended signature anchor point.
type Target struct {
	InstructionIndex int      `json:"instruction_index"`
	Address          string   `json:"address"`
	Mnemonic         string   `json:"mnemonic"`
	Operands         string   `json:"operands"`
	Score            float64  `json:"score"`
	StabilityScore   float64  `json:"stability_score"`
	UniquenessScore  float64  `json:"uniqueness_score"`
	ContextScore     float64  `json:"context_score"`
	Reasons          []string `json:"reasons"`
	Warnings         []string `json:"warnings"`
}

// StableRegion is a contiguous run of stable instructions.
type StableRegion struct {
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	StartAddress string  `json:"start_address"`
	EndAddress   string  `json:"end_address"`
	AvgScore     float64 `json:"avg_score"`
	ByteCount    int     `json:"byte_count"`
}

// Result is the full smart-analysis report over a parsed instruction
// list.
type Result struct {
	TopTargets        []Target       `json:"top_targets"`
	StableRegions     []StableRegion `json:"stable_regions"`
	AnalysisSummary   string         `json:"analysis_summary"`
	TotalInstructions int            `json:"total_instructions"`
	AvgStability      float64        `json:"avg_stability"`
}

var stableTypes = map[instruction.Type]bool{
	instruction.Mov:        true,
	instruction.Compare:    true,
	instruction.Logic:      true,
	instruction.Arithmetic: true,
	instruction.Stack:      true,
}

var volatileTypes = map[instruction.Type]bool{
	instruction.ConditionalJump:   true,
	instruction.UnconditionalJump: true,
	instruction.Call:              true,
}

var rareMnemonics = map[string]bool{
	"xchg": true, "bswap": true, "rol": true, "ror": true, "shld": true, "shrd": true,
	"bt": true, "bts": true, "btr": true, "btc": true,
	"cpuid": true, "rdtsc": true, "prefetch": true, "lfence": true, "mfence": true, "sfence": true,
	"cvtsi2ss": true, "cvtsi2sd": true, "cvtss2sd": true, "cvtsd2ss": true, "cvttss2si": true, "cvttsd2si": true,
	"comiss": true, "comisd": true, "ucomiss": true, "ucomisd": true,
	"pxor": true, "por": true, "pand": true, "pandn": true,
	"pcmpeqb": true, "pcmpeqd": true, "pcmpgtb": true, "pcmpgtd": true,
	"movdqa": true, "movdqu": true, "movaps": true, "movups": true, "movss": true, "movsd": true,
	"shufps": true, "shufpd": true, "unpcklps": true, "unpckhps": true,
}

var commonMnemonics = map[string]bool{
	"mov": true, "push": true, "pop": true, "add": true, "sub": true, "xor": true,
	"cmp": true, "test": true, "jmp": true, "je": true, "jne": true,
	"call": true, "ret": true, "lea": true, "nop": true,
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// scoreInstruction scores a single instruction as an anchor candidate.
// The weighting (0.45 stability, 0.30 uniqueness, 0.25 context) and
// every threshold below mirror the original backend's scorer exactly.
func scoreInstruction(inst instruction.Instruction, contextBefore, contextAfter, all []instruction.Instruction) (total, stability, uniqueness, context float64, reasons, warnings []string) {
	stability = 50.0
	uniqueness = 50.0
	context = 50.0

	if stableTypes[inst.Type] {
		stability += 20
		reasons = append(reasons, fmt.Sprintf("%s instructions are version-stable", inst.Type))
	} else if volatileTypes[inst.Type] {
		stability -= 25
		warnings = append(warnings, fmt.Sprintf("%s has volatile offsets", inst.Type))
	}

	switch inst.Volatility.Operand {
	case instruction.LevelLow:
		stability += 15
		reasons = append(reasons, "Operands are stable (registers/small immediates)")
	case instruction.LevelHigh:
		stability -= 20
		warnings = append(warnings, "Operands contain volatile addresses")
	case instruction.LevelMedium:
		stability -= 5
	}

	switch inst.Volatility.Opcode {
	case instruction.LevelLow:
		stability += 10
	case instruction.LevelHigh:
		stability -= 15
		warnings = append(warnings, "Opcode encoding may vary")
	}

	wildcardCount := len(inst.WildcardPositions)
	switch {
	case wildcardCount == 0:
		stability += 15
		reasons = append(reasons, "No wildcards needed in this instruction")
	case wildcardCount <= 2:
		stability += 5
	default:
		stability -= float64(wildcardCount) * 3
		warnings = append(warnings, fmt.Sprintf("Needs %d wildcards", wildcardCount))
	}

	mnemonicLower := strings.ToLower(inst.Mnemonic)
	if rareMnemonics[mnemonicLower] {
		uniqueness += 25
		reasons = append(reasons, fmt.Sprintf("%s is a rare/distinctive instruction", inst.Mnemonic))
	} else if commonMnemonics[mnemonicLower] {
		uniqueness -= 10
	}

	switch {
	case inst.Size >= 6:
		uniqueness += 15
		reasons = append(reasons, fmt.Sprintf("Long instruction (%d bytes) provides unique pattern", inst.Size))
	case inst.Size >= 4:
		uniqueness += 8
	case inst.Size <= 2:
		uniqueness -= 10
	}

	sameMnemonicCount := 0
	for _, other := range all {
		if strings.ToLower(other.Mnemonic) == mnemonicLower {
			sameMnemonicCount++
		}
	}
	switch {
	case sameMnemonicCount == 1:
		uniqueness += 20
		reasons = append(reasons, "Only occurrence of this instruction type")
	case sameMnemonicCount <= 3:
		uniqueness += 10
	case sameMnemonicCount > 10:
		uniqueness -= 15
		warnings = append(warnings, fmt.Sprintf("Common pattern (%d similar instructions)", sameMnemonicCount))
	}

	stableBefore, stableAfter := 0, 0
	for _, i := range contextBefore {
		if stableTypes[i.Type] {
			stableBefore++
		}
	}
	for _, i := range contextAfter {
		if stableTypes[i.Type] {
			stableAfter++
		}
	}
	if stableBefore >= 2 {
		context += 10
		reasons = append(reasons, "Good stable context before")
	}
	if stableAfter >= 3 {
		context += 15
		reasons = append(reasons, "Strong stable context after")
	}

	volatileAfter := 0
	for _, i := range contextAfter {
		if volatileTypes[i.Type] {
			volatileAfter++
		}
	}
	if volatileAfter >= 3 {
		context -= 15
		warnings = append(warnings, "Many volatile instructions follow")
	}

	totalContextBytes := 0
	for i, inst := range contextAfter {
		if i >= 5 {
			break
		}
		totalContextBytes += inst.Size
	}
	if totalContextBytes >= 15 {
		context += 10
		reasons = append(reasons, fmt.Sprintf("Good byte density (%d bytes in next 5 instructions)", totalContextBytes))
	}

	if len(contextBefore) < 2 {
		context -= 10
		warnings = append(warnings, "Limited context before")
	}
	if len(contextAfter) < 3 {
		context -= 15
		warnings = append(warnings, "Limited context after")
	}

	stability = clamp(stability)
	uniqueness = clamp(uniqueness)
	context = clamp(context)

	total = stability*0.45 + uniqueness*0.30 + context*0.25
	return total, stability, uniqueness, context, reasons, warnings
}

// FindStableRegions groups consecutive stable instructions into
// regions of at least minRegionSize, keeping only those whose average
// score meets stabilityThreshold.
func FindStableRegions(instructions []instruction.Instruction, minRegionSize int, stabilityThreshold float64) []StableRegion {
	var regions []StableRegion
	regionStart := -1
	var scores []float64

	flush := func() {
		if regionStart >= 0 && len(scores) >= minRegionSize {
			sum := 0.0
			for _, s := range scores {
				sum += s
			}
			avg := sum / float64(len(scores))
			if avg >= stabilityThreshold {
				end := regionStart + len(scores) - 1
				byteCount := 0
				for j := regionStart; j <= end; j++ {
					byteCount += instructions[j].Size
				}
				regions = append(regions, StableRegion{
					StartIndex:   regionStart,
					EndIndex:     end,
					StartAddress: instructions[regionStart].Address,
					EndAddress:   instructions[end].Address,
					AvgScore:     avg,
					ByteCount:    byteCount,
				})
			}
		}
		regionStart = -1
		scores = nil
	}

	for i, inst := range instructions {
		isStable := stableTypes[inst.Type] &&
			inst.Volatility.Operand != instruction.LevelHigh &&
			len(inst.WildcardPositions) <= 2
		if isStable {
			if regionStart < 0 {
				regionStart = i
			}
			scores = append(scores, 70.0)
		} else {
			flush()
		}
	}
	flush()

	return regions
}

// Options bounds how many targets Analyze keeps.
type Options struct {
	MaxTargets          int
	MinRegionSize       int
	StabilityThreshold  float64
}

// DefaultOptions mirrors the original backend's defaults.
func DefaultOptions() Options {
	return Options{MaxTargets: 10, MinRegionSize: 3, StabilityThreshold: 60.0}
}

// minScoreToKeep excludes anchors too weak to bother recommending.
const minScoreToKeep = 40.0

// Analyze scores every instruction as a potential signature anchor,
// keeps the top-scoring candidates, finds stable regions, and produces
// a one-paragraph summary.
func Analyze(instructions []instruction.Instruction, opts Options) Result {
	if len(instructions) == 0 {
		return Result{AnalysisSummary: "No instructions to analyze"}
	}

	var targets []Target
	var allStability []float64

	for i, inst := range instructions {
		before := instructions[max(0, i-5):i]
		after := instructions[i+1:min(len(instructions), i+10)]

		total, stability, uniqueness, context, reasons, warnings := scoreInstruction(inst, before, after, instructions)
		allStability = append(allStability, stability)

		if total < minScoreToKeep {
			continue
		}

		targets = append(targets, Target{
			InstructionIndex: i,
			Address:          inst.Address,
			Mnemonic:         inst.Mnemonic,
			Operands:         inst.Operands,
			Score:            round1(total),
			StabilityScore:   round1(stability),
			UniquenessScore:  round1(uniqueness),
			ContextScore:     round1(context),
			Reasons:          reasons,
			Warnings:         warnings,
		})
	}

	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Score > targets[j].Score })
	if len(targets) > opts.MaxTargets {
		targets = targets[:opts.MaxTargets]
	}

	regions := FindStableRegions(instructions, opts.MinRegionSize, opts.StabilityThreshold)

	avgStability := 0.0
	if len(allStability) > 0 {
		sum := 0.0
		for _, s := range allStability {
			sum += s
		}
		avgStability = sum / float64(len(allStability))
	}

	summary := buildSummary(targets, regions, avgStability)

	return Result{
		TopTargets:        targets,
		StableRegions:     regions,
		AnalysisSummary:   summary,
		TotalInstructions: len(instructions),
		AvgStability:      round1(avgStability),
	}
}

func buildSummary(targets []Target, regions []StableRegion, avgStability float64) string {
	var parts []string

	if len(targets) > 0 {
		best := targets[0]
		parts = append(parts, fmt.Sprintf("Best anchor: %s at %s (score: %.0f/100)", best.Mnemonic, best.Address, best.Score))
	}

	if len(regions) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d stable region(s)", len(regions)))
		largest := regions[0]
		for _, r := range regions[1:] {
			if r.ByteCount > largest.ByteCount {
				largest = r
			}
		}
		parts = append(parts, fmt.Sprintf("Largest stable region: %d bytes (%s to %s)", largest.ByteCount, largest.StartAddress, largest.EndAddress))
	}

	highScoreCount := 0
	for _, t := range targets {
		if t.Score >= 70 {
			highScoreCount++
		}
	}
	switch {
	case highScoreCount >= 3:
		parts = append(parts, fmt.Sprintf("%d excellent anchor candidates found", highScoreCount))
	case highScoreCount == 0:
		parts = append(parts, "Warning: No high-confidence anchors found. Consider providing more context.")
	}

	switch {
	case avgStability < 50:
		parts = append(parts, "Overall code stability is low - signatures may need frequent updates")
	case avgStability >= 70:
		parts = append(parts, "Code appears stable - signatures should be resilient")
	}

	return strings.Join(parts, ". ")
}
