// Package generator builds wildcarded byte-signature variants for a
// target instruction: nine fixed wildcard-rule strategies, eleven
// context-window variations, and anchor shifting across nearby stable
// instructions, followed by similarity-based deduplication and a
// uniqueness-ranked cut to the caller's requested variant count.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"sigforge/internal/analyzer"
	"sigforge/internal/instruction"
	sigerrors "sigforge/internal/sigforge/errors"
	"sigforge/internal/signature"
)

// similarityDedupeThreshold is the fraction of difference two patterns
// must have to both survive deduplication: patterns more than 75%
// similar are considered the same candidate.
const similarityDedupeThreshold = 0.25

// namedRules pairs a strategy label with the wildcard rule set that
// realizes it.
type namedRules struct {
	name  string
	rules signature.Rules
}

func strategies(userRules signature.Rules) []namedRules {
	return []namedRules{
		{"Minimal", signature.Rules{RelativeJumps: true, RelativeCalls: true}},
		{"Conservative", userRules},
		{"Balanced", signature.Rules{
			RelativeJumps: true, RelativeCalls: true, StackOffsets: true,
			GlobalAddresses: true, StructOffsets: true,
		}},
		{"Aggressive", signature.Rules{
			RelativeJumps: true, RelativeCalls: true, StackOffsets: true,
			GlobalAddresses: true, Immediates: true, StructOffsets: true,
			MemoryDisplacements: true,
		}},
		{"Stack Focus", signature.Rules{RelativeJumps: true, RelativeCalls: true, StackOffsets: true}},
		{"Global Focus", signature.Rules{RelativeJumps: true, RelativeCalls: true, GlobalAddresses: true}},
		{"Memory Heavy", signature.Rules{
			RelativeJumps: true, RelativeCalls: true, StackOffsets: true,
			GlobalAddresses: true, StructOffsets: true, MemoryDisplacements: true,
		}},
		{"Max Stability", signature.Rules{
			RelativeJumps: true, RelativeCalls: true, StackOffsets: true,
			GlobalAddresses: true, Immediates: true, StructOffsets: true,
			MemoryDisplacements: true,
		}},
		{"Immediates Only", signature.Rules{RelativeJumps: true, RelativeCalls: true, Immediates: true}},
	}
}

// contextVariation is one (context_before, context_after) pair tried in
// addition to the caller's own options.
type contextVariation struct{ before, after int }

var contextVariations = []contextVariation{
	{0, 10}, {0, 15}, {0, 20}, {0, 30}, {0, 40},
	{2, 12}, {3, 18}, {5, 25},
	{5, 10}, {8, 15}, {10, 20},
}

var anchorShifts = []int{-4, -3, -2, -1, 1, 2, 3, 4}

var stableAnchorTypes = map[instruction.Type]bool{
	instruction.Mov:        true,
	instruction.Compare:    true,
	instruction.Logic:      true,
	instruction.Arithmetic: true,
	instruction.Stack:      true,
}

// Generate produces the full set of signature variants for a target
// instruction index: the nine strategies, the eleven context
// variations, and anchor-shift attempts over nearby stable
// instructions, deduplicated by pattern similarity and sorted by
// uniqueness score, truncated to options.Variants.
func Generate(instructions []instruction.Instruction, targetIdx int, opts signature.Options) ([]signature.Signature, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if targetIdx < 0 || targetIdx >= len(instructions) {
		return nil, fmt.Errorf("generator: target index %d out of range [0,%d)", targetIdx, len(instructions))
	}

	var variants []signature.Signature

	for _, s := range strategies(opts.WildcardRules) {
		if sig, ok := generateWithRules(instructions, targetIdx, s.rules, opts, s.name); ok {
			variants = append(variants, sig)
		}
	}

	for _, cv := range contextVariations {
		modified := opts
		modified.ContextBefore = cv.before
		modified.ContextAfter = cv.after
		label := fmt.Sprintf("Context %d/%d", cv.before, cv.after)
		if sig, ok := generateWithRules(instructions, targetIdx, opts.WildcardRules, modified, label); ok {
			variants = append(variants, sig)
		}
	}

	for _, shift := range anchorShifts {
		shiftedIdx := targetIdx + shift
		if shiftedIdx < 0 || shiftedIdx >= len(instructions) {
			continue
		}
		if !stableAnchorTypes[instructions[shiftedIdx].Type] {
			continue
		}
		label := fmt.Sprintf("Anchor %+d", shift)
		if sig, ok := generateWithRules(instructions, shiftedIdx, opts.WildcardRules, opts, label); ok {
			variants = append(variants, sig)
		}
	}

	unique := similarityDeduplicate(variants, similarityDedupeThreshold)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].UniquenessScore > unique[j].UniquenessScore
	})

	if len(unique) > opts.Variants {
		unique = unique[:opts.Variants]
	}
	return unique, nil
}

type byteSlot struct {
	value    byte
	posInInt int
	inst     *instruction.Instruction
}

// generateWithRules builds a single signature variant with the given
// wildcard rules. Its window starts opts.ContextBefore instructions
// before targetIdx (clamped to the first instruction) and takes whole
// instructions until opts.MaxLength bytes are collected or the listing
// ends; opts.ContextAfter does not bound the window. The variant is cut
// to opts.MinLength bytes when the window filled opts.MaxLength and
// otherwise spans every collected byte. Returns ok=false when fewer
// than opts.MinLength bytes are available; no short variant is built
// and no Warning is set.
func generateWithRules(instructions []instruction.Instruction, targetIdx int, rules signature.Rules, opts signature.Options, strategy string) (signature.Signature, bool) {
	startIdx := targetIdx - opts.ContextBefore
	if startIdx < 0 {
		startIdx = 0
	}

	var all []byteSlot
	idx := startIdx
	for idx < len(instructions) && len(all) < opts.MaxLength {
		inst := &instructions[idx]
		for pos, b := range inst.Bytes {
			if len(all) >= opts.MaxLength {
				break
			}
			all = append(all, byteSlot{value: b, posInInt: pos, inst: inst})
		}
		idx++
	}

	if len(all) < opts.MinLength {
		return signature.Signature{}, false
	}

	targetLength := opts.MinLength
	if len(all) < opts.MaxLength {
		targetLength = len(all)
	}
	if targetLength < opts.MinLength {
		targetLength = opts.MinLength
	}
	if targetLength > len(all) {
		targetLength = len(all)
	}
	all = all[:targetLength]

	patternBytes := make([]*byte, len(all))
	var wildcardPositions []int
	var wildcardReasons []signature.WildcardReason

	for i := range all {
		slot := all[i]
		shouldWildcard := false
		var reasonCode signature.ReasonCode
		var detail string

		if rules.RelativeJumps || rules.RelativeCalls {
			if containsInt(slot.inst.WildcardPositions, slot.posInInt) {
				switch slot.inst.Type {
				case instruction.ConditionalJump, instruction.UnconditionalJump:
					if rules.RelativeJumps {
						shouldWildcard = true
						reasonCode = signature.ReasonRelativeJump
						detail = "Relative jump offset - changes when code moves"
					}
				case instruction.Call:
					if rules.RelativeCalls {
						shouldWildcard = true
						reasonCode = signature.ReasonRelativeCall
						detail = "Relative call offset - target address changes between builds"
					}
				}
			}
		}

		if rules.StackOffsets && !shouldWildcard {
			if containsInt(analyzer.FindStackDisplacementPositions(*slot.inst), slot.posInInt) {
				shouldWildcard = true
				reasonCode = signature.ReasonStackOffset
				detail = "Stack frame offset [ebp/esp+X] - varies with local variables"
			}
		}

		if rules.GlobalAddresses && !shouldWildcard {
			if containsInt(analyzer.FindGlobalAddressPositions(*slot.inst), slot.posInInt) {
				shouldWildcard = true
				reasonCode = signature.ReasonGlobalAddress
				detail = "Global/absolute address - changes due to ASLR or relocation"
			}
		}

		if rules.Immediates && !shouldWildcard {
			if containsInt(analyzer.FindImmediatePositions(*slot.inst), slot.posInInt) {
				shouldWildcard = true
				reasonCode = signature.ReasonImmediate
				detail = "Immediate value - may change between versions"
			}
		}

		if rules.StructOffsets && !shouldWildcard {
			if containsInt(analyzer.FindStructOffsetPositions(*slot.inst), slot.posInInt) {
				shouldWildcard = true
				reasonCode = signature.ReasonStructOffset
				detail = "Structure offset [reg+X] - changes if struct layout changes"
			}
		}

		if shouldWildcard {
			patternBytes[i] = nil
			wildcardPositions = append(wildcardPositions, i)
			wildcardReasons = append(wildcardReasons, signature.WildcardReason{
				Position:           i,
				Reason:             reasonCode,
				Detail:             detail,
				InstructionAddress: slot.inst.Address,
			})
		} else {
			v := slot.value
			patternBytes[i] = &v
		}
	}

	pattern, mask := renderPattern(patternBytes)
	wildcardCount := len(wildcardPositions)
	totalBytes := len(patternBytes)

	sig := signature.Signature{
		Pattern:           pattern,
		Mask:              mask,
		Bytes:             patternBytes,
		Length:            totalBytes,
		WildcardCount:     wildcardCount,
		WildcardPositions: wildcardPositions,
		WildcardReasons:   wildcardReasons,
		UniquenessScore:   calculateUniqueness(patternBytes),
		Stability:         calculateStability(wildcardCount, totalBytes, instructions[targetIdx]),
		Strategy:          strategy,
	}
	if len(all) > 0 {
		sig.StartAddress = all[0].inst.Address
		sig.EndAddress = all[len(all)-1].inst.Address
	}
	sig.Description = generateDescription(strategy, rules, wildcardCount, totalBytes)
	sig.Summary = generateWildcardSummary(wildcardReasons, strategy)

	return sig, true
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func renderPattern(bytes []*byte) (pattern, mask string) {
	var patBuf, maskBuf strings.Builder
	for i, b := range bytes {
		if i > 0 {
			patBuf.WriteByte(' ')
		}
		if b == nil {
			patBuf.WriteString("??")
			maskBuf.WriteByte('?')
		} else {
			fmt.Fprintf(&patBuf, "%02X", *b)
			maskBuf.WriteByte('x')
		}
	}
	return patBuf.String(), maskBuf.String()
}

// calculateUniqueness scores a pattern 0.0-1.0: concrete-byte ratio,
// plus a small length bonus, minus a penalty for long wildcard runs.
func calculateUniqueness(bytes []*byte) float64 {
	total := len(bytes)
	if total == 0 {
		return 0.0
	}
	wildcards := 0
	for _, b := range bytes {
		if b == nil {
			wildcards++
		}
	}
	concrete := total - wildcards

	baseUniqueness := float64(concrete) / float64(total)
	lengthBonus := float64(total) / 50
	if lengthBonus > 0.2 {
		lengthBonus = 0.2
	}
	maxConsecutive := maxConsecutiveWildcards(bytes)
	consecutivePenalty := float64(maxConsecutive) / 10
	if consecutivePenalty > 0.3 {
		consecutivePenalty = 0.3
	}

	score := baseUniqueness + lengthBonus - consecutivePenalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return roundTo2(score)
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func maxConsecutiveWildcards(bytes []*byte) int {
	max, current := 0, 0
	for _, b := range bytes {
		if b == nil {
			current++
			if current > max {
				max = current
			}
		} else {
			current = 0
		}
	}
	return max
}

// calculateStability rates a variant by wildcard density combined with
// the target instruction's own operand volatility.
func calculateStability(wildcardCount, totalBytes int, target instruction.Instruction) signature.Stability {
	var ratio float64
	if totalBytes > 0 {
		ratio = float64(wildcardCount) / float64(totalBytes)
	}
	highVolatility := target.Volatility.Operand == instruction.LevelHigh

	switch {
	case ratio >= 0.3 && highVolatility:
		return signature.StabilityHigh
	case ratio >= 0.15 || highVolatility:
		return signature.StabilityMedium
	default:
		return signature.StabilityLow
	}
}

func generateDescription(strategy string, rules signature.Rules, wildcardCount, totalBytes int) string {
	parts := []string{strategy}

	var wildcarded []string
	if rules.RelativeJumps {
		wildcarded = append(wildcarded, "jumps")
	}
	if rules.RelativeCalls {
		wildcarded = append(wildcarded, "calls")
	}
	if rules.StackOffsets {
		wildcarded = append(wildcarded, "stack")
	}
	if rules.GlobalAddresses {
		wildcarded = append(wildcarded, "globals")
	}
	if rules.Immediates {
		wildcarded = append(wildcarded, "immediates")
	}
	if rules.StructOffsets {
		wildcarded = append(wildcarded, "structs")
	}
	if len(wildcarded) > 0 {
		parts = append(parts, "wildcards: "+strings.Join(wildcarded, ", "))
	}
	parts = append(parts, fmt.Sprintf("%d/%d bytes wildcarded", wildcardCount, totalBytes))

	return strings.Join(parts, " - ")
}

var strategyDescriptions = map[string]string{
	"Minimal":      "Uses minimal wildcarding for maximum uniqueness.",
	"Conservative": "Balances stability with uniqueness.",
	"Aggressive":   "Wildcards aggressively for maximum stability across updates.",
}

func generateWildcardSummary(reasons []signature.WildcardReason, strategy string) string {
	if len(reasons) == 0 {
		return "No wildcards needed - all bytes are stable across builds."
	}

	counts := make(map[signature.ReasonCode]int)
	for _, r := range reasons {
		counts[r.Reason]++
	}

	var parts []string
	switch {
	case strategyDescriptions[strategy] != "":
		parts = append(parts, strategyDescriptions[strategy])
	case strings.HasPrefix(strategy, "Context"):
		parts = append(parts, "Adjusted context window for better anchoring.")
	case strings.HasPrefix(strategy, "Anchor"):
		parts = append(parts, "Shifted anchor point to a more stable instruction.")
	}

	plural := func(n int) string {
		if n > 1 {
			return "s"
		}
		return ""
	}

	var explanations []string
	if n := counts[signature.ReasonRelativeJump]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for relative jump offsets (change when code is relocated)", n, plural(n)))
	}
	if n := counts[signature.ReasonRelativeCall]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for relative call targets (function addresses vary)", n, plural(n)))
	}
	if n := counts[signature.ReasonStackOffset]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for stack offsets (local variable positions may change)", n, plural(n)))
	}
	if n := counts[signature.ReasonGlobalAddress]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for global addresses (affected by ASLR/relocation)", n, plural(n)))
	}
	if n := counts[signature.ReasonImmediate]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for immediate values (constants that may change)", n, plural(n)))
	}
	if n := counts[signature.ReasonStructOffset]; n > 0 {
		explanations = append(explanations, fmt.Sprintf("%d byte%s for struct offsets (structure layouts may differ)", n, plural(n)))
	}

	if len(explanations) > 0 {
		parts = append(parts, "Wildcarded: "+strings.Join(explanations, "; ")+".")
	}
	return strings.Join(parts, " ")
}

// similarityDeduplicate keeps the first variant and every subsequent
// one that is not more than (1-threshold) similar to any variant
// already kept.
func similarityDeduplicate(variants []signature.Signature, threshold float64) []signature.Signature {
	if len(variants) == 0 {
		return nil
	}
	unique := []signature.Signature{variants[0]}

	for _, candidate := range variants[1:] {
		isUnique := true
		for _, existing := range unique {
			if calculatePatternSimilarity(candidate.Pattern, existing.Pattern) > 1-threshold {
				isUnique = false
				break
			}
		}
		if isUnique {
			unique = append(unique, candidate)
		}
	}
	return unique
}

// calculatePatternSimilarity compares two space-separated byte
// patterns token by token, treating "??" as a half-match against
// anything.
func calculatePatternSimilarity(pattern1, pattern2 string) float64 {
	b1 := strings.Fields(pattern1)
	b2 := strings.Fields(pattern2)

	maxLen := len(b1)
	if len(b2) > maxLen {
		maxLen = len(b2)
	}
	if maxLen == 0 {
		return 1.0
	}
	for len(b1) < maxLen {
		b1 = append(b1, "??")
	}
	for len(b2) < maxLen {
		b2 = append(b2, "??")
	}

	matches := 0.0
	for i := 0; i < maxLen; i++ {
		switch {
		case b1[i] == b2[i]:
			matches++
		case b1[i] == "??" || b2[i] == "??":
			matches += 0.5
		}
	}
	return matches / float64(maxLen)
}

// Target names a resolved generation target: its instruction index and
// a human-readable name (label or synthesized from its address).
type Target struct {
	Index int
	Name  string

	// Requested is the exact string the caller asked for when this
	// target came from an explicit selection list (empty for targets
	// resolved from a named set). Name may differ from Requested when
	// a raw address or jump@/call@ qualifier resolved to an
	// instruction that also carries a label; callers tracking
	// not-found targets must compare against Requested, not Name.
	Requested string
}

// FindTargets resolves a target selection against a parsed instruction
// list. selection is either one of the named sets ("all", "all_jumps",
// "all_calls", "all_labeled") or a list of specific identifiers: a
// label, a raw address, or a "jump@<addr>"/"call@<addr>" qualified
// address.
func FindTargets(instructions []instruction.Instruction, selection []string, namedSet string) []Target {
	var targets []Target

	switch {
	case len(selection) > 0:
		for _, want := range selection {
			if idx, name, ok := resolveOne(instructions, want); ok {
				targets = append(targets, Target{Index: idx, Name: name, Requested: want})
			}
		}
	case namedSet == "all_jumps":
		for i, inst := range instructions {
			if inst.Type == instruction.ConditionalJump || inst.Type == instruction.UnconditionalJump {
				targets = append(targets, Target{Index: i, Name: labelOr(inst, "jump_"+inst.Address)})
			}
		}
	case namedSet == "all_calls":
		for i, inst := range instructions {
			if inst.Type == instruction.Call {
				targets = append(targets, Target{Index: i, Name: labelOr(inst, "call_"+inst.Address)})
			}
		}
	case namedSet == "all_labeled":
		for i, inst := range instructions {
			if inst.Label != "" {
				targets = append(targets, Target{Index: i, Name: inst.Label})
			}
		}
	case namedSet == "all" || namedSet == "":
		for i, inst := range instructions {
			targets = append(targets, Target{Index: i, Name: labelOr(inst, "inst_"+inst.Address)})
		}
	}

	return targets
}

func labelOr(inst instruction.Instruction, fallback string) string {
	if inst.Label != "" {
		return inst.Label
	}
	return fallback
}

// GenerateForTarget wraps Generate with the soft WindowTooShort
// degradation spec'd for targets too close to the end of the listing
// to reach MinLength: rather than a hard error, the caller gets zero
// variants back plus a descriptive warning to surface.
func GenerateForTarget(instructions []instruction.Instruction, targetName string, targetIdx int, opts signature.Options) ([]signature.Signature, *sigerrors.WindowTooShort, error) {
	variants, err := Generate(instructions, targetIdx, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(variants) > 0 {
		return variants, nil, nil
	}

	achieved := 0
	for i := targetIdx; i < len(instructions) && achieved < opts.MaxLength; i++ {
		achieved += instructions[i].Size
	}
	return nil, &sigerrors.WindowTooShort{Target: targetName, Achieved: achieved, Want: opts.MinLength}, nil
}

// GenerateTargeted is generate_targeted: it always anchors on the
// first instruction in the listing, synthesizing the target id
// "auto@<address>" when that instruction carries no label. Useful
// when the caller has pasted a specific snippet and wants a signature
// starting from its very first line, without naming a target.
func GenerateTargeted(instructions []instruction.Instruction, opts signature.Options) (string, []signature.Signature, *sigerrors.WindowTooShort, error) {
	if len(instructions) == 0 {
		return "", nil, nil, fmt.Errorf("generator: no instructions to target")
	}
	name := labelOr(instructions[0], "auto@"+instructions[0].Address)
	variants, warn, err := GenerateForTarget(instructions, name, 0, opts)
	return name, variants, warn, err
}

func resolveOne(instructions []instruction.Instruction, want string) (int, string, bool) {
	if strings.HasPrefix(want, "jump@") || strings.HasPrefix(want, "call@") {
		addr := want[strings.Index(want, "@")+1:]
		for i, inst := range instructions {
			if inst.Address == addr {
				return i, want, true
			}
		}
		return 0, "", false
	}

	for i, inst := range instructions {
		if inst.Label == want || inst.Address == want {
			return i, labelOr(inst, inst.Address), true
		}
	}
	return 0, "", false
}
