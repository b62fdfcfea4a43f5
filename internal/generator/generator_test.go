package generator

import (
	"strings"
	"testing"

	"sigforge/internal/analyzer"
	"sigforge/internal/instruction"
	"sigforge/internal/signature"
)

func mkInst(addr string, bytes []byte, mnemonic, operands, label string) instruction.Instruction {
	inst := instruction.Instruction{
		Address:  addr,
		Bytes:    bytes,
		Size:     len(bytes),
		Mnemonic: mnemonic,
		Operands: operands,
		Label:    label,
	}
	inst.Type = analyzer.Classify(mnemonic)
	inst.OperandsNormalized = strings.ToLower(operands)
	inst.Volatility = analyzer.Volatility(inst.Type, inst.OperandsNormalized)
	inst.WildcardPositions = analyzer.AnalyzeWildcardPositions(inst)
	inst.ByteCategories = analyzer.ClassifyBytes(inst)
	return inst
}

func sampleProgram() []instruction.Instruction {
	return []instruction.Instruction{
		mkInst("00401000", []byte{0x55}, "push", "ebp", "sub_401000"),
		mkInst("00401001", []byte{0x8B, 0xEC}, "mov", "ebp, esp", ""),
		mkInst("00401003", []byte{0x83, 0xEC, 0x10}, "sub", "esp, 0x10", ""),
		mkInst("00401006", []byte{0x8B, 0x45, 0x08}, "mov", "eax, [ebp+8]", ""),
		mkInst("00401009", []byte{0x85, 0xC0}, "test", "eax, eax", ""),
		mkInst("0040100B", []byte{0x0F, 0x84, 0x10, 0x00, 0x00, 0x00}, "je", "00401021", ""),
		mkInst("00401011", []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call", "00401050", "call_site"),
		mkInst("00401016", []byte{0x8B, 0xE5}, "mov", "esp, ebp", ""),
		mkInst("00401018", []byte{0x5D}, "pop", "ebp", ""),
		mkInst("00401019", []byte{0xC3}, "ret", "", ""),
	}
}

func TestGenerateRoundTripBytes(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 10

	variants, err := Generate(prog, 5, opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(variants) == 0 {
		t.Fatal("expected at least one variant")
	}

	for _, v := range variants {
		if len(v.Bytes) != v.Length {
			t.Errorf("strategy %s: len(Bytes)=%d != Length=%d", v.Strategy, len(v.Bytes), v.Length)
		}
		if len(v.Mask) != v.Length {
			t.Errorf("strategy %s: len(Mask)=%d != Length=%d", v.Strategy, len(v.Mask), v.Length)
		}
		wildcards := strings.Count(v.Mask, "?")
		if wildcards != v.WildcardCount {
			t.Errorf("strategy %s: mask wildcards=%d != WildcardCount=%d", v.Strategy, wildcards, v.WildcardCount)
		}
		patternTokens := strings.Fields(v.Pattern)
		if len(patternTokens) != v.Length {
			t.Errorf("strategy %s: pattern tokens=%d != Length=%d", v.Strategy, len(patternTokens), v.Length)
		}
	}
}

func TestGenerateJumpIsWildcardedByDefault(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 6
	opts.MaxLength = 6
	opts.ContextBefore = 0
	opts.ContextAfter = 0

	if _, err := Generate(prog, 5, opts); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Every strategy yields the same pattern for this lone je, so
	// Generate's deduplication keeps only the first one ("Minimal");
	// build the Conservative variant directly from the default rules.
	conservative, ok := generateWithRules(prog, 5, opts.WildcardRules, opts, "Conservative")
	if !ok {
		t.Fatal("Conservative variant not produced")
	}
	if conservative.WildcardCount == 0 {
		t.Error("expected the je's relative offset to be wildcarded")
	}
	if !strings.Contains(conservative.Pattern, "??") {
		t.Errorf("pattern = %q, want wildcards", conservative.Pattern)
	}
}

func TestGenerateMinimalWildcardsOnlyControlFlow(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 3
	opts.MaxLength = 3
	opts.ContextBefore = 0
	opts.ContextAfter = 0

	variants, err := Generate(prog, 3, opts) // mov eax,[ebp+8]
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, v := range variants {
		if v.Strategy == "Minimal" && v.WildcardCount != 0 {
			t.Errorf("Minimal strategy wildcarded a non-control-flow instruction: %q", v.Pattern)
		}
	}
}

func TestCalculatePatternSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 string
		want   float64
	}{
		{"identical", "0F 84 ?? ??", "0F 84 ?? ??", 1.0},
		{"completely different", "AA BB", "CC DD", 0.0},
		{"one wildcard half match", "0F ??", "0F 84", 0.75},
		{"both empty", "", "", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculatePatternSimilarity(tt.p1, tt.p2)
			if got != tt.want {
				t.Errorf("calculatePatternSimilarity(%q, %q) = %v, want %v", tt.p1, tt.p2, got, tt.want)
			}
		})
	}
}

func TestSimilarityDeduplicateDropsNearDuplicates(t *testing.T) {
	variants := []signature.Signature{
		{Pattern: "0F 84 ?? ?? ?? ??", UniquenessScore: 0.9},
		{Pattern: "0F 84 ?? ?? ?? ??", UniquenessScore: 0.9}, // exact duplicate
		{Pattern: "AA BB CC DD EE FF", UniquenessScore: 0.95}, // wholly different
	}
	unique := similarityDeduplicate(variants, similarityDedupeThreshold)
	if len(unique) != 2 {
		t.Fatalf("got %d unique variants, want 2", len(unique))
	}
}

func TestGenerateSortedByUniquenessDescending(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20
	opts.Variants = 50

	variants, err := Generate(prog, 5, opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for i := 1; i < len(variants); i++ {
		if variants[i].UniquenessScore > variants[i-1].UniquenessScore {
			t.Fatalf("variants not sorted descending at index %d: %v > %v", i, variants[i].UniquenessScore, variants[i-1].UniquenessScore)
		}
	}
}

func TestGenerateRespectsVariantCap(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20
	opts.Variants = 3

	variants, err := Generate(prog, 5, opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(variants) > 3 {
		t.Fatalf("got %d variants, want at most 3", len(variants))
	}
}

func TestGenerateRejectsInvertedLengthRange(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 50
	opts.MaxLength = 10

	if _, err := Generate(prog, 0, opts); err == nil {
		t.Error("expected a config error for min_length > max_length")
	}
}

func TestGenerateForTargetReportsWindowTooShort(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 200
	opts.MaxLength = 200

	variants, warning, err := GenerateForTarget(prog, "ret_site", len(prog)-1, opts)
	if err != nil {
		t.Fatalf("GenerateForTarget() error = %v", err)
	}
	if len(variants) != 0 {
		t.Fatalf("expected no variants, got %d", len(variants))
	}
	if warning == nil {
		t.Fatal("expected a WindowTooShort warning")
	}
	if warning.Target != "ret_site" {
		t.Errorf("warning.Target = %q, want ret_site", warning.Target)
	}
}

func TestGenerateTargetedAnchorsOnFirstInstruction(t *testing.T) {
	prog := sampleProgram()
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 10

	name, variants, warn, err := GenerateTargeted(prog, opts)
	if err != nil {
		t.Fatalf("GenerateTargeted() error = %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected window warning: %v", warn)
	}
	if name != "sub_401000" {
		t.Errorf("name = %q, want sub_401000 (first instruction's label)", name)
	}
	if len(variants) == 0 {
		t.Fatal("expected at least one signature variant")
	}
}

func TestGenerateTargetedSynthesizesAutoNameWhenUnlabeled(t *testing.T) {
	prog := sampleProgram()[1:]
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 10

	name, _, _, err := GenerateTargeted(prog, opts)
	if err != nil {
		t.Fatalf("GenerateTargeted() error = %v", err)
	}
	if name != "auto@00401001" {
		t.Errorf("name = %q, want auto@00401001", name)
	}
}

func TestGenerateTargetedRejectsEmptyInstructions(t *testing.T) {
	opts := signature.DefaultOptions()
	if _, _, _, err := GenerateTargeted(nil, opts); err == nil {
		t.Fatal("expected an error for empty instruction list")
	}
}

func TestFindTargetsAllLabeled(t *testing.T) {
	prog := sampleProgram()
	targets := FindTargets(prog, nil, "all_labeled")
	if len(targets) != 2 {
		t.Fatalf("got %d labeled targets, want 2", len(targets))
	}
	names := map[string]bool{}
	for _, target := range targets {
		names[target.Name] = true
	}
	if !names["sub_401000"] || !names["call_site"] {
		t.Errorf("targets = %+v, missing expected labels", targets)
	}
}

func TestFindTargetsByLabelAndQualifiedAddress(t *testing.T) {
	prog := sampleProgram()

	targets := FindTargets(prog, []string{"sub_401000", "call@00401011"}, "")
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}
	if targets[0].Index != 0 {
		t.Errorf("label target index = %d, want 0", targets[0].Index)
	}
	if targets[1].Index != 6 {
		t.Errorf("call@ target index = %d, want 6", targets[1].Index)
	}
}

func TestFindTargetsRequestedByAddressTracksOriginalString(t *testing.T) {
	prog := sampleProgram()

	// 00401000 is requested by raw address, but that instruction also
	// carries the label sub_401000. Name should resolve to the label
	// (matching the generator's own name-or-address preference), while
	// Requested must still echo back the address the caller asked for,
	// so a not-found comparison against the original selection string
	// doesn't misfire.
	targets := FindTargets(prog, []string{"00401000"}, "")
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	if targets[0].Name != "sub_401000" {
		t.Errorf("target name = %q, want sub_401000", targets[0].Name)
	}
	if targets[0].Requested != "00401000" {
		t.Errorf("target requested = %q, want 00401000", targets[0].Requested)
	}
}

func TestFindTargetsAllJumpsAndCalls(t *testing.T) {
	prog := sampleProgram()

	jumps := FindTargets(prog, nil, "all_jumps")
	if len(jumps) != 1 {
		t.Fatalf("got %d jump targets, want 1", len(jumps))
	}

	calls := FindTargets(prog, nil, "all_calls")
	if len(calls) != 1 || calls[0].Name != "call_site" {
		t.Fatalf("got %+v, want 1 call target named call_site", calls)
	}
}
