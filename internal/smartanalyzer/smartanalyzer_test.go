package smartanalyzer

import (
	"testing"

	"sigforge/internal/analyzer"
	"sigforge/internal/instruction"
)

func mkInst(addr string, bytes []byte, mnemonic, operands string) instruction.Instruction {
	inst := instruction.Instruction{
		Address:  addr,
		Bytes:    bytes,
		Size:     len(bytes),
		Mnemonic: mnemonic,
		Operands: operands,
	}
	inst.Type = analyzer.Classify(mnemonic)
	inst.OperandsNormalized = operands
	inst.Volatility = analyzer.Volatility(inst.Type, inst.OperandsNormalized)
	inst.WildcardPositions = analyzer.AnalyzeWildcardPositions(inst)
	return inst
}

func stableProgram() []instruction.Instruction {
	return []instruction.Instruction{
		mkInst("00401000", []byte{0x55}, "push", "ebp"),
		mkInst("00401001", []byte{0x8B, 0xEC}, "mov", "ebp, esp"),
		mkInst("00401003", []byte{0x83, 0xEC, 0x10}, "sub", "esp, 0x10"),
		mkInst("00401006", []byte{0x33, 0xC0}, "xor", "eax, eax"),
		mkInst("00401008", []byte{0x89, 0x45, 0xFC}, "mov", "[ebp-4], eax"),
		mkInst("0040100B", []byte{0x3B, 0xC1}, "cmp", "eax, ecx"),
		mkInst("0040100D", []byte{0x0F, 0x84, 0x00, 0x00, 0x00, 0x00}, "je", "00401020"),
		mkInst("00401013", []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call", "00401050"),
		mkInst("00401018", []byte{0x8B, 0xE5}, "mov", "esp, ebp"),
		mkInst("0040101A", []byte{0x5D}, "pop", "ebp"),
		mkInst("0040101B", []byte{0xC3}, "ret", ""),
	}
}

func TestAnalyzeReturnsTargetsSortedDescending(t *testing.T) {
	prog := stableProgram()
	result := Analyze(prog, DefaultOptions())

	if len(result.TopTargets) == 0 {
		t.Fatal("expected at least one target")
	}
	for i := 1; i < len(result.TopTargets); i++ {
		if result.TopTargets[i].Score > result.TopTargets[i-1].Score {
			t.Fatalf("targets not sorted descending at %d", i)
		}
	}
	if result.TotalInstructions != len(prog) {
		t.Errorf("TotalInstructions = %d, want %d", result.TotalInstructions, len(prog))
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	result := Analyze(nil, DefaultOptions())
	if len(result.TopTargets) != 0 || len(result.StableRegions) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.AnalysisSummary != "No instructions to analyze" {
		t.Errorf("summary = %q", result.AnalysisSummary)
	}
}

func TestAnalyzeVolatileJumpScoresLowerThanStableMov(t *testing.T) {
	prog := stableProgram()
	result := Analyze(prog, DefaultOptions())

	scoreFor := func(addr string) (float64, bool) {
		for _, target := range result.TopTargets {
			if target.Address == addr {
				return target.Score, true
			}
		}
		return 0, false
	}

	jeScore, jeFound := scoreFor("0040100D")
	movScore, movFound := scoreFor("00401001")
	if jeFound && movFound && jeScore >= movScore {
		t.Errorf("je score %v should be lower than mov score %v", jeScore, movScore)
	}
}

func TestScoreWeightsSumToTotal(t *testing.T) {
	prog := stableProgram()
	for i, inst := range prog {
		before := prog[max0(0, i-5):i]
		after := prog[i+1:min0(len(prog), i+10)]
		total, stability, uniqueness, context, _, _ := scoreInstruction(inst, before, after, prog)
		want := stability*0.45 + uniqueness*0.30 + context*0.25
		if total != want {
			t.Errorf("instruction %d: total=%v want=%v", i, total, want)
		}
	}
}

func TestFindStableRegionsRequiresMinimumRun(t *testing.T) {
	prog := stableProgram()
	regions := FindStableRegions(prog, 3, 60.0)
	for _, r := range regions {
		runLen := r.EndIndex - r.StartIndex + 1
		if runLen < 3 {
			t.Errorf("region %+v shorter than minimum run of 3", r)
		}
		if r.AvgScore < 60.0 {
			t.Errorf("region %+v below stability threshold", r)
		}
	}
}

func max0(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min0(a, b int) int {
	if a < b {
		return a
	}
	return b
}
