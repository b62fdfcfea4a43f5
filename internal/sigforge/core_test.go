package sigforge

import (
	"strings"
	"testing"

	"sigforge/internal/parser"
	"sigforge/internal/signature"
)

const sampleListing = "0046751D | 55 | push ebp | sub_46751D\n" +
	"0046751E | 8B EC | mov ebp,esp\n" +
	"00467520 | 83 EC 10 | sub esp,0x10\n" +
	"00467523 | 33 C0 | xor eax,eax\n" +
	"00467525 | 0F 84 12 34 56 78 | je 00467600\n"

func TestBatchDefaultsToAllLabeled(t *testing.T) {
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20

	result, err := Batch(sampleListing, parser.Options{Format: parser.FormatX64dbg}, nil, "", opts)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(result.Targets) != 1 {
		t.Fatalf("got %d targets, want 1 (only sub_46751D is labeled)", len(result.Targets))
	}
	if result.Targets[0].Name != "sub_46751D" {
		t.Errorf("target name = %q", result.Targets[0].Name)
	}
	if len(result.Targets[0].Variants) == 0 {
		t.Error("expected at least one generated variant")
	}
}

func TestBatchReportsUnresolvedTargets(t *testing.T) {
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20

	result, err := Batch(sampleListing, parser.Options{Format: parser.FormatX64dbg}, []string{"sub_46751D", "does_not_exist"}, "", opts)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(result.NotFound) != 1 || result.NotFound[0] != "does_not_exist" {
		t.Errorf("NotFound = %v, want [does_not_exist]", result.NotFound)
	}
}

func TestBatchRequestedByAddressWithLabelIsNotUnresolved(t *testing.T) {
	// sub_46751D is requested by its raw address, not its label, but
	// the instruction at that address also carries a label. The
	// resolved target's Name becomes the label, not the requested
	// address; NotFound must still be empty.
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20

	result, err := Batch(sampleListing, parser.Options{Format: parser.FormatX64dbg}, []string{"0046751D"}, "", opts)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(result.NotFound) != 0 {
		t.Errorf("NotFound = %v, want none", result.NotFound)
	}
	if len(result.Targets) != 1 || result.Targets[0].Name != "sub_46751D" {
		t.Fatalf("Targets = %+v, want one target named sub_46751D", result.Targets)
	}
}

func TestGenerateTargetedAnchorsOnFirstInstruction(t *testing.T) {
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20

	result, err := GenerateTargeted(sampleListing, parser.Options{Format: parser.FormatX64dbg}, opts)
	if err != nil {
		t.Fatalf("GenerateTargeted() error = %v", err)
	}
	if result.Target.Name != "sub_46751D" {
		t.Errorf("target name = %q, want sub_46751D (first instruction's label)", result.Target.Name)
	}
	if len(result.Target.Variants) == 0 {
		t.Error("expected at least one generated variant")
	}
}

func TestSmartGenerateSkipsLowScoringAnchors(t *testing.T) {
	opts := signature.DefaultOptions()
	opts.MinLength = 4
	opts.MaxLength = 20

	result, err := SmartGenerate(sampleListing, parser.Options{Format: parser.FormatX64dbg}, opts, 3)
	if err != nil {
		t.Fatalf("SmartGenerate() error = %v", err)
	}
	if len(result.Analysis.TopTargets) == 0 {
		t.Fatal("expected the smart analyzer to rank at least one anchor")
	}
	if len(result.Targets) > 3 {
		t.Errorf("got %d targets, want at most 3", len(result.Targets))
	}
	for _, target := range result.Targets {
		if len(target.Variants) == 0 {
			t.Errorf("target %q has no generated variants", target.Name)
		}
		if !strings.Contains(target.Name, "@") {
			t.Errorf("target name %q, want a mnemonic@address or smart@address form", target.Name)
		}
	}
}

func TestRecommendUsesLabelsWhenPresent(t *testing.T) {
	result, err := Recommend(sampleListing, parser.Options{Format: parser.FormatX64dbg})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(result.Recommended) != 1 || result.Recommended[0] != "sub_46751D" {
		t.Errorf("Recommended = %v, want [sub_46751D]", result.Recommended)
	}
}

func TestRecommendFallsBackToSmartAnalysis(t *testing.T) {
	unlabeled := "00467520 | 83 EC 10 | sub esp,0x10\n" +
		"00467523 | 33 C0 | xor eax,eax\n" +
		"00467525 | 3B C1 | cmp eax,ecx\n" +
		"00467527 | 8B 45 FC | mov eax,[ebp-4]\n"

	result, err := Recommend(unlabeled, parser.Options{Format: parser.FormatX64dbg})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(result.Stats.ByType) == 0 {
		t.Error("expected non-empty stats")
	}
	if len(result.Recommended) == 0 {
		t.Error("expected smart-analysis anchors when the listing has no labels")
	}
}
