package export

import (
	"strings"
	"testing"

	"sigforge/internal/signature"
)

func sampleTargets() []TargetSignatures {
	zero := byte(0x0F)
	one := byte(0x84)
	return []TargetSignatures{
		{
			Name: "sub_401000",
			Variants: []signature.Signature{
				{
					Pattern:         "0F 84 ?? ?? ?? ??",
					Mask:            "xx????",
					Bytes:           []*byte{&zero, &one, nil, nil, nil, nil},
					Length:          6,
					WildcardCount:   4,
					UniquenessScore: 0.82,
					Stability:       signature.StabilityMedium,
					Strategy:        "Conservative",
				},
			},
		},
	}
}

func TestExportFormats(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		contains []string
	}{
		{"aob", FormatAOB, []string{"AOB Export", "0F 84 ?? ?? ?? ??", "82% unique"}},
		{"mask", FormatMask, []string{"Pattern: 0F8400000000", "Mask:    xx????"}},
		{"ida", FormatIDA, []string{"SUB_401000_PATTERN", "def find_sub_401000"}},
		{"cheatengine", FormatCheatEngine, []string{"aobscanmodule(sub_401000,game.exe,0F84????????)", "[DISABLE]"}},
		{"cpp", FormatCpp, []string{"SUB_401000_PATTERN", "0x0F, 0x84, 0x00, 0x00, 0x00, 0x00", "#define SUB_401000_SIZE 6"}},
		{"x64dbg", FormatX64dbg, []string{"0F84????????"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Export(sampleTargets(), tt.format, "")
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q\n---\n%s", want, out)
				}
			}
		})
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := Export(sampleTargets(), Format("bogus"), ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportDefaultsModuleName(t *testing.T) {
	out, err := Export(sampleTargets(), FormatCheatEngine, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(out, DefaultModuleName) {
		t.Errorf("expected default module name %q in output", DefaultModuleName)
	}
}
