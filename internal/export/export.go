// Package export renders generated signatures into the on-disk formats
// a reverse engineer actually pastes into a tool: raw AOB text, a
// pattern+mask pair, an IDA Python script, a Cheat Engine table script,
// a C/C++ header, and x64dbg's no-space pattern form.
package export

import (
	"fmt"
	"strings"
	"time"

	"sigforge/internal/signature"
)

// Format names an export target format.
type Format string

const (
	FormatAOB         Format = "aob"
	FormatMask        Format = "mask"
	FormatIDA         Format = "ida"
	FormatCheatEngine Format = "cheatengine"
	FormatCpp         Format = "cpp"
	FormatX64dbg      Format = "x64dbg"
)

// TargetSignatures pairs a resolved target name with its generated
// variants, in the order they should be rendered.
type TargetSignatures struct {
	Name     string
	Variants []signature.Signature
}

// DefaultModuleName is used by the one format that embeds a module name
// (Cheat Engine) when the caller does not supply one.
const DefaultModuleName = "game.exe"

// Export renders signatures in the requested format. module is used
// only by formats that embed a module/process name.
func Export(targets []TargetSignatures, format Format, module string) (string, error) {
	if module == "" {
		module = DefaultModuleName
	}
	switch format {
	case FormatAOB:
		return exportAOB(targets), nil
	case FormatMask:
		return exportMask(targets), nil
	case FormatIDA:
		return exportIDA(targets, module), nil
	case FormatCheatEngine:
		return exportCheatEngine(targets, module), nil
	case FormatCpp:
		return exportCpp(targets, module), nil
	case FormatX64dbg:
		return exportX64dbg(targets), nil
	default:
		return "", fmt.Errorf("export: unknown format %q", format)
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

func safeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func exportAOB(targets []TargetSignatures) string {
	lines := []string{"// sigforge - AOB Export", "// Generated: " + timestamp(), ""}
	for _, target := range targets {
		lines = append(lines, fmt.Sprintf("// === %s ===", target.Name))
		for i, sig := range target.Variants {
			lines = append(lines, fmt.Sprintf("// Variant %d (%.0f%% unique, %s stability)", i+1, sig.UniquenessScore*100, sig.Stability))
			lines = append(lines, sig.Pattern)
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

func exportMask(targets []TargetSignatures) string {
	lines := []string{"// sigforge - Mask Format Export", "// Generated: " + timestamp(), ""}
	for _, target := range targets {
		lines = append(lines, fmt.Sprintf("// === %s ===", target.Name))
		for i, sig := range target.Variants {
			patternBytes := strings.ReplaceAll(strings.ReplaceAll(sig.Pattern, " ", ""), "??", "00")
			lines = append(lines, fmt.Sprintf("// Variant %d (%.0f%% unique)", i+1, sig.UniquenessScore*100))
			lines = append(lines, "Pattern: "+patternBytes)
			lines = append(lines, "Mask:    "+sig.Mask)
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

func exportIDA(targets []TargetSignatures, module string) string {
	lines := []string{
		`"""`,
		"sigforge Generated IDA Python Script",
		"Generated: " + timestamp(),
		"",
		"Usage: Run in IDA with File -> Script File",
		`"""`,
		"",
		"import idc",
		"import idaapi",
		"",
		"",
		"def find_pattern(pattern):",
		`    """`,
		"    Search for byte pattern in IDA.",
		`    Pattern format: "0F 84 ? ? ? ? 8B"`,
		`    """`,
		`    ida_pattern = pattern.replace("??", "?")`,
		"    ",
		"    addr = idc.find_binary(0, idc.SEARCH_DOWN, ida_pattern)",
		"    results = []",
		"    ",
		"    while addr != idc.BADADDR:",
		"        results.append(addr)",
		"        addr = idc.find_binary(addr + 1, idc.SEARCH_DOWN, ida_pattern)",
		"    ",
		"    return results",
		"",
		"",
		"# ========== PATTERNS ==========",
		"",
	}

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		sig := target.Variants[0]
		name := safeName(target.Name)

		lines = append(lines,
			"# "+target.Name,
			fmt.Sprintf("# Uniqueness: %.0f%%, Stability: %s", sig.UniquenessScore*100, sig.Stability),
			fmt.Sprintf("%s_PATTERN = %q", strings.ToUpper(name), sig.Pattern),
			"",
			fmt.Sprintf("def find_%s():", strings.ToLower(name)),
			fmt.Sprintf(`    """Find %s in the binary."""`, target.Name),
			fmt.Sprintf("    return find_pattern(%s_PATTERN)", strings.ToUpper(name)),
			"",
			"",
		)
	}

	lines = append(lines,
		"# ========== MAIN ==========",
		"",
		`if __name__ == "__main__":`,
		`    print("sigforge Pattern Scanner")`,
		`    print("=" * 40)`,
	)

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		name := strings.ToLower(safeName(target.Name))
		lines = append(lines,
			"    ",
			fmt.Sprintf("    matches = find_%s()", name),
			fmt.Sprintf(`    print(f"%s: {len(matches)} match(es)")`, target.Name),
			"    for addr in matches:",
			`        print(f"  0x{addr:08X}")`,
		)
	}

	return strings.Join(lines, "\n")
}

func exportCheatEngine(targets []TargetSignatures, module string) string {
	lines := []string{
		"[ENABLE]",
		"// sigforge Generated Cheat Engine Script",
		"// Generated: " + timestamp(),
		"",
	}

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		sig := target.Variants[0]
		name := safeName(target.Name)
		lines = append(lines,
			fmt.Sprintf("// %s (%.0f%% unique)", target.Name, sig.UniquenessScore*100),
			fmt.Sprintf("aobscanmodule(%s,%s,%s)", name, module, strings.ReplaceAll(sig.Pattern, " ", "")),
			fmt.Sprintf("registersymbol(%s)", name),
			"",
		)
	}

	lines = append(lines, "// ========== CODE CHANGES ==========", "")

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		name := safeName(target.Name)
		lines = append(lines,
			name+":",
			"  // Add your code modifications here",
			"  // db 90 90 90 90 90 90  // NOP",
			"",
		)
	}

	lines = append(lines, "", "[DISABLE]", "")

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		sig := target.Variants[0]
		name := safeName(target.Name)
		originalBytes := strings.ReplaceAll(sig.Pattern, "??", "XX")
		preview := originalBytes
		if len(preview) > 23 {
			preview = preview[:23]
		}
		lines = append(lines,
			name+":",
			"  // Restore original bytes",
			"  // db "+preview+"...",
			"",
			fmt.Sprintf("unregistersymbol(%s)", name),
			"",
		)
	}

	return strings.Join(lines, "\n")
}

func exportCpp(targets []TargetSignatures, module string) string {
	lines := []string{
		"/*",
		" * sigforge Generated C/C++ Header",
		" * Generated: " + timestamp(),
		" *",
		" * Usage:",
		" *   void* addr = FindPattern(module, Pattern_Name, Mask_Name, Size_Name);",
		" */",
		"",
		"#ifndef SIGFORGE_PATTERNS_H",
		"#define SIGFORGE_PATTERNS_H",
		"",
		"#include <stdint.h>",
		"",
	}

	for _, target := range targets {
		if len(target.Variants) == 0 {
			continue
		}
		sig := target.Variants[0]
		name := strings.ToUpper(safeName(target.Name))

		tokens := strings.Fields(sig.Pattern)
		byteParts := make([]string, len(tokens))
		for i, tok := range tokens {
			if tok == "??" {
				byteParts[i] = "0x00"
			} else {
				byteParts[i] = "0x" + tok
			}
		}

		var byteLines []string
		for i := 0; i < len(byteParts); i += 8 {
			end := i + 8
			if end > len(byteParts) {
				end = len(byteParts)
			}
			byteLines = append(byteLines, "    "+strings.Join(byteParts[i:end], ", "))
		}

		lines = append(lines,
			"// "+target.Name,
			fmt.Sprintf("// Uniqueness: %.0f%%, Stability: %s", sig.UniquenessScore*100, sig.Stability),
			fmt.Sprintf("static const unsigned char %s_PATTERN[] = {", name),
			strings.Join(byteLines, ",\n"),
			"};",
			"",
			fmt.Sprintf("static const char %s_MASK[] = %q;", name, sig.Mask),
			"",
			fmt.Sprintf("#define %s_SIZE %d", name, sig.Length),
			"",
			"",
		)
	}

	lines = append(lines,
		"/*",
		" * Example pattern scanner function:",
		" *",
		" * void* FindPattern(HMODULE module, const unsigned char* pattern,",
		" *                   const char* mask, size_t size) {",
		" *     MODULEINFO info;",
		" *     GetModuleInformation(GetCurrentProcess(), module, &info, sizeof(info));",
		" *     ",
		" *     unsigned char* base = (unsigned char*)info.lpBaseOfDll;",
		" *     size_t moduleSize = info.SizeOfImage;",
		" *     ",
		" *     for (size_t i = 0; i < moduleSize - size; i++) {",
		" *         bool found = true;",
		" *         for (size_t j = 0; j < size; j++) {",
		" *             if (mask[j] == 'x' && base[i + j] != pattern[j]) {",
		" *                 found = false;",
		" *                 break;",
		" *             }",
		" *         }",
		" *         if (found) return base + i;",
		" *     }",
		" *     return nullptr;",
		" * }",
		" */",
		"",
		"#endif // SIGFORGE_PATTERNS_H",
	)

	return strings.Join(lines, "\n")
}

func exportX64dbg(targets []TargetSignatures) string {
	lines := []string{
		"// sigforge - x64dbg Pattern Export",
		"// Generated: " + timestamp(),
		"//",
		"// Usage: Ctrl+B (Search for Pattern) in x64dbg",
		"// Paste the pattern without spaces",
		"",
	}

	for _, target := range targets {
		lines = append(lines, fmt.Sprintf("// === %s ===", target.Name))
		for i, sig := range target.Variants {
			pattern := strings.ReplaceAll(sig.Pattern, " ", "")
			lines = append(lines,
				fmt.Sprintf("// Variant %d (%.0f%% unique)", i+1, sig.UniquenessScore*100),
				pattern,
				"",
			)
		}
	}

	return strings.Join(lines, "\n")
}
