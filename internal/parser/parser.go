// Package parser turns raw disassembler text into a slice of
// instruction.Instruction values. Three input formats are understood:
// x64dbg's pipe-separated listing, Cheat Engine's dash-separated
// listing, and a bare hex byte stream decoded with an embedded x86
// decoder. Format is auto-detected unless the caller pins one.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/ianlancetaylor/demangle"

	"sigforge/internal/analyzer"
	sigerrors "sigforge/internal/sigforge/errors"
	"sigforge/internal/instruction"
)

// Format names an input disassembly listing format.
type Format string

const (
	FormatAuto        Format = "auto"
	FormatX64dbg      Format = "x64dbg"
	FormatCheatEngine Format = "cheatengine"
	FormatHex         Format = "hex"
)

// maxInstructionBytes is the longest an x86 instruction encoding can be.
const maxInstructionBytes = 15

// Result is the output of Parse: the decoded instructions, harvested
// labels, the format that was used (resolved, never "auto"), and
// aggregate stats including anything dropped along the way.
type Result struct {
	Instructions []instruction.Instruction
	Labels       []string
	Format       Format
	Module       string
	Stats        instruction.Stats
	Invalid      []sigerrors.InvalidBytes
}

// Options controls parsing behavior.
type Options struct {
	Format   Format // FormatAuto to auto-detect
	Demangle bool   // demangle Itanium/Rust-mangled labels when present
}

var (
	hexBytePattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(\s+[0-9A-Fa-f]{2})*$`)
	hexBlobPattern = regexp.MustCompile(`^[0-9A-Fa-f\s]+$`)
)

// Parse decodes text according to opts.Format, auto-detecting the
// format first when it is FormatAuto or empty. Returns a ParseError
// only when no line of the input matched any recognized format — every
// other malformed line is dropped and recorded in Result.Invalid.
func Parse(text string, opts Options) (Result, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(text)
	}

	var (
		instructions []instruction.Instruction
		labels       []string
		invalid      []sigerrors.InvalidBytes
		module       string
		err          error
	)

	switch format {
	case FormatX64dbg:
		instructions, labels, invalid, err = parseX64dbg(text)
	case FormatCheatEngine:
		instructions, labels, invalid, module, err = parseCheatEngine(text)
	case FormatHex:
		instructions, invalid, err = parseHex(text)
	default:
		return Result{}, &sigerrors.ParseError{Format: string(format), Reason: "unrecognized format"}
	}
	if err != nil {
		return Result{}, err
	}
	if len(instructions) == 0 {
		return Result{}, &sigerrors.ParseError{Format: string(format), Reason: "no line matched this format"}
	}

	if opts.Demangle {
		for i := range instructions {
			if instructions[i].Label != "" {
				instructions[i].Label = demangleLabel(instructions[i].Label)
			}
		}
	}

	for i := range instructions {
		inst := &instructions[i]
		inst.Type = analyzer.Classify(inst.Mnemonic)
		inst.OperandsNormalized = normalizeMemoryRef(inst.Operands)
		inst.Volatility = analyzer.Volatility(inst.Type, inst.OperandsNormalized)
		inst.WildcardPositions = analyzer.AnalyzeWildcardPositions(*inst)
		inst.ByteCategories = analyzer.ClassifyBytes(*inst)
	}

	return Result{
		Instructions: instructions,
		Labels:       labels,
		Format:       format,
		Module:       module,
		Stats:        instruction.CalculateStats(instructions, labels, len(invalid)),
		Invalid:      invalid,
	}, nil
}

// detectFormat inspects the first handful of non-blank, non-comment
// lines and picks the format whose separator shows up most.
func detectFormat(text string) Format {
	lines := strings.Split(text, "\n")
	checked, pipes, dashes := 0, 0, 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || isCommentLine(line) {
			continue
		}
		checked++
		if strings.Contains(line, "|") {
			pipes++
		} else if strings.Contains(line, " - ") {
			dashes++
		}
		if checked >= 20 {
			break
		}
	}
	if pipes > 0 && pipes >= dashes {
		return FormatX64dbg
	}
	if dashes > 0 {
		return FormatCheatEngine
	}
	return FormatHex
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#")
}

// parseBytesString turns a hex byte string, whitespace-separated or
// glued ("0F84 79050000"), into a []byte, returning an error describing
// why it was rejected.
func parseBytesString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty byte field")
	}
	joined := strings.Join(strings.Fields(s), "")
	if len(joined)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in byte field %q", s)
	}
	out := make([]byte, 0, len(joined)/2)
	for i := 0; i < len(joined); i += 2 {
		tok := joined[i : i+2]
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q: %w", tok, err)
		}
		out = append(out, byte(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no bytes parsed")
	}
	if len(out) > maxInstructionBytes {
		return nil, fmt.Errorf("%d bytes exceeds the %d-byte x86 instruction limit", len(out), maxInstructionBytes)
	}
	return out, nil
}

// labelFieldPattern matches an x64dbg trailing pipe field that looks
// like a label rather than free-form comment text.
var labelFieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseX64dbg parses x64dbg's clipboard-copy format:
//
//	0046751D | 0F 84 12 34 56 78 | je 00467400
//	00B27AB0 | 0F84 79050000     | je apr24.2020.B2802F | Lawnmower_A
//
// The optional fourth pipe-delimited field is a label when it matches
// a bare identifier; anything else in that field is dropped.
func parseX64dbg(text string) ([]instruction.Instruction, []string, []sigerrors.InvalidBytes, error) {
	var (
		instructions []instruction.Instruction
		labels       []string
		invalid      []sigerrors.InvalidBytes
	)

	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isCommentLine(line) {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: "expected 3 pipe-separated fields"})
			continue
		}

		address := normalizeAddress(strings.TrimSpace(parts[0]))
		bytesField := strings.TrimSpace(parts[1])
		disasm := strings.TrimSpace(parts[2])

		label := ""
		if len(parts) > 3 {
			comment := strings.TrimSpace(strings.Join(parts[3:], "|"))
			if labelFieldPattern.MatchString(comment) {
				label = comment
				labels = append(labels, label)
			}
		}

		b, err := parseBytesString(bytesField)
		if err != nil {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: err.Error()})
			continue
		}

		mnemonic, operands := splitMnemonic(disasm)
		if mnemonic == "" {
			mnemonic = "db"
		}
		instructions = append(instructions, instruction.Instruction{
			Address:  address,
			Bytes:    b,
			Size:     len(b),
			Mnemonic: mnemonic,
			Operands: operands,
			Label:    label,
		})
	}

	return instructions, labels, invalid, nil
}

// ceLinePattern recognizes a Cheat Engine dissect line, with either a
// bare address or a "Module+Offset" address.
var ceLinePattern = regexp.MustCompile(`^([0-9A-Fa-f]+|[A-Za-z0-9_.]+\+[0-9A-Fa-f]+)\s*-\s*([0-9A-Fa-f\s]+)\s*-\s*(.+)$`)

// parseCheatEngine parses Cheat Engine's dissect-code export:
//
//	46751D - 0F 84 12 34 56 78 - je 00467400
//	Apr24.2020.exe+46751D - 0F 84 ... - je mymodule.Func
func parseCheatEngine(text string) ([]instruction.Instruction, []string, []sigerrors.InvalidBytes, string, error) {
	var (
		instructions []instruction.Instruction
		labels       []string
		invalid      []sigerrors.InvalidBytes
		module       string
	)

	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isCommentLine(line) {
			continue
		}
		m := ceLinePattern.FindStringSubmatch(line)
		if m == nil {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: "did not match Cheat Engine dissect format"})
			continue
		}

		rawAddr := m[1]
		address, mod := parseCEAddress(rawAddr)
		if mod != "" && module == "" {
			module = mod
		}

		b, err := parseBytesString(m[2])
		if err != nil {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: err.Error()})
			continue
		}

		disasm := strings.TrimSpace(m[3])
		mnemonic, operands := splitMnemonic(disasm)
		if mnemonic == "" {
			mnemonic = "db"
		}
		instructions = append(instructions, instruction.Instruction{
			Address:    address,
			RawAddress: rawAddr,
			Bytes:      b,
			Size:       len(b),
			Mnemonic:   mnemonic,
			Operands:   operands,
		})
	}

	return instructions, labels, invalid, module, nil
}

// parseCEAddress splits a Cheat Engine "Module+Offset" address into a
// normalized 8-digit hex address and the module name, or normalizes a
// bare hex address with no module.
func parseCEAddress(raw string) (address, module string) {
	if idx := strings.LastIndex(raw, "+"); idx >= 0 {
		module = raw[:idx]
		return normalizeAddress(raw[idx+1:]), module
	}
	return normalizeAddress(raw), ""
}

// parseHex decodes a bare hex byte stream (no addresses, no mnemonics)
// using an embedded 32-bit x86 decoder, synthesizing sequential
// addresses starting at 00000000.
func parseHex(text string) ([]instruction.Instruction, []sigerrors.InvalidBytes, error) {
	var (
		blob    []byte
		invalid []sigerrors.InvalidBytes
	)
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isCommentLine(line) {
			continue
		}
		line = strings.ReplaceAll(line, ",", " ")
		if !hexBlobPattern.MatchString(strings.ReplaceAll(line, " ", "")) {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: "contains non-hex characters"})
			continue
		}
		b, err := parseRawHex(line)
		if err != nil {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: lineNo + 1, Reason: err.Error()})
			continue
		}
		blob = append(blob, b...)
	}
	if len(blob) == 0 {
		return nil, invalid, nil
	}

	var instructions []instruction.Instruction
	offset := 0
	for offset < len(blob) {
		inst, err := x86asm.Decode(blob[offset:], 32)
		if err != nil || inst.Len == 0 {
			invalid = append(invalid, sigerrors.InvalidBytes{Line: 0, Reason: fmt.Sprintf("undecodable byte at offset %d", offset)})
			offset++
			continue
		}
		raw := blob[offset : offset+inst.Len]
		mnemonic, operands := splitMnemonic(x86asm.IntelSyntax(inst, uint64(offset), nil))
		instructions = append(instructions, instruction.Instruction{
			Address:  fmt.Sprintf("%08X", offset),
			Bytes:    append([]byte(nil), raw...),
			Size:     inst.Len,
			Mnemonic: mnemonic,
			Operands: operands,
		})
		offset += inst.Len
	}

	return instructions, invalid, nil
}

func parseRawHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	joined := strings.Join(fields, "")
	if len(joined)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits")
	}
	out := make([]byte, len(joined)/2)
	for i := range out {
		v, err := strconv.ParseUint(joined[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

func splitMnemonic(disasm string) (mnemonic, operands string) {
	disasm = strings.TrimSpace(disasm)
	idx := strings.IndexAny(disasm, " \t")
	if idx < 0 {
		return disasm, ""
	}
	return disasm[:idx], strings.TrimSpace(disasm[idx+1:])
}

func normalizeAddress(addr string) string {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	addr = strings.ToUpper(strings.TrimSpace(addr))
	if len(addr) < 8 {
		addr = strings.Repeat("0", 8-len(addr)) + addr
	}
	return addr
}

// normalizeMemoryRef lowercases register names inside a memory operand
// and collapses incidental whitespace, so downstream volatility and
// wildcard heuristics can pattern-match reliably regardless of the
// source disassembler's casing conventions.
func normalizeMemoryRef(operands string) string {
	norm := strings.ToLower(operands)
	norm = strings.Join(strings.Fields(norm), " ")
	norm = strings.ReplaceAll(norm, " +", "+")
	norm = strings.ReplaceAll(norm, "+ ", "+")
	norm = strings.ReplaceAll(norm, " -", "-")
	norm = strings.ReplaceAll(norm, "- ", "-")
	return norm
}

// demangleLabel demangles an Itanium C++ or Rust mangled label,
// returning the original text unchanged if it does not demangle.
func demangleLabel(label string) string {
	if out, err := demangle.ToString(label, demangle.NoParams); err == nil {
		return out
	}
	return label
}
