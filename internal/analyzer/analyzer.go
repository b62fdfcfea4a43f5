// Package analyzer classifies instructions by type and volatility, and
// determines which byte offsets are candidates for wildcarding. It
// depends only on an instruction's bytes, mnemonic, and normalized
// operand text — never on neighboring instructions.
package analyzer

import (
	"strings"

	"sigforge/internal/instruction"
)

// instructionCategories mirrors the original backend's mnemonic table
// (analyzer.py INSTRUCTION_CATEGORIES), in lookup-priority order.
var instructionCategories = []struct {
	typ       instruction.Type
	mnemonics map[string]bool
}{
	{instruction.ConditionalJump, set(
		"je", "jne", "jz", "jnz", "ja", "jae", "jb", "jbe",
		"jg", "jge", "jl", "jle", "jo", "jno", "js", "jns",
		"jp", "jnp", "jpe", "jpo", "jecxz", "jcxz", "loop",
		"loope", "loopne", "loopz", "loopnz",
	)},
	{instruction.UnconditionalJump, set("jmp")},
	{instruction.Call, set("call")},
	{instruction.Return, set("ret", "retn", "retf", "iret", "iretd")},
	{instruction.Mov, set(
		"mov", "movzx", "movsx", "movss", "movsd", "movaps",
		"movups", "movdqa", "movdqu", "lea", "xchg", "cmove",
		"cmovne", "cmovz", "cmovnz", "cmova", "cmovae", "cmovb",
		"cmovbe", "cmovg", "cmovge", "cmovl", "cmovle", "cmovo",
		"cmovno", "cmovs", "cmovns", "cmovp", "cmovnp", "movsb",
		"movsw", "movsq",
	)},
	{instruction.Arithmetic, set(
		"add", "sub", "mul", "imul", "div", "idiv", "inc",
		"dec", "neg", "adc", "sbb", "addss", "subss", "mulss",
		"divss", "addsd", "subsd", "mulsd", "divsd",
	)},
	{instruction.Logic, set(
		"and", "or", "xor", "not", "shl", "shr", "sal",
		"sar", "rol", "ror", "rcl", "rcr", "bt", "bts",
		"btr", "btc", "bsf", "bsr",
	)},
	{instruction.Compare, set("cmp", "test", "comiss", "comisd", "ucomiss", "ucomisd")},
	{instruction.Stack, set(
		"push", "pop", "pusha", "pushad", "popa", "popad",
		"pushf", "pushfd", "popf", "popfd", "enter", "leave",
	)},
	{instruction.Float, set(
		"fld", "fst", "fstp", "fadd", "fsub", "fmul", "fdiv",
		"fcom", "fcomp", "fcompp", "fcomi", "fcomip", "fucomi",
		"fucomip", "fxch", "fild", "fist", "fistp", "finit",
		"fninit", "fstsw", "fnstsw", "fstcw", "fnstcw", "fldcw",
		"cvtsi2ss", "cvtsi2sd", "cvtss2si", "cvtsd2si", "cvtss2sd", "cvtsd2ss",
	)},
	{instruction.String, set(
		"movs", "cmps", "scas", "lods", "stos", "rep", "repe",
		"repz", "repne", "repnz", "movsb", "cmpsb", "cmpsw", "cmpsd",
		"scasb", "scasw", "scasd", "lodsb", "lodsw", "lodsd",
		"stosb", "stosw", "stosd",
	)},
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Classify assigns an instruction.Type from a mnemonic, using the same
// category priority order as the original backend's mnemonic table.
func Classify(mnemonic string) instruction.Type {
	m := strings.ToLower(mnemonic)
	for _, cat := range instructionCategories {
		if cat.mnemonics[m] {
			return cat.typ
		}
	}
	return instruction.Other
}

// shortJumpOpcodes are the 2-byte short jump/loop forms: opcode + 1-byte
// relative offset.
var shortJumpOpcodes = map[byte]bool{
	0xEB: true,
	0x70: true, 0x71: true, 0x72: true, 0x73: true,
	0x74: true, 0x75: true, 0x76: true, 0x77: true,
	0x78: true, 0x79: true, 0x7A: true, 0x7B: true,
	0x7C: true, 0x7D: true, 0x7E: true, 0x7F: true,
	0xE0: true, 0xE1: true, 0xE2: true, 0xE3: true,
}

// isNearConditional reports whether b is one of the 0F 8x near
// conditional jump second-bytes (0x80-0x8F).
func isNearConditional(b byte) bool { return b >= 0x80 && b <= 0x8F }

// Volatility rates opcode and operand volatility given an instruction's
// type and normalized operand text (analyzer.py get_volatility).
func Volatility(typ instruction.Type, operandsNormalized string) instruction.Volatility {
	opcodeVol := instruction.LevelLow
	operandVol := instruction.LevelLow

	switch typ {
	case instruction.ConditionalJump, instruction.UnconditionalJump, instruction.Call:
		operandVol = instruction.LevelHigh
	case instruction.Mov:
		if strings.Contains(operandsNormalized, "ebp") || strings.Contains(operandsNormalized, "esp") {
			operandVol = instruction.LevelHigh
		} else if strings.Contains(operandsNormalized, "ds:") || strings.Contains(operandsNormalized, "[") {
			if strings.Contains(operandsNormalized, "+") &&
				!strings.Contains(operandsNormalized, "ebp") && !strings.Contains(operandsNormalized, "esp") {
				operandVol = instruction.LevelMedium
			} else {
				operandVol = instruction.LevelHigh
			}
		}
	case instruction.Arithmetic:
		if containsDigit(operandsNormalized) {
			operandVol = instruction.LevelMedium
		}
	}

	return instruction.Volatility{Opcode: opcodeVol, Operand: operandVol}
}

func containsDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

// AnalyzeWildcardPositions returns the byte offsets within inst.Bytes
// that are candidates for wildcarding: relative jump/call offsets,
// stack-frame displacements, and global address displacements
// (analyzer.py analyze_wildcard_positions).
func AnalyzeWildcardPositions(inst instruction.Instruction) []int {
	b := inst.Bytes
	if len(b) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	add := func(positions []int) {
		for _, p := range positions {
			seen[p] = true
		}
	}

	first := b[0]
	switch {
	case shortJumpOpcodes[first] && len(b) == 2:
		add([]int{1})
	case first == 0xE8 && len(b) == 5:
		add([]int{1, 2, 3, 4})
	case first == 0xE9 && len(b) == 5:
		add([]int{1, 2, 3, 4})
	case first == 0x0F && len(b) >= 2:
		if isNearConditional(b[1]) && len(b) == 6 {
			add([]int{2, 3, 4, 5})
		}
	}

	operands := inst.Operands
	if strings.Contains(operands, "ebp") || strings.Contains(operands, "esp") {
		add(FindStackDisplacementPositions(inst))
	} else if strings.Contains(operands, "ds:[") ||
		(strings.Contains(operands, "ds:") && strings.Contains(operands, "[")) {
		add(FindGlobalAddressPositions(inst))
	}

	positions := make([]int, 0, len(seen))
	for p := range seen {
		positions = append(positions, p)
	}
	return positions
}

// modrmStart returns the byte index of the ModR/M byte for a typical
// prefixed/escaped x86 encoding, mirroring
// analyzer.py find_stack_displacement_positions's start_idx logic.
func modrmStart(b []byte) int {
	startIdx := 1
	if len(b) > 0 && b[0] == 0x0F {
		startIdx = 2
	}
	if len(b) > 0 && (b[0] == 0xF2 || b[0] == 0xF3 || b[0] == 0x66) {
		startIdx = 2
		if len(b) > 1 && b[1] == 0x0F {
			startIdx = 3
		}
	}
	return startIdx
}

// FindStackDisplacementPositions locates the ModR/M displacement bytes
// for [ebp±X] / [esp±X] operands (analyzer.py
// find_stack_displacement_positions).
func FindStackDisplacementPositions(inst instruction.Instruction) []int {
	b := inst.Bytes
	if len(b) < 3 {
		return nil
	}

	startIdx := modrmStart(b)
	if startIdx >= len(b) {
		return nil
	}

	modrm := b[startIdx]
	mod := (modrm >> 6) & 0x03
	rm := modrm & 0x07

	dispStart := startIdx + 1
	hasSIB := mod != 3 && rm == 4
	if hasSIB {
		dispStart++
	}

	var positions []int
	switch {
	case mod == 1:
		if dispStart < len(b) {
			positions = append(positions, dispStart)
		}
	case mod == 2:
		for i := 0; i < 4; i++ {
			if dispStart+i < len(b) {
				positions = append(positions, dispStart+i)
			}
		}
	case mod == 0 && rm == 5:
		for i := 0; i < 4; i++ {
			if dispStart+i < len(b) {
				positions = append(positions, dispStart+i)
			}
		}
	}
	return positions
}

// FindGlobalAddressPositions locates absolute/global address bytes:
// moffs32 forms (A1/A3) and ModR/M disp32-without-base forms
// (analyzer.py find_global_address_positions).
func FindGlobalAddressPositions(inst instruction.Instruction) []int {
	b := inst.Bytes
	if len(b) == 0 {
		return nil
	}

	first := b[0]
	if (first == 0xA1 || first == 0xA3) && len(b) == 5 {
		return []int{1, 2, 3, 4}
	}

	if len(b) >= 6 {
		modrmIdx := 1
		if first == 0x0F {
			modrmIdx = 2
		}
		if modrmIdx < len(b) {
			modrm := b[modrmIdx]
			mod := (modrm >> 6) & 0x03
			rm := modrm & 0x07
			if mod == 0 && rm == 5 {
				dispStart := modrmIdx + 1
				var positions []int
				for i := 0; i < 4; i++ {
					if dispStart+i < len(b) {
						positions = append(positions, dispStart+i)
					}
				}
				return positions
			}
		}
	}
	return nil
}

// aluImmediateMnemonics are the instructions whose immediate form is
// recognized textually by FindImmediatePositions (analyzer.py
// find_immediate_positions).
var aluImmediateMnemonics = set("add", "sub", "cmp", "and", "or", "xor", "test")

// FindImmediatePositions best-effort locates the trailing immediate
// operand bytes of ALU instructions with an immediate second operand
// (analyzer.py find_immediate_positions — used by the optional
// `immediates` wildcard rule).
func FindImmediatePositions(inst instruction.Instruction) []int {
	m := strings.ToLower(inst.Mnemonic)
	if !aluImmediateMnemonics[m] {
		return nil
	}

	parts := strings.SplitN(inst.Operands, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	immPart := strings.TrimSpace(parts[1])
	if !looksLikeImmediate(immPart) {
		return nil
	}

	b := inst.Bytes
	switch {
	case len(b) >= 6:
		start := len(b) - 4
		return []int{start, start + 1, start + 2, start + 3}
	case len(b) >= 3:
		return []int{len(b) - 1}
	}
	return nil
}

func looksLikeImmediate(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-") {
		return true
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// noModRMImmediateSize maps one-byte opcodes that take a trailing
// immediate but never a ModR/M byte to that immediate's size in bytes.
// Covers accumulator-form ALU ops, mov-immediate forms, and push
// immediate (analyzer.py's structural fallback for no-ModR/M opcodes).
var noModRMImmediateSize = map[byte]int{
	0x04: 1, 0x0C: 1, 0x14: 1, 0x1C: 1, 0x24: 1, 0x2C: 1, 0x34: 1, 0x3C: 1, // ALU al,imm8
	0x05: 4, 0x0D: 4, 0x15: 4, 0x1D: 4, 0x25: 4, 0x2D: 4, 0x35: 4, 0x3D: 4, // ALU eax,imm32
	0x6A: 1, // push imm8
	0x68: 4, // push imm32
	0xA8: 1, // test al,imm8
	0xA9: 4, // test eax,imm32
}

func init() {
	for op := byte(0xB0); op <= 0xB7; op++ {
		noModRMImmediateSize[op] = 1 // mov r8,imm8
	}
	for op := byte(0xB8); op <= 0xBF; op++ {
		noModRMImmediateSize[op] = 4 // mov r32,imm32
	}
}

// ClassifyBytes assigns every byte offset of inst.Bytes to exactly one
// instruction.ByteCategory, combining the control-flow special cases
// with a generic ModR/M + SIB + displacement + immediate walk.
func ClassifyBytes(inst instruction.Instruction) []instruction.ByteCategory {
	b := inst.Bytes
	size := len(b)
	if size == 0 {
		return nil
	}

	cats := make([]instruction.ByteCategory, size)
	fill := func(from, to int, cat instruction.ByteCategory) {
		for i := from; i < to && i < size; i++ {
			cats[i] = cat
		}
	}

	first := b[0]
	switch {
	case shortJumpOpcodes[first] && size == 2:
		cats[0] = instruction.CategoryOpcode
		cats[1] = instruction.CategoryRelativeOffset
		return cats
	case (first == 0xE8 || first == 0xE9) && size == 5:
		cats[0] = instruction.CategoryOpcode
		fill(1, 5, instruction.CategoryRelativeOffset)
		return cats
	case first == 0x0F && size == 6 && isNearConditional(b[1]):
		fill(0, 2, instruction.CategoryOpcode)
		fill(2, 6, instruction.CategoryRelativeOffset)
		return cats
	}

	startIdx := modrmStart(b)
	if size <= startIdx {
		if immSize, ok := noModRMImmediateSize[first]; ok && size == 1+immSize {
			cats[0] = instruction.CategoryOpcode
			fill(1, size, instruction.CategoryImmediate)
			return cats
		}
		fill(0, size, instruction.CategoryOpcode)
		return cats
	}

	fill(0, startIdx, instruction.CategoryOpcode)
	cats[startIdx] = instruction.CategoryModRM
	modrm := b[startIdx]
	mod := (modrm >> 6) & 0x03
	rm := modrm & 0x07

	dispStart := startIdx + 1
	if mod != 3 && rm == 4 {
		if dispStart < size {
			cats[dispStart] = instruction.CategorySIB
		}
		dispStart++
	}

	dispLen := 0
	switch {
	case mod == 1:
		dispLen = 1
	case mod == 2:
		dispLen = 4
	case mod == 0 && rm == 5:
		dispLen = 4
	}
	fill(dispStart, dispStart+dispLen, instruction.CategoryDisplacement)

	remaining := dispStart + dispLen
	if remaining < size {
		fill(remaining, size, instruction.CategoryImmediate)
	}
	return cats
}

// FindStructOffsetPositions locates non-stack [reg+X] displacement
// bytes, reusing the ModR/M displacement logic (analyzer.py
// find_struct_offset_positions — used by the optional `struct_offsets`
// wildcard rule).
func FindStructOffsetPositions(inst instruction.Instruction) []int {
	operands := inst.Operands
	if strings.Contains(operands, "[") && strings.Contains(operands, "+") {
		if !strings.Contains(operands, "ebp") && !strings.Contains(operands, "esp") {
			return FindStackDisplacementPositions(inst)
		}
	}
	return nil
}
