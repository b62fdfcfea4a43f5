package analyzer

import (
	"testing"

	"sigforge/internal/instruction"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mnemonic string
		want     instruction.Type
	}{
		{"je", instruction.ConditionalJump},
		{"JNE", instruction.ConditionalJump},
		{"jmp", instruction.UnconditionalJump},
		{"call", instruction.Call},
		{"ret", instruction.Return},
		{"mov", instruction.Mov},
		{"lea", instruction.Mov},
		{"add", instruction.Arithmetic},
		{"xor", instruction.Logic},
		{"cmp", instruction.Compare},
		{"push", instruction.Stack},
		{"fld", instruction.Float},
		{"movsb", instruction.Mov}, // mov table wins over the string table; it's listed first
		{"db", instruction.Other},
		{"nop", instruction.Other},
	}
	for _, tt := range tests {
		t.Run(tt.mnemonic, func(t *testing.T) {
			if got := Classify(tt.mnemonic); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.mnemonic, got, tt.want)
			}
		})
	}
}

func TestVolatility(t *testing.T) {
	tests := []struct {
		name               string
		typ                instruction.Type
		operandsNormalized string
		wantOperand        instruction.Level
	}{
		{"jump operand is always high", instruction.ConditionalJump, "00467400", instruction.LevelHigh},
		{"call operand is always high", instruction.Call, "00467400", instruction.LevelHigh},
		{"mov to ebp-relative is high", instruction.Mov, "[ebp-0x10], eax", instruction.LevelHigh},
		{"mov to esp-relative is high", instruction.Mov, "[esp+4], eax", instruction.LevelHigh},
		{"mov to register is low", instruction.Mov, "eax, ebx", instruction.LevelLow},
		{"mov to struct-offset pointer is medium", instruction.Mov, "[ecx+10], eax", instruction.LevelMedium},
		{"mov to ds: global is high", instruction.Mov, "ds:[0x00501000], eax", instruction.LevelHigh},
		{"arithmetic with a literal operand is medium", instruction.Arithmetic, "eax, 10", instruction.LevelMedium},
		{"arithmetic between registers is low", instruction.Arithmetic, "eax, ebx", instruction.LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Volatility(tt.typ, tt.operandsNormalized)
			if got.Operand != tt.wantOperand {
				t.Errorf("Volatility(%v, %q).Operand = %v, want %v", tt.typ, tt.operandsNormalized, got.Operand, tt.wantOperand)
			}
			if got.Opcode != instruction.LevelLow {
				t.Errorf("Volatility(%v, %q).Opcode = %v, want low", tt.typ, tt.operandsNormalized, got.Opcode)
			}
		})
	}
}

// validCategories are the only values ClassifyBytes is allowed to
// produce; the zero value (empty string) means a byte fell through
// every case uncategorized, which is the defect TestByteAccounting
// guards against.
var validCategories = map[instruction.ByteCategory]bool{
	instruction.CategoryOpcode:         true,
	instruction.CategoryModRM:          true,
	instruction.CategorySIB:            true,
	instruction.CategoryDisplacement:   true,
	instruction.CategoryImmediate:      true,
	instruction.CategoryRelativeOffset: true,
}

func shapeInst(bytes []byte, mnemonic, operands string) instruction.Instruction {
	return instruction.Instruction{
		Bytes:    bytes,
		Size:     len(bytes),
		Mnemonic: mnemonic,
		Operands: operands,
	}
}

// byteShapes exercises the encodings ClassifyBytes and
// AnalyzeWildcardPositions branch on: short and near jumps, call/jmp
// rel32, SIB-addressed esp-relative memory, ebp-relative memory without
// SIB, a non-stack struct-offset reference, and plain register forms.
var byteShapes = []struct {
	name     string
	inst     instruction.Instruction
	wantCats []instruction.ByteCategory
}{
	{
		name: "push ebp (single byte, no operand bytes)",
		inst: shapeInst([]byte{0x55}, "push", "ebp"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode,
		},
	},
	{
		name: "je rel8 short jump",
		inst: shapeInst([]byte{0x74, 0x10}, "je", "00467410"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryRelativeOffset,
		},
	},
	{
		name: "call rel32",
		inst: shapeInst([]byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call", "00467400"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryRelativeOffset,
			instruction.CategoryRelativeOffset, instruction.CategoryRelativeOffset,
			instruction.CategoryRelativeOffset,
		},
	},
	{
		name: "je near (0F 8x) rel32",
		inst: shapeInst([]byte{0x0F, 0x84, 0x12, 0x34, 0x56, 0x78}, "je", "00467400"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryOpcode,
			instruction.CategoryRelativeOffset, instruction.CategoryRelativeOffset,
			instruction.CategoryRelativeOffset, instruction.CategoryRelativeOffset,
		},
	},
	{
		// mod=01, rm=101 (ebp): no SIB byte, 1-byte displacement.
		name: "mov eax,[ebp-0x10] (stack, no SIB)",
		inst: shapeInst([]byte{0x8B, 0x45, 0xF0}, "mov", "eax, [ebp-0x10]"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryModRM, instruction.CategoryDisplacement,
		},
	},
	{
		// mod=01, rm=100 (esp): esp always takes a SIB byte.
		name: "mov eax,[esp+0x10] (stack, SIB)",
		inst: shapeInst([]byte{0x8B, 0x44, 0x24, 0x10}, "mov", "eax, [esp+0x10]"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryModRM,
			instruction.CategorySIB, instruction.CategoryDisplacement,
		},
	},
	{
		// mod=01, rm=001 (ecx): struct-offset reference, not a stack frame.
		name: "mov eax,[ecx+0x10] (struct offset, no SIB)",
		inst: shapeInst([]byte{0x8B, 0x41, 0x10}, "mov", "eax, [ecx+0x10]"),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode, instruction.CategoryModRM, instruction.CategoryDisplacement,
		},
	},
	{
		name: "ret (single byte, no operands)",
		inst: shapeInst([]byte{0xC3}, "ret", ""),
		wantCats: []instruction.ByteCategory{
			instruction.CategoryOpcode,
		},
	},
}

// TestByteAccounting asserts spec's universal byte-accounting property:
// every byte offset of an instruction is covered by exactly one
// ByteCategory, for every encoding shape ClassifyBytes branches on.
func TestByteAccounting(t *testing.T) {
	for _, tt := range byteShapes {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyBytes(tt.inst)
			if len(got) != len(tt.inst.Bytes) {
				t.Fatalf("ClassifyBytes() returned %d categories for %d bytes", len(got), len(tt.inst.Bytes))
			}
			for i, cat := range got {
				if !validCategories[cat] {
					t.Errorf("byte %d: category %q is not a recognized ByteCategory", i, cat)
				}
			}
			if tt.wantCats != nil {
				for i, want := range tt.wantCats {
					if got[i] != want {
						t.Errorf("byte %d: category = %q, want %q", i, got[i], want)
					}
				}
			}
		})
	}
}

// TestWildcardCandidatesAreByteAccountingConsistent asserts the second
// universal property: every position AnalyzeWildcardPositions proposes
// as a wildcard candidate is in range and lands on a byte category that
// is actually safe to vary (never an opcode or ModR/M byte, which
// determine what the instruction decodes as in the first place).
func TestWildcardCandidatesAreByteAccountingConsistent(t *testing.T) {
	neverWildcardable := map[instruction.ByteCategory]bool{
		instruction.CategoryOpcode: true,
		instruction.CategoryModRM:  true,
	}

	for _, tt := range byteShapes {
		t.Run(tt.name, func(t *testing.T) {
			inst := tt.inst
			inst.ByteCategories = ClassifyBytes(inst)
			positions := AnalyzeWildcardPositions(inst)
			for _, pos := range positions {
				if pos < 0 || pos >= len(inst.Bytes) {
					t.Fatalf("wildcard position %d out of range [0,%d)", pos, len(inst.Bytes))
				}
				if neverWildcardable[inst.ByteCategories[pos]] {
					t.Errorf("position %d categorized %q, which must never be a wildcard candidate", pos, inst.ByteCategories[pos])
				}
			}
		})
	}
}

func TestFindStackDisplacementPositionsRequiresEnoughBytes(t *testing.T) {
	inst := shapeInst([]byte{0x55}, "push", "ebp")
	if got := FindStackDisplacementPositions(inst); got != nil {
		t.Errorf("got %v, want nil for an instruction too short to carry a ModR/M byte", got)
	}
}

func TestFindStructOffsetPositionsExcludesStackOperands(t *testing.T) {
	tests := []struct {
		name    string
		inst    instruction.Instruction
		wantNil bool
	}{
		{
			name:    "ebp-relative is a stack operand, not a struct offset",
			inst:    shapeInst([]byte{0x8B, 0x45, 0xF0}, "mov", "eax, [ebp-0x10]"),
			wantNil: true,
		},
		{
			name:    "esp-relative is a stack operand, not a struct offset",
			inst:    shapeInst([]byte{0x8B, 0x44, 0x24, 0x10}, "mov", "eax, [esp+0x10]"),
			wantNil: true,
		},
		{
			name: "ecx-relative is a struct offset",
			inst: shapeInst([]byte{0x8B, 0x41, 0x10}, "mov", "eax, [ecx+0x10]"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindStructOffsetPositions(tt.inst)
			if tt.wantNil && got != nil {
				t.Errorf("got %v, want nil", got)
			}
			if !tt.wantNil && got == nil {
				t.Error("got nil, want non-nil struct offset positions")
			}
		})
	}
}

func TestFindImmediatePositions(t *testing.T) {
	tests := []struct {
		name    string
		inst    instruction.Instruction
		wantLen int
	}{
		{
			name:    "cmp with a hex immediate",
			inst:    shapeInst([]byte{0x83, 0xF8, 0x10}, "cmp", "eax, 0x10"),
			wantLen: 1,
		},
		{
			name:    "non-ALU mnemonic has no immediate positions",
			inst:    shapeInst([]byte{0x55}, "push", "ebp"),
			wantLen: 0,
		},
		{
			name:    "ALU mnemonic without a second operand",
			inst:    shapeInst([]byte{0x40}, "add", "eax"),
			wantLen: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindImmediatePositions(tt.inst); len(got) != tt.wantLen {
				t.Errorf("got %v (len %d), want len %d", got, len(got), tt.wantLen)
			}
		})
	}
}

func TestAnalyzeWildcardPositionsEmptyBytesReturnsNil(t *testing.T) {
	if got := AnalyzeWildcardPositions(instruction.Instruction{}); got != nil {
		t.Errorf("got %v, want nil for an instruction with no bytes", got)
	}
}

func TestClassifyBytesEmptyBytesReturnsNil(t *testing.T) {
	if got := ClassifyBytes(instruction.Instruction{}); got != nil {
		t.Errorf("got %v, want nil for an instruction with no bytes", got)
	}
}
