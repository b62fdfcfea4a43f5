// Package signature defines the Signature artifact produced by the
// generator: a wildcarded byte pattern together with its scoring and
// the configuration that controls how wildcards are chosen.
package signature

import (
	"fmt"

	sigerrors "sigforge/internal/sigforge/errors"
)

// Stability is a coarse rating of how well a signature is expected to
// survive a rebuild of the same program.
type Stability string

const (
	StabilityHigh   Stability = "high"
	StabilityMedium Stability = "medium"
	StabilityLow    Stability = "low"
)

// ReasonCode explains why a particular byte position was wildcarded.
type ReasonCode string

const (
	ReasonRelativeJump      ReasonCode = "relative_jump"
	ReasonRelativeCall      ReasonCode = "relative_call"
	ReasonStackOffset       ReasonCode = "stack_offset"
	ReasonGlobalAddress     ReasonCode = "global_address"
	ReasonImmediate         ReasonCode = "immediate"
	ReasonStructOffset      ReasonCode = "struct_offset"
	ReasonMemoryDisplacement ReasonCode = "memory_displacement"
)

// WildcardReason documents a single realized wildcard.
type WildcardReason struct {
	Position           int        `json:"position"` // position within the signature, not the instruction
	Reason             ReasonCode `json:"reason"`
	Detail             string     `json:"detail"`
	InstructionAddress string     `json:"instruction_address,omitempty"`
}

// Rules selects which candidate byte categories are actually realized
// as wildcards. Mirrors spec §6's seven wildcard-rule flags.
type Rules struct {
	RelativeJumps        bool `json:"relative_jumps"`
	RelativeCalls        bool `json:"relative_calls"`
	StackOffsets         bool `json:"stack_offsets"`
	GlobalAddresses      bool `json:"global_addresses"`
	Immediates           bool `json:"immediates"`
	StructOffsets        bool `json:"struct_offsets"`
	MemoryDisplacements  bool `json:"memory_displacements"`
}

// DefaultRules are the "conservative" defaults from spec §6.
func DefaultRules() Rules {
	return Rules{
		RelativeJumps:   true,
		RelativeCalls:   true,
		StackOffsets:    true,
		GlobalAddresses: true,
	}
}

// Options configures signature generation.
type Options struct {
	MinLength     int   `json:"min_length"`
	MaxLength     int   `json:"max_length"`
	Variants      int   `json:"variants"`
	ContextBefore int   `json:"context_before"`
	ContextAfter  int   `json:"context_after"`
	WildcardRules Rules `json:"wildcard_rules"`
}

// DefaultOptions mirrors spec §6's documented defaults.
func DefaultOptions() Options {
	return Options{
		MinLength:     20,
		MaxLength:     50,
		Variants:      10,
		ContextBefore: 0,
		ContextAfter:  10,
		WildcardRules: DefaultRules(),
	}
}

// Validate checks programmer-error conditions that are hard failures
// (spec §7): an inverted length range or a non-positive variant count,
// each reported as a *ConfigError.
func (o Options) Validate() error {
	if o.MinLength > o.MaxLength {
		return &sigerrors.ConfigError{Reason: fmt.Sprintf("signature: min_length (%d) > max_length (%d)", o.MinLength, o.MaxLength)}
	}
	if o.Variants <= 0 {
		return &sigerrors.ConfigError{Reason: fmt.Sprintf("signature: variants must be positive, got %d", o.Variants)}
	}
	return nil
}

// Signature is an immutable generated byte pattern with wildcards.
type Signature struct {
	Pattern string  `json:"pattern"` // "0F 84 ?? ?? ?? ??"
	Mask    string  `json:"mask"`    // "xx????"
	Bytes   []*byte `json:"bytes"`   // nil at wildcard positions

	Description string `json:"description"`
	Summary     string `json:"summary"`

	Length            int              `json:"length"`
	WildcardCount     int              `json:"wildcard_count"`
	WildcardPositions []int            `json:"wildcard_positions"`
	WildcardReasons   []WildcardReason `json:"wildcard_reasons"`

	UniquenessScore float64   `json:"uniqueness_score"`
	Stability       Stability `json:"stability"`

	StartAddress string `json:"start_address,omitempty"`
	EndAddress   string `json:"end_address,omitempty"`

	Strategy string `json:"strategy"`

	// Warning holds a non-fatal explanation text. The generator leaves it
	// empty: a target that cannot reach MinLength gets no variants, and
	// generator.GenerateForTarget returns a WindowTooShort value instead.
	Warning string `json:"warning,omitempty"`
}
