// Package config holds sigforge's user-facing configuration and its
// JSON Schema reflection.
package config

import (
	"sigforge/internal/export"
	"sigforge/internal/signature"
)

// Config is the configuration surface for the sigforge CLI.
type Config struct {
	Debug   bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	DataDir string `json:"dataDir" jsonschema:"title=Data Directory,description=Directory for cached listings and session logs"`

	DefaultModule string `json:"defaultModule" jsonschema:"title=Default Module Name,description=Module name used by export formats that embed one"`
	NoColor       bool   `json:"noColor" jsonschema:"title=Disable Color,description=Disable terminal syntax highlighting"`

	DefaultMinLength int `json:"defaultMinLength" jsonschema:"title=Default Minimum Length,description=Default minimum signature length in bytes,minimum=8,maximum=100"`
	DefaultMaxLength int `json:"defaultMaxLength" jsonschema:"title=Default Maximum Length,description=Default maximum signature length in bytes,minimum=20,maximum=200"`
	DefaultVariants  int `json:"defaultVariants" jsonschema:"title=Default Variant Count,description=Default number of signature variants to keep,minimum=1,maximum=50"`

	ProfilePath string `json:"profilePath" jsonschema:"title=Profile Path,description=Path for CPU profile output"`
}

// Default returns sigforge's built-in configuration defaults.
func Default() Config {
	return Config{
		DefaultModule:    export.DefaultModuleName,
		DefaultMinLength: signature.DefaultOptions().MinLength,
		DefaultMaxLength: signature.DefaultOptions().MaxLength,
		DefaultVariants:  signature.DefaultOptions().Variants,
	}
}

// SignatureOptions builds signature.Options seeded from the config's
// length/variant defaults, with signature.DefaultRules as the wildcard rules.
func (c Config) SignatureOptions() signature.Options {
	opts := signature.DefaultOptions()
	opts.MinLength = c.DefaultMinLength
	opts.MaxLength = c.DefaultMaxLength
	opts.Variants = c.DefaultVariants
	return opts
}
