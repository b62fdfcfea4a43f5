package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"sigforge/internal/export"
	"sigforge/internal/instruction"
)

// resultDoc is the on-disk JSON shape produced by generate/batch and
// consumed by export/report. Keeping it in the cmd package (rather than
// export or sigforge) avoids coupling the core's types to a specific
// serialization envelope.
type resultDoc struct {
	Stats    instruction.Stats         `json:"stats"`
	Targets  []export.TargetSignatures `json:"targets"`
	NotFound []string                  `json:"not_found,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

func writeResultDoc(out string, doc resultDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if out == "" || out == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}

func readResultDoc(path string) (resultDoc, error) {
	var doc resultDoc
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return doc, nil
}
