package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sigforge/internal/elfx"
)

var extractELFBase bool

var extractELFCmd = &cobra.Command{
	Use:   "extract-elf <binary>",
	Short: "Extract a 32-bit ELF binary's executable section as a hex stream",
	Long: `Extract-elf opens a 32-bit x86 ELF image, locates its .text (or
executable PT_LOAD) section, and prints its bytes as a hex stream
feedable to "sigforge parse --format hex".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := elfx.Open(args[0])
		if err != nil {
			return fmt.Errorf("extract-elf: %w", err)
		}
		defer img.Close()

		if extractELFBase {
			fmt.Printf("; %s base=0x%08X size=0x%X\n", img.Text.Name, img.Text.VA, img.Text.Size)
		}

		data, err := img.TextBytes()
		if err != nil {
			return fmt.Errorf("extract-elf: %w", err)
		}

		for i, b := range data {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Printf("%02X", b)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	extractELFCmd.Flags().BoolVar(&extractELFBase, "base", false, "Print the section's virtual address and size before the hex stream")
}
