// Package cmd is the sigforge command-line front end: one small cobra
// command per core operation (parse, generate, smart, batch, export,
// recommend, report, extract-elf, watch, pick, schema, run), each a thin
// wrapper around the pure internal/ packages.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	pathpkg "path/filepath"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sigforge/internal/sigforge/config"
	"sigforge/internal/sigforge/log"
)

var cfg config.Config

var cpuProfileFile *os.File

func init() {
	cfg = config.Default()

	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfg.DataDir, "data-dir", "D", cfg.DataDir, "Directory for cached listings and session logs")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable syntax highlighting")
	rootCmd.PersistentFlags().StringVar(&cfg.ProfilePath, "cpuprofile", cfg.ProfilePath, "Write a CPU profile to this path")
	rootCmd.PersistentFlags().BoolP("no-tui", "n", false, "Use plain cobra output instead of fang's rendering")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(smartCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(extractELFCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(runCmd)
}

var rootCmd = &cobra.Command{
	Use:   "sigforge",
	Short: "Generate resilient byte signatures from disassembly listings",
	Long: `sigforge turns x64dbg, Cheat Engine, or raw hex disassembly listings
into wildcarded byte signatures that keep matching across rebuilds.`,
	Example: `
# Parse a listing and print the result as JSON
sigforge parse listing.txt

# Generate signatures for every labeled function
sigforge batch listing.txt --named-set all_labeled --out sigs.json

# Export those signatures as a Cheat Engine table script
sigforge export sigs.json --format cheatengine --module-name game.exe
  `,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Setup("", cfg.Debug)
		if cfg.NoColor {
			os.Setenv("SIGFORGE_NO_COLOR", "1")
		}
		if cfg.ProfilePath != "" {
			f, err := os.Create(cfg.ProfilePath)
			if err != nil {
				return fmt.Errorf("cpuprofile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return fmt.Errorf("cpuprofile: %w", err)
			}
			cpuProfileFile = f
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cpuProfileFile != nil {
			pprof.StopCPUProfile()
			cpuProfileFile.Close()
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command, routing through fang's enhanced
// rendering when attached to a terminal and falling back to plain
// cobra when piped or run with a flag that implies non-interactive use.
func Execute() {
	plain := false
	for _, arg := range os.Args[1:] {
		if arg == "--no-tui" || arg == "-n" {
			plain = true
			break
		}
	}
	if !plain && !term.IsTerminal(os.Stdout.Fd()) {
		plain = true
	}

	if plain {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// resolveOutPath roots a bare (non-empty, non-"-", relative) output
// filename under --data-dir when one was given, so session artifacts
// from generate/batch land in one place by default.
func resolveOutPath(out string) string {
	if out == "" || out == "-" || cfg.DataDir == "" || pathpkg.IsAbs(out) {
		return out
	}
	return pathpkg.Join(cfg.DataDir, out)
}
