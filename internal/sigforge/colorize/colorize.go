// Package colorize applies terminal syntax highlighting to assembly
// listings and exported byte patterns using chroma.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

func colorDisabled() bool {
	return os.Getenv("SIGFORGE_NO_COLOR") != ""
}

// getAssemblyLexer returns an appropriate x86 assembly lexer with fallbacks.
func getAssemblyLexer() chroma.Lexer {
	candidates := []string{"nasm", "gas", "GAS", "Gas"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks.
func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter.
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// ColorizeAssembly applies syntax highlighting to a block of x86 assembly
// text (mnemonics, registers, immediates, labels).
func ColorizeAssembly(code string) (string, error) {
	if colorDisabled() {
		return code, nil
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code, err
	}

	return buf.String(), nil
}

// ColorizeDisasmLine colorizes a single "<address>  <mnemonic> <operands>"
// line, keeping the address in a dimmed gray and highlighting the rest
// through the assembly lexer.
func ColorizeDisasmLine(address, rest string) string {
	if colorDisabled() {
		return fmt.Sprintf("%s  %s", address, rest)
	}

	addrColored := fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m", address)
	colorized, err := ColorizeAssembly(rest)
	if err != nil {
		colorized = rest
	}
	return fmt.Sprintf("%s  %s", addrColored, strings.TrimRight(colorized, "\n"))
}

// ColorizePattern highlights an AOB pattern ("0F 84 ?? ?? ?? ??"), printing
// concrete bytes in one color and wildcard tokens in another.
func ColorizePattern(pattern string) string {
	if colorDisabled() {
		return pattern
	}

	tokens := strings.Fields(pattern)
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "??" {
			parts = append(parts, "\033[38;2;255;95;135m??\033[0m")
		} else {
			parts = append(parts, fmt.Sprintf("\033[38;2;124;156;157m%s\033[0m", tok))
		}
	}
	return strings.Join(parts, " ")
}
