// Package util prints elaborator diagnostics: errors and warnings carry
// the offending source line with a caret underline, and unsupported
// constructs additionally dump the AST node that triggered them.
package util

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/goforj/godump"

	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
)

// ExitFunc is swapped out by tests that need fatal paths to be observable.
var ExitFunc = os.Exit

// printSourceLine prints the source line under a diagnostic and a caret
// (plus tildes for multi-column ranges) below it.
func printSourceLine(stream *os.File, sm *ast.SourceManager, rng ast.SourceRange) {
	if sm == nil || !rng.Start.Valid() {
		return
	}
	line := sm.LineText(rng.Start)
	if line == "" {
		return
	}
	fmt.Fprintf(stream, "  %s\n", line)
	col := rng.Start.Column
	if col < 1 {
		col = 1
	}
	width := 1
	if rng.End.Line == rng.Start.Line && rng.End.Column > rng.Start.Column {
		width = rng.End.Column - rng.Start.Column
	}
	fmt.Fprintf(stream, "  %s\033[32m^", strings.Repeat(" ", col-1))
	if width > 1 {
		fmt.Fprint(stream, strings.Repeat("~", width-1))
	}
	fmt.Fprintln(stream, "\033[0m")
}

func location(sm *ast.SourceManager, rng ast.SourceRange) string {
	if sm == nil || !rng.Start.Valid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", sm.FileName(rng.Start), rng.Start.Line, rng.Start.Column)
}

// Error prints a fatal diagnostic and aborts the run. Elaboration is
// all-or-nothing; nothing recovers past this point.
func Error(sm *ast.SourceManager, rng ast.SourceRange, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: \033[31merror:\033[0m ", location(sm, rng))
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	printSourceLine(os.Stderr, sm, rng)
	ExitFunc(1)
}

// Warn prints a warning when the corresponding toggle is enabled.
func Warn(cfg *config.Config, wt config.Warning, sm *ast.SourceManager, rng ast.SourceRange, format string, args ...any) {
	if cfg != nil && !cfg.IsWarningEnabled(wt) {
		return
	}
	name := ""
	if cfg != nil {
		name = cfg.WarningName(wt)
	}
	fmt.Fprintf(os.Stderr, "%s: \033[33mwarning:\033[0m ", location(sm, rng))
	fmt.Fprintf(os.Stderr, format, args...)
	if name != "" {
		fmt.Fprintf(os.Stderr, " [-W%s]", name)
	}
	fmt.Fprintln(os.Stderr)
	printSourceLine(os.Stderr, sm, rng)
}

// Unsupported reports an AST construct the elaborator does not implement:
// it dumps the node, cites the source line, and names the elaborator
// call site so the gap is easy to find. Fatal.
func Unsupported(sm *ast.SourceManager, node any, rng ast.SourceRange, condition string) {
	fmt.Fprintln(os.Stderr, godump.DumpStr(node))
	if src := renderSrc(sm, rng); src != "" {
		fmt.Fprintf(os.Stderr, "Source line %s: %s\n", src, sm.LineText(rng.Start))
	}
	file, line := callerOutsideUtil()
	msg := fmt.Sprintf("unsupported construct at %s:%d, see AST and code line dump above", file, line)
	if condition != "" {
		msg += fmt.Sprintf(" (failed condition %q)", condition)
	}
	fmt.Fprintf(os.Stderr, "%s: \033[31merror:\033[0m %s\n", location(sm, rng), msg)
	printSourceLine(os.Stderr, sm, rng)
	ExitFunc(1)
}

// Require aborts through Unsupported when property does not hold.
func Require(sm *ast.SourceManager, node any, rng ast.SourceRange, property bool, condition string) {
	if !property {
		Unsupported(sm, node, rng, condition)
	}
}

func renderSrc(sm *ast.SourceManager, rng ast.SourceRange) string {
	if sm == nil {
		return ""
	}
	return sm.FormatSrc(rng)
}

// callerOutsideUtil walks up the stack to the first frame outside this
// package, which is the elaborator line that gave up.
func callerOutsideUtil() (string, int) {
	for skip := 2; skip < 10; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		if !strings.Contains(file, "pkg/util/") {
			return file, line
		}
	}
	return "<unknown>", 0
}
