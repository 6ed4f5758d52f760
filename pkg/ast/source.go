package ast

import "fmt"

// Location is a position inside a registered source file. A negative File
// index means the location is not tied to any file (synthetic nodes).
type Location struct {
	File   int
	Line   int
	Column int
}

// Valid reports whether the location points into a registered file.
func (l Location) Valid() bool { return l.File >= 0 && l.Line > 0 }

// SourceRange spans a region of source text. Start == End encodes a point.
type SourceRange struct {
	Start Location
	End   Location
}

func (r SourceRange) Valid() bool { return r.Start.Valid() && r.End.Valid() }

// Point builds a single-point range.
func Point(loc Location) SourceRange { return SourceRange{Start: loc, End: loc} }

// SourceFile is one registered input file.
type SourceFile struct {
	Name    string
	Content []rune
}

// SourceManager tracks the name and content of every input file so that
// diagnostics and src attributes can be rendered from bare locations.
type SourceManager struct {
	files []SourceFile
}

func NewSourceManager() *SourceManager { return &SourceManager{} }

// AddFile registers a file and returns its index for use in Locations.
func (sm *SourceManager) AddFile(name, content string) int {
	sm.files = append(sm.files, SourceFile{Name: name, Content: []rune(content)})
	return len(sm.files) - 1
}

func (sm *SourceManager) FileName(loc Location) string {
	if loc.File < 0 || loc.File >= len(sm.files) {
		return "<unknown>"
	}
	return sm.files[loc.File].Name
}

// LineText returns the source text of the line containing loc, without the
// trailing newline. Empty when the location is out of range.
func (sm *SourceManager) LineText(loc Location) string {
	if loc.File < 0 || loc.File >= len(sm.files) || loc.Line == 0 {
		return ""
	}
	content := sm.files[loc.File].Content
	lineNum := loc.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' || content[i] == '\r' {
			lineEnd = i
			break
		}
	}
	return string(content[lineStart:lineEnd])
}

// FormatSrc renders a range the way the netlist IR's src attribute expects:
// "file:line.col-line.col", collapsing to "file:line.col" for points.
// Returns "" for ranges outside any registered file.
func (sm *SourceManager) FormatSrc(rng SourceRange) string {
	if !rng.Valid() {
		return ""
	}
	fn := sm.FileName(rng.Start)
	if rng.Start == rng.End {
		return fmt.Sprintf("%s:%d.%d", fn, rng.Start.Line, rng.Start.Column)
	}
	return fmt.Sprintf("%s:%d.%d-%d.%d", fn,
		rng.Start.Line, rng.Start.Column, rng.End.Line, rng.End.Column)
}
