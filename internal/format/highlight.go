package format

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"pkt.systems/snippad/schema"
)

// DefaultStyle is the chroma style used for terminal highlighting.
const DefaultStyle = "dracula"

// Highlight renders code as ANSI 256-color lines tagged with CodeMarker.
// The lexer is picked from the file name, then the language tag. Errors fall
// back to the unhighlighted code.
func Highlight(name string, lang schema.Language, code, style string) []string {
	if code == "" {
		return nil
	}
	lexer := lexers.Match(name)
	if lexer == nil {
		lexer = lexers.Get(string(lang))
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	if style == "" {
		style = DefaultStyle
	}
	chromaStyle := styles.Get(style)
	if chromaStyle == nil {
		chromaStyle = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return MarkLines(schema.CodeMarker, SplitLines(code))
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, chromaStyle, iterator); err != nil {
		return MarkLines(schema.CodeMarker, SplitLines(code))
	}
	want := len(SplitLines(code))
	lines := SplitLines(buf.String())
	// Trailing reset sequences can spill onto an extra line.
	if want > 0 && len(lines) > want {
		lines[want-1] += strings.Join(lines[want:], "")
		lines = lines[:want]
	}
	return MarkLines(schema.CodeMarker, lines)
}
