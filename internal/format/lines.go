// Package format turns run results and source code into terminal lines
// tagged with the schema line markers.
package format

import (
	"fmt"
	"strings"

	"pkt.systems/snippad/schema"
)

// SplitLines splits text on newlines, dropping one trailing empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// MarkLines prefixes every line with marker.
func MarkLines(marker string, lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = marker + line
	}
	return out
}

// Heading returns a heading line.
func Heading(text string) string {
	return schema.HeadingMarker + text
}

// Info returns a dimmed informational line.
func Info(text string) string {
	return schema.InfoMarker + text
}

// Error returns an error line.
func Error(text string) string {
	return schema.ErrorMarker + text
}

// ResultLines renders a remote run the way the terminal shows it: an
// "Output:" or "Error:" heading followed by the text, or "(No output)".
func ResultLines(result schema.RunResult) []string {
	switch {
	case result.Mode == schema.RunModePreview:
		return []string{Info(fmt.Sprintf("Preview updated (%d bytes)", len(result.Output)))}
	case result.Classification == schema.ClassSuccess:
		return append([]string{schema.SuccessMarker + "Output:"}, SplitLines(result.Output)...)
	case result.Classification == schema.ClassError:
		return append([]string{Error("Error:")}, SplitLines(result.Output)...)
	case result.Status == schema.RunStatusRunning:
		return []string{Info(result.Output)}
	default:
		return []string{Info("(No output)")}
	}
}

// Plain strips a leading marker from each line.
func Plain(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i], _ = schema.StripMarker(line)
	}
	return out
}
