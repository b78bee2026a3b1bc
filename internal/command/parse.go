package command

import (
	"strings"
	"unicode"
)

// Command is one parsed terminal line. Name is lower-cased; Remainder is the
// raw text after the name with inner spacing preserved, for commands like
// search that take free text.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse splits a terminal line into a command name and arguments. It reports
// false for blank lines.
func Parse(input string) (Command, bool) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, false
	}
	fields := strings.Fields(raw)
	rest := strings.TrimLeftFunc(raw[len(fields[0]):], unicode.IsSpace)
	return Command{
		Name:      strings.ToLower(fields[0]),
		Args:      fields[1:],
		Raw:       raw,
		Remainder: rest,
	}, true
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
