package core

import "pkt.systems/snippad/schema"

// terminalBuffer stores terminal scrollback, dropping the oldest lines once
// maxLines is exceeded.
type terminalBuffer struct {
	lines    []string
	maxLines int
}

func newTerminalBuffer(maxLines int) *terminalBuffer {
	if maxLines <= 0 {
		maxLines = schema.DefaultTerminalMaxLines
	}
	return &terminalBuffer{maxLines: maxLines}
}

// Append adds lines to the buffer.
func (b *terminalBuffer) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	b.lines = append(b.lines, lines...)
	if len(b.lines) > b.maxLines {
		trim := len(b.lines) - b.maxLines
		b.lines = append([]string(nil), b.lines[trim:]...)
	}
}

// Clear drops every line.
func (b *terminalBuffer) Clear() {
	b.lines = nil
}

// Snapshot returns the last limit lines; limit <= 0 returns everything.
func (b *terminalBuffer) Snapshot(limit int) schema.TerminalSnapshot {
	total := len(b.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	lines := make([]string, limit)
	copy(lines, b.lines[total-limit:])
	return schema.TerminalSnapshot{Lines: lines, TotalLines: total}
}
